package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/inkwell/pkg/adapters/broadcast"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/session"
)

// Backend names accepted by WithScratchBackend and WithNotifierBackend.
const (
	ScratchFile     = "file"
	ScratchSQLite   = "sqlite"
	ScratchBolt     = "bolt"
	ScratchPostgres = "postgres"
	ScratchRedis    = "redis"

	NotifierNone      = "none"
	NotifierBroadcast = "broadcast"
	NotifierRedis     = "redis"
	NotifierWS        = "ws"
)

// options holds the internal configuration for building a session.
type options struct {
	logger   *slog.Logger
	scratch  core.ScratchStore
	notifier core.Notifier
	picker   core.Picker
	clock    session.Clock
	hub      *broadcast.Hub

	scratchBackend  string
	notifierBackend string
	config          map[string]interface{}
}

// Option defines a functional option for configuring a session.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		scratchBackend:  ScratchFile,
		notifierBackend: NotifierBroadcast,
		config:          make(map[string]interface{}),
	}
}

func (o *options) string(key, fallback string) string {
	if v, ok := o.config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (o *options) bool(key string, fallback bool) bool {
	if v, ok := o.config[key].(bool); ok {
		return v
	}
	return fallback
}

func (o *options) int(key string) int {
	v, _ := o.config[key].(int)
	return v
}

func (o *options) duration(key string) time.Duration {
	v, _ := o.config[key].(time.Duration)
	return v
}

// WithLogger sets the logger shared by the session and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStateDir sets where the file, sqlite and bolt backends keep their data.
// Defaults to ".inkwell" under the discovered root.
func WithStateDir(dir string) Option {
	return func(o *options) {
		o.config["state_dir"] = dir
	}
}

// WithScratchBackend selects the scratch slot backend by name.
func WithScratchBackend(name string) Option {
	return func(o *options) {
		o.scratchBackend = name
	}
}

// WithScratchDSN sets the connection string of the postgres backend or the
// address of the redis backend.
func WithScratchDSN(dsn string) Option {
	return func(o *options) {
		o.config["scratch_dsn"] = dsn
	}
}

// WithScratchQuota bounds the file backend in bytes. Negative disables it.
func WithScratchQuota(bytes int) Option {
	return func(o *options) {
		o.config["scratch_quota"] = bytes
	}
}

// WithScratchKey overrides the slot key.
func WithScratchKey(key string) Option {
	return func(o *options) {
		o.config["scratch_key"] = key
	}
}

// WithScratchStore injects a scratch store, skipping backend selection.
func WithScratchStore(store core.ScratchStore) Option {
	return func(o *options) {
		o.scratch = store
	}
}

// WithNotifierBackend selects the cross-instance channel by name.
func WithNotifierBackend(name string) Option {
	return func(o *options) {
		o.notifierBackend = name
	}
}

// WithNotifierAddr sets the redis address or relay URL of the notifier.
func WithNotifierAddr(addr string) Option {
	return func(o *options) {
		o.config["notifier_addr"] = addr
	}
}

// WithChannel sets the channel name shared by cooperating instances.
func WithChannel(name string) Option {
	return func(o *options) {
		o.config["channel"] = name
	}
}

// WithNotifier injects a notifier, skipping backend selection.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithHub sets the in-process hub used by the broadcast backend.
func WithHub(hub *broadcast.Hub) Option {
	return func(o *options) {
		o.hub = hub
	}
}

// WithFile binds the session to an external file at start.
func WithFile(path string) Option {
	return func(o *options) {
		o.config["file"] = path
	}
}

// WithDebounce sets the idle delay before an automatic save.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.config["debounce"] = d
	}
}

// WithPollInterval sets how often a bound file is checked for external changes.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.config["poll_interval"] = d
	}
}

// WithEventBuffer sets the size of the session event buffer.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithPreview enables markdown rendering of the document.
func WithPreview(enabled bool) Option {
	return func(o *options) {
		o.config["preview"] = enabled
	}
}

// WithUnsafeHTML lets raw HTML through the preview renderer.
func WithUnsafeHTML(enabled bool) Option {
	return func(o *options) {
		o.config["unsafe_html"] = enabled
	}
}

// WithPicker sets the path picker used by open and save-as without a path.
func WithPicker(p core.Picker) Option {
	return func(o *options) {
		o.picker = p
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(c session.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithInstanceID fixes the instance id instead of generating one.
func WithInstanceID(id string) Option {
	return func(o *options) {
		o.config["instance_id"] = id
	}
}

// WithForceTemp forces the state dir into the temp directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default (true) the state dir is redirected into the temp
// directory so development runs never touch real notes.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
