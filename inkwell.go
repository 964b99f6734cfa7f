package inkwell

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/inkwell/internal/platform"
	"github.com/aretw0/inkwell/pkg/adapters/broadcast"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/session"
)

// --- Types ---

// Session is a public alias for the session state machine.
type Session = session.Session

// Runtime is a wired session plus the backend resources it owns.
type Runtime = platform.Runtime

// FileConfig is the parsed inkwell.yaml.
type FileConfig = platform.FileConfig

// --- Configuration ---

// Option defines a functional option for configuring a session.
type Option = platform.Option

// WithLogger sets the logger for the session and its adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStateDir sets where local backends keep their data.
func WithStateDir(dir string) Option {
	return platform.WithStateDir(dir)
}

// WithScratchBackend selects the scratch backend: file, sqlite, bolt, postgres or redis.
func WithScratchBackend(name string) Option {
	return platform.WithScratchBackend(name)
}

// WithScratchDSN sets the postgres DSN or redis address.
func WithScratchDSN(dsn string) Option {
	return platform.WithScratchDSN(dsn)
}

// WithScratchStore injects a custom scratch store.
func WithScratchStore(store core.ScratchStore) Option {
	return platform.WithScratchStore(store)
}

// WithNotifierBackend selects the sync channel: none, broadcast, redis or ws.
func WithNotifierBackend(name string) Option {
	return platform.WithNotifierBackend(name)
}

// WithNotifierAddr sets the redis address or relay URL.
func WithNotifierAddr(addr string) Option {
	return platform.WithNotifierAddr(addr)
}

// WithChannel sets the sync channel name.
func WithChannel(name string) Option {
	return platform.WithChannel(name)
}

// WithNotifier injects a custom notifier.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithHub connects broadcast sessions through the given hub.
func WithHub(hub *broadcast.Hub) Option {
	return platform.WithHub(hub)
}

// WithFile binds an external file at start.
func WithFile(path string) Option {
	return platform.WithFile(path)
}

// WithDebounce sets the autosave idle delay.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithPollInterval sets the external change polling interval.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithPreview enables markdown rendering.
func WithPreview(enabled bool) Option {
	return platform.WithPreview(enabled)
}

// WithPicker sets the picker used by open and save-as without a path.
func WithPicker(p core.Picker) Option {
	return platform.WithPicker(p)
}

// WithDevSafety controls the `go run` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New wires a session from options. Start it before use and Close the
// runtime after stopping it.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	return platform.New(ctx, opts...)
}

// LoadConfig parses an inkwell.yaml file.
func LoadConfig(path string) (*FileConfig, error) {
	return platform.LoadConfig(path)
}

// FindConfig locates the config file above dir.
func FindConfig(dir string) (string, error) {
	return platform.FindConfig(dir)
}
