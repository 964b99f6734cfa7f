package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/inkwell/pkg/adapters/bolt"
	"github.com/aretw0/inkwell/pkg/adapters/broadcast"
	"github.com/aretw0/inkwell/pkg/adapters/fs"
	"github.com/aretw0/inkwell/pkg/adapters/markdown"
	"github.com/aretw0/inkwell/pkg/adapters/postgres"
	"github.com/aretw0/inkwell/pkg/adapters/redis"
	"github.com/aretw0/inkwell/pkg/adapters/sqlite"
	"github.com/aretw0/inkwell/pkg/adapters/ws"
	"github.com/aretw0/inkwell/pkg/core"
	"github.com/aretw0/inkwell/pkg/session"
)

// DefaultChannel is the channel shared by cooperating instances.
const DefaultChannel = "inkwell"

// processHub connects every session of this process that uses the broadcast
// backend without an explicit hub.
var processHub = broadcast.NewHub(0)

// Runtime is a wired session together with the resources it owns.
type Runtime struct {
	Session  *session.Session
	Files    *fs.FileStore
	StateDir string

	closers []io.Closer
}

// Close releases backend connections. Stop the session first.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds a session and its adapters from options. The session is not
// started.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	stateDir, err := resolveStateDir(o)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		Files:    fs.NewFileStore(fs.Config{Logger: logger}),
		StateDir: stateDir,
	}

	scratch := o.scratch
	if scratch == nil {
		scratch, err = openScratch(ctx, o, stateDir, logger, rt)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	notifier := o.notifier
	if notifier == nil {
		notifier, err = openNotifier(ctx, o, logger, rt)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	var renderer core.Renderer
	if o.bool("preview", false) {
		renderer = markdown.New(markdown.Options{Unsafe: o.bool("unsafe_html", false)})
	}

	sess, err := session.New(session.Config{
		ScratchKey:    o.string("scratch_key", ""),
		DebounceDelay: o.duration("debounce"),
		PollInterval:  o.duration("poll_interval"),
		Scratch:       scratch,
		Files:         rt.Files,
		Notifier:      notifier,
		Renderer:      renderer,
		Picker:        o.picker,
		Clock:         o.clock,
		Logger:        logger,
		InstanceID:    o.string("instance_id", ""),
		EventBuffer:   o.int("event_buffer"),
		File:          o.string("file", ""),
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Session = sess

	logger.Debug("session wired",
		"state_dir", stateDir,
		"scratch", o.scratchBackend,
		"notifier", o.notifierBackend,
	)
	return rt, nil
}

func resolveStateDir(o *options) (string, error) {
	dir := o.string("state_dir", "")
	if dir == "" {
		if root, err := FindRoot("."); err == nil {
			dir = filepath.Join(root, ".inkwell")
		}
	}
	sandbox := o.bool("temp_dir", false) || (o.bool("dev_safety", true) && IsDevRun())
	dir = ResolveStateDir(dir, sandbox)

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve state dir: %w", err)
	}
	return abs, nil
}

func openScratch(ctx context.Context, o *options, stateDir string, logger *slog.Logger, rt *Runtime) (core.ScratchStore, error) {
	switch o.scratchBackend {
	case ScratchFile, "":
		return fs.NewScratchStore(stateDir, o.int("scratch_quota"), logger), nil

	case ScratchSQLite:
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
		store, err := sqlite.Open(ctx, filepath.Join(stateDir, "scratch.sqlite3"), logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		return store, nil

	case ScratchBolt:
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
		store, err := bolt.Open(filepath.Join(stateDir, "scratch.db"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		return store, nil

	case ScratchPostgres:
		dsn := o.string("scratch_dsn", os.Getenv("DATABASE_URL"))
		if dsn == "" {
			return nil, errors.New("postgres scratch requires a dsn")
		}
		store, err := postgres.Connect(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, store)
		return store, nil

	case ScratchRedis:
		client, err := redis.Dial(ctx, redis.Config{
			Addr:    o.string("scratch_dsn", os.Getenv("REDIS_ADDR")),
			Channel: o.string("channel", DefaultChannel),
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		return client, nil
	}
	return nil, fmt.Errorf("unknown scratch backend %q", o.scratchBackend)
}

func openNotifier(ctx context.Context, o *options, logger *slog.Logger, rt *Runtime) (core.Notifier, error) {
	channel := o.string("channel", DefaultChannel)

	switch o.notifierBackend {
	case NotifierNone:
		return nil, nil

	case NotifierBroadcast, "":
		hub := o.hub
		if hub == nil {
			hub = processHub
		}
		return hub.Join(channel), nil

	case NotifierRedis:
		client, err := redis.Dial(ctx, redis.Config{
			Addr:    o.string("notifier_addr", os.Getenv("REDIS_ADDR")),
			Channel: channel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		return client, nil

	case NotifierWS:
		client, err := ws.Dial(ctx, ws.ClientConfig{
			URL:     o.string("notifier_addr", "ws://localhost:8787"),
			Channel: channel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, client)
		return client, nil
	}
	return nil, fmt.Errorf("unknown notifier backend %q", o.notifierBackend)
}
