package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration (inkwell.yaml).
//
//	state_dir: .inkwell
//	file: notes/todo.md
//	debounce: 1s
//	poll_interval: 2s
//	scratch:
//	  backend: sqlite
//	notifier:
//	  backend: ws
//	  addr: ws://localhost:8787
//	  channel: inkwell
type FileConfig struct {
	StateDir     string        `yaml:"state_dir"`
	File         string        `yaml:"file"`
	Debounce     time.Duration `yaml:"debounce"`
	PollInterval time.Duration `yaml:"poll_interval"`
	DevSafety    *bool         `yaml:"dev_safety"`

	Scratch struct {
		Backend string `yaml:"backend"`
		DSN     string `yaml:"dsn"`
		Key     string `yaml:"key"`
		Quota   int    `yaml:"quota"`
	} `yaml:"scratch"`

	Notifier struct {
		Backend string `yaml:"backend"`
		Addr    string `yaml:"addr"`
		Channel string `yaml:"channel"`
	} `yaml:"notifier"`

	Preview struct {
		Enabled bool `yaml:"enabled"`
		Unsafe  bool `yaml:"unsafe"`
	} `yaml:"preview"`

	// dir is the directory holding the file; relative paths resolve against it.
	dir string
}

// LoadConfig parses a YAML config file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	fc.dir = filepath.Dir(path)
	if filepath.Base(fc.dir) == ".inkwell" {
		fc.dir = filepath.Dir(fc.dir)
	}
	return &fc, nil
}

// Options translates the file into options. Explicit options passed after
// these take precedence.
func (fc *FileConfig) Options() []Option {
	var opts []Option
	add := func(cond bool, opt Option) {
		if cond {
			opts = append(opts, opt)
		}
	}

	add(fc.StateDir != "", WithStateDir(fc.resolve(fc.StateDir)))
	add(fc.File != "", WithFile(fc.resolve(fc.File)))
	add(fc.Debounce > 0, WithDebounce(fc.Debounce))
	add(fc.PollInterval > 0, WithPollInterval(fc.PollInterval))
	add(fc.DevSafety != nil, WithDevSafety(fc.DevSafety != nil && *fc.DevSafety))

	add(fc.Scratch.Backend != "", WithScratchBackend(fc.Scratch.Backend))
	add(fc.Scratch.DSN != "", WithScratchDSN(fc.Scratch.DSN))
	add(fc.Scratch.Key != "", WithScratchKey(fc.Scratch.Key))
	add(fc.Scratch.Quota != 0, WithScratchQuota(fc.Scratch.Quota))

	add(fc.Notifier.Backend != "", WithNotifierBackend(fc.Notifier.Backend))
	add(fc.Notifier.Addr != "", WithNotifierAddr(fc.Notifier.Addr))
	add(fc.Notifier.Channel != "", WithChannel(fc.Notifier.Channel))

	add(fc.Preview.Enabled, WithPreview(true))
	add(fc.Preview.Unsafe, WithUnsafeHTML(true))
	return opts
}

func (fc *FileConfig) resolve(p string) string {
	if filepath.IsAbs(p) || fc.dir == "" {
		return p
	}
	return filepath.Join(fc.dir, p)
}
