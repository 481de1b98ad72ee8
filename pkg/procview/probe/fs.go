// Package probe reads system state from procfs and sysfs and decodes it
// into typed values. Every probe resolves paths under a configurable root so
// that fixtures can stand in for a live system.
package probe

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FS reads pseudo-files below Root. The zero value is not usable; create one
// with New.
type FS struct {
	Root string

	// Getconf is the command used to query CLK_TCK.
	Getconf string

	log    *slog.Logger
	owners sync.Map // uid -> user name
}

// Option configures an FS.
type Option func(*FS)

// WithLogger attaches a logger. Skipped processes and failed probes are
// logged through it; nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(fs *FS) {
		if l != nil {
			l = l.With(slog.String("component", "probe"))
		}
		fs.log = l
	}
}

// WithGetconf overrides the getconf command.
func WithGetconf(path string) Option {
	return func(fs *FS) { fs.Getconf = path }
}

// New returns an FS rooted at root. An empty root means "/".
func New(root string, opts ...Option) *FS {
	if root == "" {
		root = "/"
	}
	fs := &FS{Root: root, Getconf: "getconf"}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FS) path(elem ...string) string {
	return filepath.Join(append([]string{fs.Root}, elem...)...)
}

func (fs *FS) read(elem ...string) (string, error) {
	p := fs.path(elem...)
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (fs *FS) debug(msg string, args ...any) {
	if fs.log != nil {
		fs.log.Debug(msg, args...)
	}
}

func (fs *FS) warn(msg string, args ...any) {
	if fs.log != nil {
		fs.log.Warn(msg, args...)
	}
}

// ProbeError reports which probe failed.
type ProbeError struct {
	Probe string
	Path  string
	Err   error
}

func (e *ProbeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("probe %s: %s: %v", e.Probe, e.Path, e.Err)
	}
	return fmt.Sprintf("probe %s: %v", e.Probe, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }
