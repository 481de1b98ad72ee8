package probe

import (
	"context"
	"log/slog"
	"time"
)

// Snapshot is one reading of every probe. A probe that fails leaves its
// section nil and records the failure in Errors.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Memory    *Memory         `json:"memory" yaml:"memory"`
	CPUs      []CPU           `json:"cpus" yaml:"cpus"`
	Processes []Process       `json:"processes" yaml:"processes"`
	Network   []NetworkDevice `json:"network" yaml:"network"`
	Misc      *Misc           `json:"misc" yaml:"misc"`
	Errors    []string        `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Snapshot runs every probe. It only fails when ctx is done.
func (fs *FS) Snapshot(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{Timestamp: time.Now()}

	var err error
	if s.Memory, err = fs.Memory(ctx); err != nil {
		s.fail(fs, "memory", err)
	}
	if s.CPUs, err = fs.CPUs(ctx); err != nil {
		s.fail(fs, "cpu", err)
	}
	if s.Processes, err = fs.Processes(ctx); err != nil {
		s.fail(fs, "process", err)
	}
	if s.Network, err = fs.Network(ctx); err != nil {
		s.fail(fs, "network", err)
	}
	if s.Misc, err = fs.Misc(ctx); err != nil {
		s.fail(fs, "misc", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Snapshot) fail(fs *FS, probe string, err error) {
	fs.warn("probe failed", slog.String("probe", probe), slog.Any("error", err))
	s.Errors = append(s.Errors, err.Error())
}
