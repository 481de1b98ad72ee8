package probe

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/user"
	"sort"
	"strconv"
	"syscall"

	"github.com/chosenoffset/procview/pkg/procview/decode"
)

// Process is a decoded /proc/[pid]/stat line and the name of its owner.
type Process struct {
	decode.ProcessStat `yaml:",inline"`
	User               string `json:"user" yaml:"user"`
}

// Processes decodes the stat line of every process under /proc, sorted by
// PID. Processes that exit while being read, or whose stat line does not
// decode, are skipped.
func (fs *FS) Processes(ctx context.Context) ([]Process, error) {
	entries, err := os.ReadDir(fs.path("proc"))
	if err != nil {
		return nil, &ProbeError{Probe: "process", Err: err}
	}

	procs := make([]Process, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}

		p, err := fs.Process(e.Name())
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fs.debug("process vanished", slog.String("pid", e.Name()))
			} else {
				fs.warn("skipping process", slog.String("pid", e.Name()), slog.Any("error", err))
			}
			continue
		}
		procs = append(procs, *p)
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

// Process decodes /proc/[pid]/stat for one process.
func (fs *FS) Process(pid string) (*Process, error) {
	line, err := fs.read("proc", pid, "stat")
	if err != nil {
		return nil, &ProbeError{Probe: "process", Err: err}
	}
	stat, err := decode.DecodePositional(line, decode.StatFieldCount)
	if err != nil {
		return nil, &ProbeError{Probe: "process", Path: fs.path("proc", pid, "stat"), Err: err}
	}
	return &Process{ProcessStat: *stat, User: fs.owner(pid)}, nil
}

// owner resolves the user owning /proc/[pid]. It falls back to the numeric
// uid when the name cannot be looked up, and to "" when the directory
// cannot be stat'ed.
func (fs *FS) owner(pid string) string {
	info, err := os.Stat(fs.path("proc", pid))
	if err != nil {
		return ""
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	uid := strconv.FormatUint(uint64(st.Uid), 10)
	if name, ok := fs.owners.Load(uid); ok {
		return name.(string)
	}
	name := uid
	if u, err := user.LookupId(uid); err == nil {
		name = u.Username
	}
	fs.owners.Store(uid, name)
	return name
}
