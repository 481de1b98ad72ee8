package probe

import (
	"context"

	"github.com/chosenoffset/procview/pkg/procview/decode"
)

// Memory is /proc/meminfo. All sizes are in kB.
type Memory struct {
	Total        uint64 `proc:"MemTotal" json:"total" yaml:"total"`
	Free         uint64 `proc:"MemFree" json:"free" yaml:"free"`
	Available    uint64 `proc:"MemAvailable" json:"available" yaml:"available"`
	Buffers      uint64 `proc:"Buffers" json:"buffers" yaml:"buffers"`
	Cached       uint64 `proc:"Cached" json:"cached" yaml:"cached"`
	SwapCached   uint64 `proc:"SwapCached" json:"swap_cached" yaml:"swap_cached"`
	Active       uint64 `proc:"Active" json:"active" yaml:"active"`
	Inactive     uint64 `proc:"Inactive" json:"inactive" yaml:"inactive"`
	ActiveAnon   uint64 `proc:"Active(anon)" json:"active_anon" yaml:"active_anon"`
	InactiveAnon uint64 `proc:"Inactive(anon)" json:"inactive_anon" yaml:"inactive_anon"`
	ActiveFile   uint64 `proc:"Active(file)" json:"active_file" yaml:"active_file"`
	InactiveFile uint64 `proc:"Inactive(file)" json:"inactive_file" yaml:"inactive_file"`
	Unevictable  uint64 `proc:"Unevictable" json:"unevictable" yaml:"unevictable"`
	Mlocked      uint64 `proc:"Mlocked" json:"mlocked" yaml:"mlocked"`
	SwapTotal    uint64 `proc:"SwapTotal" json:"swap_total" yaml:"swap_total"`
	SwapFree     uint64 `proc:"SwapFree" json:"swap_free" yaml:"swap_free"`
	Zswap        uint64 `proc:"Zswap,optional" json:"zswap" yaml:"zswap"`
	Zswapped     uint64 `proc:"Zswapped,optional" json:"zswapped" yaml:"zswapped"`
	Dirty        uint64 `proc:"Dirty" json:"dirty" yaml:"dirty"`
	Writeback    uint64 `proc:"Writeback" json:"writeback" yaml:"writeback"`
	AnonPages    uint64 `proc:"AnonPages" json:"anon_pages" yaml:"anon_pages"`
	Mapped       uint64 `proc:"Mapped" json:"mapped" yaml:"mapped"`
	Shmem        uint64 `proc:"Shmem" json:"shmem" yaml:"shmem"`
}

// Used is Total minus Available, in kB.
func (m *Memory) Used() uint64 {
	if m.Available > m.Total {
		return 0
	}
	return m.Total - m.Available
}

// UsedPercent is Used as a share of Total.
func (m *Memory) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used()) / float64(m.Total) * 100
}

// Memory decodes /proc/meminfo.
func (fs *FS) Memory(ctx context.Context) (*Memory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := fs.read("proc", "meminfo")
	if err != nil {
		return nil, &ProbeError{Probe: "memory", Err: err}
	}
	var m Memory
	if err := decode.UnmarshalString(text, &m); err != nil {
		return nil, &ProbeError{Probe: "memory", Path: fs.path("proc", "meminfo"), Err: err}
	}
	fs.debug("read meminfo", "total_kb", m.Total)
	return &m, nil
}
