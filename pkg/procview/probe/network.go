package probe

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/chosenoffset/procview/pkg/procview/decode"
)

// NetworkDevice holds the byte counters of one interface. A counter is nil
// when its statistics file is missing or unreadable.
type NetworkDevice struct {
	Name    string  `json:"name" yaml:"name"`
	RxBytes *uint64 `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes *uint64 `json:"tx_bytes" yaml:"tx_bytes"`
}

// Network reads /sys/class/net/*/statistics/{rx,tx}_bytes, sorted by
// device name.
func (fs *FS) Network(ctx context.Context) ([]NetworkDevice, error) {
	entries, err := os.ReadDir(fs.path("sys", "class", "net"))
	if err != nil {
		return nil, &ProbeError{Probe: "network", Err: err}
	}

	devices := make([]NetworkDevice, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		devices = append(devices, NetworkDevice{
			Name:    name,
			RxBytes: fs.counter(name, "rx_bytes"),
			TxBytes: fs.counter(name, "tx_bytes"),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices, nil
}

func (fs *FS) counter(dev, file string) *uint64 {
	text, err := fs.read("sys", "class", "net", dev, "statistics", file)
	if err != nil {
		fs.debug("counter unavailable", slog.String("device", dev), slog.String("file", file))
		return nil
	}
	var n uint64
	if err := decode.UnmarshalString(text, &n); err != nil {
		fs.warn("bad counter", slog.String("device", dev), slog.String("file", file), slog.Any("error", err))
		return nil
	}
	return &n
}
