package probe

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/chosenoffset/procview/pkg/procview/decode"
)

// Misc holds values that come from neither a key-value nor a positional
// pseudo-file. Either may be nil when unavailable.
type Misc struct {
	Uptime     *float64 `json:"uptime" yaml:"uptime"`   // seconds since boot
	ClockTicks *uint64  `json:"clk_tck" yaml:"clk_tck"` // USER_HZ
}

// Misc reads the first field of /proc/uptime and asks getconf for CLK_TCK.
func (fs *FS) Misc(ctx context.Context) (*Misc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Misc{
		Uptime:     fs.uptime(),
		ClockTicks: fs.clockTicks(ctx),
	}, nil
}

func (fs *FS) uptime() *float64 {
	text, err := fs.read("proc", "uptime")
	if err != nil {
		fs.debug("uptime unavailable", slog.Any("error", err))
		return nil
	}
	// Both fields share a line; only the leading one is wanted.
	f, err := decode.ParseFloat(text)
	if err != nil {
		fs.warn("bad uptime", slog.String("text", text))
		return nil
	}
	return &f
}

func (fs *FS) clockTicks(ctx context.Context) *uint64 {
	if fs.Getconf == "" {
		return nil
	}
	out, err := exec.CommandContext(ctx, fs.Getconf, "CLK_TCK").Output()
	if err != nil {
		fs.debug("getconf failed", slog.Any("error", err))
		return nil
	}
	var n uint64
	if err := decode.UnmarshalString(string(out), &n); err != nil {
		fs.warn("bad CLK_TCK", slog.String("output", string(out)))
		return nil
	}
	return &n
}
