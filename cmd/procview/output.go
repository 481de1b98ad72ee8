package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/procview/pkg/procview"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

type outputFormat int

const (
	formatJSON outputFormat = iota
	formatYAML
)

func parseFormat(s string) (outputFormat, error) {
	switch s {
	case "", "json":
		return formatJSON, nil
	case "yaml", "yml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("unknown format %q (want json or yaml)", s)
}

func (f outputFormat) String() string {
	if f == formatYAML {
		return "yaml"
	}
	return "json"
}

func write(w io.Writer, f outputFormat, v any) error {
	if f == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// probeFS builds the probe reader for cfg. Probe warnings go to the
// configured logger.
func probeFS(cfg procview.Config, logw io.Writer) *probe.FS {
	return probe.New(cfg.Root,
		probe.WithGetconf(cfg.Getconf),
		probe.WithLogger(cfg.NewLogger(logw)))
}

// runProbe reads the section named by cmd.
func runProbe(ctx context.Context, fs *probe.FS, cmd string) (any, error) {
	switch cmd {
	case "memory":
		return fs.Memory(ctx)
	case "cpu":
		return fs.CPUs(ctx)
	case "ps":
		return fs.Processes(ctx)
	case "net":
		return fs.Network(ctx)
	case "misc":
		return fs.Misc(ctx)
	case "all":
		return fs.Snapshot(ctx)
	}
	return nil, fmt.Errorf("unknown probe %q", cmd)
}

func cmdProbe(ctx context.Context, cmd string, cfg procview.Config, format outputFormat, stdout, stderr io.Writer) error {
	v, err := runProbe(ctx, probeFS(cfg, stderr), cmd)
	if err != nil {
		return err
	}
	return write(stdout, format, v)
}
