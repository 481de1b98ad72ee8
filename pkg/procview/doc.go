// Package procview decodes the text files the Linux kernel exposes under
// /proc and /sys into typed Go values, and serves them as a live dashboard.
//
// # Quick Start
//
// Decode a record-shaped file directly into a struct:
//
//	type Memory struct {
//		Total     uint64 `proc:"MemTotal"`
//		Available uint64 `proc:"MemAvailable"`
//	}
//
//	m, err := decode.Decode[Memory](data)
//
// Or run the probes against the live system:
//
//	fs := probe.New("/")
//	snap, err := fs.Snapshot(ctx)
//
// # Monitoring
//
// A Monitor collects a snapshot every interval, keeps a bounded history and
// pushes each snapshot to dashboard clients over a websocket:
//
//	m, err := procview.NewMonitor(procview.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	return m.Run(ctx)
//
// # Architecture
//
//   - parser: grammars, tokenizer and the forward-only token stream
//   - decode: struct binding, the visitor protocol and the positional
//     /proc/[pid]/stat decoder
//   - probe: meminfo, cpuinfo, process, network and misc readers
//   - metrics: snapshot collector and HTTP request metrics
//   - dashboard: JSON API and websocket stream
//
// # Struct Tags
//
// Fields are matched by the proc tag, falling back to the field name:
//
//	Field uint64 `proc:"Key"`           // required, rule from the Go type
//	Field *uint64 `proc:"Key"`          // optional
//	Field string `proc:"Key,optional"`  // optional, zero when absent
//	Field []string `proc:"flags,words"` // whitespace separated list
//	Field int `proc:"-"`                // ignored
//
// Integer values accept a trailing unit such as "kB", which is dropped.
// Booleans are "yes" or "no".
//
// # Configuration
//
// LoadConfig reads a YAML file over DefaultConfig:
//
//	root: /
//	interval: 2s
//	history: 1800
//	addr: localhost:9090
//	log_level: debug
package procview
