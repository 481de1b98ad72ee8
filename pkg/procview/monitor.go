package procview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/chosenoffset/procview/pkg/procview/dashboard"
	"github.com/chosenoffset/procview/pkg/procview/metrics"
	"github.com/chosenoffset/procview/pkg/procview/probe"
)

// Monitor ties the probes, the collector and the dashboard together. It is
// safe for concurrent use.
type Monitor struct {
	cfg       Config
	fs        *probe.FS
	collector *metrics.Collector
	dashboard *dashboard.Server
	log       *slog.Logger

	mutex   sync.RWMutex
	running bool
	addr    string
	cancel  context.CancelFunc
}

// NewMonitor validates cfg and builds a stopped monitor. A nil logger
// disables logging.
func NewMonitor(cfg Config, log *slog.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	fs := probe.New(cfg.Root, probe.WithLogger(log), probe.WithGetconf(cfg.Getconf))
	collector := metrics.NewCollector(fs, cfg.History, cfg.Interval, log)
	server := dashboard.NewServer(cfg.Addr, collector,
		dashboard.WithLogger(log),
		dashboard.WithMaxClients(cfg.MaxClients))
	collector.Subscribe(server.Publish)

	return &Monitor{
		cfg:       cfg,
		fs:        fs,
		collector: collector,
		dashboard: server,
		log:       log.With(slog.String("component", "monitor")),
	}, nil
}

func (m *Monitor) Config() Config { return m.cfg }

func (m *Monitor) FS() *probe.FS { return m.fs }

func (m *Monitor) Collector() *metrics.Collector { return m.collector }

func (m *Monitor) Dashboard() *dashboard.Server { return m.dashboard }

// Snapshot takes one snapshot through the collector, so it also lands in
// the history.
func (m *Monitor) Snapshot(ctx context.Context) (*probe.Snapshot, error) {
	return m.collector.Collect(ctx)
}

// Start begins periodic collection. It is idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.running {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.collector.Start(ctx)
	m.log.Info("monitor started",
		slog.String("root", m.cfg.Root),
		slog.Duration("interval", m.cfg.Interval))
}

// Stop halts collection and shuts the dashboard down. The dashboard
// cannot be served again afterwards.
func (m *Monitor) Stop() error {
	m.mutex.Lock()
	if !m.running {
		m.mutex.Unlock()
		return nil
	}
	m.running = false
	cancel := m.cancel
	m.mutex.Unlock()

	cancel()
	m.collector.Stop()
	err := m.dashboard.Stop()
	m.log.Info("monitor stopped")
	return err
}

func (m *Monitor) IsRunning() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.running
}

// Addr returns the dashboard address once Run is listening.
func (m *Monitor) Addr() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.addr
}

// Run starts collection and serves the dashboard until ctx is done or the
// server fails. It returns nil after a shutdown caused by ctx.
func (m *Monitor) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}
	return m.serve(ctx, l)
}

// serve runs collection and the dashboard on l. Stop errors are joined
// into a serve failure.
func (m *Monitor) serve(ctx context.Context, l net.Listener) error {
	m.mutex.Lock()
	m.addr = l.Addr().String()
	m.mutex.Unlock()

	m.Start(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- m.dashboard.Serve(l) }()

	select {
	case <-ctx.Done():
		return m.Stop()
	case err := <-serveErr:
		stopErr := m.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return stopErr
		}
		return errors.Join(fmt.Errorf("dashboard: %w", err), stopErr)
	}
}
