package hostprep

import (
	"context"
	"net/http"

	cfg "github.com/loykin/hostprep/internal/config"
	"github.com/loykin/hostprep/internal/continuation"
	"github.com/loykin/hostprep/internal/gate"
	"github.com/loykin/hostprep/internal/history"
	"github.com/loykin/hostprep/internal/lock"
	"github.com/loykin/hostprep/internal/marker"
	"github.com/loykin/hostprep/internal/metrics"
	"github.com/loykin/hostprep/internal/phase"
	"github.com/loykin/hostprep/internal/provision"
	"github.com/loykin/hostprep/internal/runner"
	iapi "github.com/loykin/hostprep/internal/server"
	"github.com/loykin/hostprep/internal/status"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.FileConfig

type StatusRecord = status.Record

type HistoryEvent = history.Event

type HistorySink = history.Sink

// Sentinel errors callers map to exit codes or retries.
var (
	ErrContention  = lock.ErrContention
	ErrWaitTimeout = gate.ErrTimeout
)

// Family names for Run.
const (
	FamilyProvision = provision.FamilyProvision
	FamilyRedeploy  = provision.FamilyRedeploy
	FamilyCleanup   = provision.FamilyCleanup
)

// Orchestrator is a thin facade over the internal controller, assembled from
// a loaded config. It provides a stable public API for embedding.
type Orchestrator struct {
	fc   *Config
	ctrl *phase.Controller
	run  runner.Runner
	hist history.Sink
}

// LoadConfig parses the TOML config at path, applying defaults and
// environment overrides. An empty path yields pure defaults.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// New assembles an orchestrator from fc. The history sink is optional and
// opened lazily from fc.History.DSN; a DSN that cannot be opened is an error
// here rather than a silent omission.
func New(fc *Config) (*Orchestrator, error) {
	var sink history.Sink
	if fc.History.DSN != "" {
		s, err := history.NewSinkFromDSN(fc.History.DSN)
		if err != nil {
			return nil, err
		}
		sink = s
	}
	ge := fc.GlobalEnv()
	r := &runner.ExecRunner{Env: &ge, Log: fc.LogConfig()}
	ctrl := &phase.Controller{
		Lock:            lock.New(fc.LockFile),
		Marker:          marker.New(fc.MarkerFile),
		Status:          status.New(fc.StatusFile),
		Registrar:       continuation.NewSystemd(r),
		Rebooter:        &phase.SystemdRebooter{Runner: r},
		ReadinessMarker: fc.ReadinessMarker,
		ResumeCommand:   fc.ResumeCommand,
		History:         sink,
	}
	return &Orchestrator{fc: fc, ctrl: ctrl, run: r, hist: sink}, nil
}

// Close releases the history sink, if any.
func (o *Orchestrator) Close() error {
	if o.hist != nil {
		return o.hist.Close()
	}
	return nil
}

// Run executes the named family's sequence from its persisted marker.
func (o *Orchestrator) Run(ctx context.Context, family string) error {
	fam, ok := o.fc.Family(family)
	if !ok {
		fam = cfg.FamilyConfig{}
	}
	r := o.run
	if fam.WorkDir != "" {
		ge := o.fc.GlobalEnv()
		r = &runner.ExecRunner{Env: &ge, Log: o.fc.LogConfig(), WorkDir: fam.WorkDir}
	}
	seq, err := provision.Sequence(family, fam, r)
	if err != nil {
		return err
	}
	return o.ctrl.Run(ctx, seq)
}

func (o *Orchestrator) RunProvision(ctx context.Context) error {
	return o.Run(ctx, FamilyProvision)
}

func (o *Orchestrator) RunRedeploy(ctx context.Context) error {
	return o.Run(ctx, FamilyRedeploy)
}

func (o *Orchestrator) RunCleanup(ctx context.Context) error {
	return o.Run(ctx, FamilyCleanup)
}

// Status returns the current status record, or the unknown sentinel.
func (o *Orchestrator) Status() StatusRecord {
	return status.New(o.fc.StatusFile).Read()
}

// Ready reports whether no provisioning run is pending or in flight.
func (o *Orchestrator) Ready() bool {
	ok, err := gate.FileAbsent(o.fc.ReadinessMarker)()
	return err == nil && ok
}

// WaitReady blocks until the readiness marker disappears, using the
// configured gate timeout and poll interval.
func (o *Orchestrator) WaitReady() error {
	return gate.WaitFor("host readiness", gate.FileAbsent(o.fc.ReadinessMarker),
		o.fc.Gate.Timeout, o.fc.Gate.PollInterval)
}

// Reset clears the phase marker and the status record so the next run starts
// from the first phase and observers see the unknown sentinel until then.
// It refuses to touch anything while another invocation holds the lock.
func (o *Orchestrator) Reset() error {
	m := lock.New(o.fc.LockFile)
	if err := m.Acquire(); err != nil {
		return err
	}
	defer m.Release()
	if err := marker.New(o.fc.MarkerFile).Clear(); err != nil {
		return err
	}
	return status.New(o.fc.StatusFile).Clear()
}

// NewHTTPServer starts the read-only status HTTP server on addr.
func (o *Orchestrator) NewHTTPServer(addr, basePath string) *http.Server {
	var sqlSink *history.SQLSink
	if s, ok := o.hist.(*history.SQLSink); ok {
		sqlSink = s
	}
	rt := iapi.NewRouter(status.New(o.fc.StatusFile), sqlSink, o.Ready, basePath)
	return iapi.NewServer(addr, rt)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.RegisterDefault() }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error { return metrics.Serve(addr) }
