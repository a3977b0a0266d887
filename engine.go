// Package kqle ties the registry, parser, planner, and executor into a
// single query surface. Execute never fails: every error from parse
// through evaluation is captured into the result envelope.
package kqle

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/secsim/go-kql/kql"
	"github.com/secsim/go-kql/kql/annotations"
	"github.com/secsim/go-kql/kql/executor"
	"github.com/secsim/go-kql/kql/parser"
	"github.com/secsim/go-kql/kql/planner"
)

// Config for the Engine.
type Config struct {
	// MaxRows caps every intermediate row-set; zero means unbounded.
	MaxRows int64
	// Now supplies the per-query captured instant. Defaults to
	// time.Now in UTC; tests inject a fixed clock here.
	Now func() time.Time
	// Logger receives one debug entry per executed query. Defaults to
	// a discarding logger.
	Logger *logrus.Logger
	// Handler receives annotation events (operator timings, query
	// completion). Nil disables annotation collection.
	Handler annotations.Handler
}

// Result is the envelope returned by Execute regardless of success.
type Result struct {
	Columns         []string                `json:"columns"`
	Rows            []map[string]kql.Value  `json:"rows"`
	RowCount        int                     `json:"row_count"`
	ExecutionTimeMs float64                 `json:"execution_time_ms"`
	Error           string                  `json:"error,omitempty"`
}

// Engine executes QL queries against a table registry. Concurrent
// Execute calls are safe once registration is finished.
type Engine struct {
	registry *kql.Registry
	planner  *planner.Planner
	executor *executor.Executor
	cfg      Config
	logger   *logrus.Logger
}

// New creates an engine with an empty registry.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	registry := kql.NewRegistry()
	return &Engine{
		registry: registry,
		planner:  planner.New(registry),
		executor: executor.New(executor.Options{MaxRows: cfg.MaxRows, Handler: cfg.Handler}),
		cfg:      cfg,
		logger:   logger,
	}
}

// Registry exposes the engine's table registry for setup-time
// registration.
func (e *Engine) Registry() *kql.Registry {
	return e.registry
}

// Register inserts a deep copy of the table under name.
func (e *Engine) Register(name string, t *kql.Table) error {
	return e.registry.Register(name, t)
}

// Execute runs a query and returns its envelope. Failures of any kind
// come back in the envelope's Error field with zero rows; the elapsed
// time is always the true wall-clock time.
func (e *Engine) Execute(queryStr string) Result {
	start := time.Now()
	queryID := uuid.New().String()
	collector := annotations.NewCollector(e.cfg.Handler)

	rs, err := e.run(queryStr)
	elapsed := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"query_id":   queryID,
			"elapsed_ms": elapsed,
			"error":      err.Error(),
		}).Debug("query failed")
		data := collector.GetDataMap()
		data["error"] = err.Error()
		collector.AddTiming(annotations.QueryCompleted, start, data)
		return Result{
			Columns:         []string{},
			Rows:            []map[string]kql.Value{},
			ExecutionTimeMs: elapsed,
			Error:           err.Error(),
		}
	}

	e.logger.WithFields(logrus.Fields{
		"query_id":   queryID,
		"elapsed_ms": elapsed,
		"rows":       rs.Len(),
	}).Debug("query executed")
	data := collector.GetDataMap()
	data["rows"] = rs.Len()
	collector.AddTiming(annotations.QueryCompleted, start, data)

	return Result{
		Columns:         rs.Schema.Names(),
		Rows:            rs.Maps(),
		RowCount:        rs.Len(),
		ExecutionTimeMs: elapsed,
	}
}

// ExecuteRowSet runs a query and returns the raw row-set, for callers
// that render results themselves. Errors are returned, not enveloped.
func (e *Engine) ExecuteRowSet(queryStr string) (*executor.RowSet, error) {
	return e.run(queryStr)
}

func (e *Engine) run(queryStr string) (*executor.RowSet, error) {
	q, err := parser.Parse(queryStr)
	if err != nil {
		return nil, err
	}
	plan, err := e.planner.Plan(q)
	if err != nil {
		return nil, err
	}
	return e.executor.Execute(plan, e.now())
}

func (e *Engine) now() time.Time {
	if e.cfg.Now != nil {
		return e.cfg.Now().UTC()
	}
	return time.Now().UTC()
}
