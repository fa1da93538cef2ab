package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/permstore/internal/lifecycle"
	"github.com/roach88/permstore/internal/store"
)

// Options configures a scenario run.
type Options struct {
	// Dir holds the scenario's databases. Required; use a fresh directory
	// per run for isolation.
	Dir string

	// BlockedTimeout and PollInterval default to values suited to tests.
	BlockedTimeout time.Duration
	PollInterval   time.Duration

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Harness executes scenario steps against lazily opened stores.
type Harness struct {
	opts   lifecycle.Options
	stores map[string]*store.Store[string]
	logger *slog.Logger
}

func newHarness(opts Options) *Harness {
	if opts.BlockedTimeout <= 0 {
		opts.BlockedTimeout = 2 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 20 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}
	return &Harness{
		opts: lifecycle.Options{
			Dir:            opts.Dir,
			BlockedTimeout: opts.BlockedTimeout,
			PollInterval:   opts.PollInterval,
			Logger:         opts.Logger,
		},
		stores: make(map[string]*store.Store[string]),
		logger: opts.Logger,
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Execute setup steps (any failure aborts the run with an error)
//  2. Execute flow steps, checking each expect clause
//  3. Evaluate assertions against the trace and fresh store instances
//
// A returned error means the scenario could not be executed; failed
// expectations are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("harness: Dir is required")
	}

	h := newHarness(opts)
	defer func() {
		if err := h.close(); err != nil {
			h.logger.Warn("failed to close scenario stores", "error", err)
		}
	}()

	result := NewResult()

	for i, step := range scenario.Setup {
		outcome := h.execute(ctx, step)
		result.AddTrace(traceEvent("setup", step, outcome))
		if code, failed := outcome["error"]; failed {
			return result, fmt.Errorf("setup[%d] %s %s failed: %v", i, step.Op, step.Store, code)
		}
	}

	for i, step := range scenario.Flow {
		outcome := h.execute(ctx, step)
		result.AddTrace(traceEvent("flow", step, outcome))
		checkExpect(fmt.Sprintf("flow[%d] %s", i, step.Op), step.Expect, outcome, result)
	}

	checkAssertions(ctx, h, scenario.Assertions, result)

	h.logger.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}

func traceEvent(phase string, step Step, outcome map[string]any) TraceEvent {
	return TraceEvent{
		Phase:      phase,
		Store:      step.Store,
		Op:         step.Op,
		Key:        step.Key,
		Value:      step.Value,
		Collection: step.Collection,
		Outcome:    outcome,
	}
}

// store returns the scenario's instance for name, creating it on first use.
func (h *Harness) store(name string) *store.Store[string] {
	s, ok := h.stores[name]
	if !ok {
		s = store.NewStrings(name, h.opts)
		h.stores[name] = s
	}
	return s
}

func (h *Harness) close() error {
	var result *multierror.Error
	for name, s := range h.stores {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

// execute runs one step and describes its outcome.
func (h *Harness) execute(ctx context.Context, step Step) map[string]any {
	if step.Op == OpAddCollection {
		conn, err := lifecycle.Open(ctx, step.Store, step.Collection, h.opts)
		if err != nil {
			return map[string]any{"error": errorCode(err)}
		}
		defer conn.Close()
		return map[string]any{"ok": true, "version": conn.Version()}
	}

	s := h.store(step.Store)
	switch step.Op {
	case OpSet:
		if err := s.Set(ctx, step.Key, *step.Value); err != nil {
			return map[string]any{"error": errorCode(err)}
		}
		return map[string]any{"ok": true}
	case OpGet:
		v, found := s.Get(ctx, step.Key)
		if !found {
			return map[string]any{"found": false}
		}
		return map[string]any{"found": true, "value": v}
	case OpHas:
		return map[string]any{"present": s.Has(ctx, step.Key)}
	case OpDelete:
		s.Delete(ctx, step.Key)
		return map[string]any{"ok": true}
	case OpClear:
		s.Clear(ctx)
		return map[string]any{"ok": true}
	case OpKeys:
		return map[string]any{"keys": s.Keys(ctx)}
	case OpValues:
		return map[string]any{"values": s.Values(ctx)}
	case OpEntries:
		return map[string]any{"entries": s.Entries(ctx)}
	case OpCount:
		return map[string]any{"count": s.Count(ctx)}
	default:
		return map[string]any{"error": "UNKNOWN_OP"}
	}
}

// errorCode reduces err to a stable code for traces.
func errorCode(err error) string {
	var lerr *lifecycle.Error
	switch {
	case errors.As(err, &lerr):
		return string(lerr.Code)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED"
	default:
		return "ERROR"
	}
}

// checkExpect compares outcome with expect and records mismatches.
func checkExpect(where string, expect *Expect, outcome map[string]any, result *Result) {
	code, failed := outcome["error"].(string)
	if expect == nil || expect.Error == "" {
		if failed {
			result.AddError(fmt.Sprintf("%s: unexpected error %s", where, code))
		}
		if expect == nil {
			return
		}
	} else if code != expect.Error {
		result.AddError(fmt.Sprintf("%s: expected error %s, got %q", where, expect.Error, code))
	}

	if expect.Found != nil {
		if got, _ := outcome["found"].(bool); got != *expect.Found {
			result.AddError(fmt.Sprintf("%s: expected found=%t, got %t", where, *expect.Found, got))
		}
	}
	if expect.Value != nil {
		if got, _ := outcome["value"].(string); got != *expect.Value {
			result.AddError(fmt.Sprintf("%s: expected value %q, got %q", where, *expect.Value, got))
		}
	}
	if expect.Present != nil {
		if got, _ := outcome["present"].(bool); got != *expect.Present {
			result.AddError(fmt.Sprintf("%s: expected present=%t, got %t", where, *expect.Present, got))
		}
	}
	if expect.Keys != nil {
		if got, _ := outcome["keys"].([]string); !slices.Equal(got, expect.Keys) {
			result.AddError(fmt.Sprintf("%s: expected keys %v, got %v", where, expect.Keys, got))
		}
	}
	if expect.Values != nil {
		if got, _ := outcome["values"].([]string); !slices.Equal(got, expect.Values) {
			result.AddError(fmt.Sprintf("%s: expected values %v, got %v", where, expect.Values, got))
		}
	}
	if expect.Entries != nil {
		entries, _ := outcome["entries"].([]store.Entry[string])
		if got := entryMap(entries); !maps.Equal(got, expect.Entries) {
			result.AddError(fmt.Sprintf("%s: expected entries %v, got %v", where, expect.Entries, got))
		}
	}
	if expect.Count != nil {
		if got, _ := outcome["count"].(int); got != *expect.Count {
			result.AddError(fmt.Sprintf("%s: expected count %d, got %d", where, *expect.Count, got))
		}
	}
}

func entryMap(entries []store.Entry[string]) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}
