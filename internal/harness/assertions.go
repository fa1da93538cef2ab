package harness

import (
	"context"
	"fmt"
	"maps"

	"github.com/roach88/permstore/internal/lifecycle"
	"github.com/roach88/permstore/internal/store"
)

// checkAssertions evaluates every assertion and records failures.
func checkAssertions(ctx context.Context, h *Harness, assertions []Assertion, result *Result) {
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFinalEntries:
			err = assertFinalEntries(ctx, h, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a.Ops)
		case AssertDatabaseVersion:
			err = assertDatabaseVersion(ctx, h, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
}

// assertFinalEntries reads the store through a fresh instance, so the check
// holds even when the scenario's own instance was invalidated.
func assertFinalEntries(ctx context.Context, h *Harness, a Assertion) error {
	s := store.NewStrings(a.Store, h.opts)
	defer s.Close()

	if err := s.Ready(ctx); err != nil {
		return fmt.Errorf("open %s: %w", a.Store, err)
	}
	got := entryMap(s.Entries(ctx))
	if !maps.Equal(got, a.Entries) {
		return fmt.Errorf("expected %v, got %v", a.Entries, got)
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Op == a.Op && (a.Store == "" || ev.Store == a.Store) {
			n++
		}
	}
	if n != a.Count {
		return fmt.Errorf("expected %s to appear %d times, got %d", a.Op, a.Count, n)
	}
	return nil
}

// assertTraceOrder checks ops appear in the trace as a subsequence.
func assertTraceOrder(trace []TraceEvent, ops []string) error {
	next := 0
	for _, ev := range trace {
		if next < len(ops) && ev.Op == ops[next] {
			next++
		}
	}
	if next < len(ops) {
		return fmt.Errorf("expected order %v, %s not found after position %d", ops, ops[next], next)
	}
	return nil
}

func assertDatabaseVersion(ctx context.Context, h *Harness, a Assertion) error {
	conn, err := lifecycle.Open(ctx, a.Store, a.Store, h.opts)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.Store, err)
	}
	defer conn.Close()

	if conn.Version() != a.Version {
		return fmt.Errorf("expected version %d, got %d", a.Version, conn.Version())
	}
	return nil
}
