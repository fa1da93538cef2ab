package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return scenario
}

func TestRun_RequiresDir(t *testing.T) {
	scenario := mustParse(t, "name: x\ndescription: d\nflow: [{store: s, op: keys}]\n")
	_, err := Run(context.Background(), scenario, Options{})
	require.Error(t, err)
}

func TestRun_Pass(t *testing.T) {
	scenario := mustParse(t, `
name: pass
description: set then read back
flow:
  - {store: sounds, op: set, key: k, value: v}
  - store: sounds
    op: get
    key: k
    expect: {found: true, value: v}
  - store: sounds
    op: count
    expect: {count: 1}
`)

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, 1, result.Trace[0].Seq)
	assert.Equal(t, 3, result.Trace[2].Seq)
}

func TestRun_ReportsMismatches(t *testing.T) {
	scenario := mustParse(t, `
name: mismatch
description: every expectation is wrong
flow:
  - {store: sounds, op: set, key: k, value: v}
  - store: sounds
    op: get
    key: k
    expect: {found: true, value: other}
  - store: sounds
    op: has
    key: k
    expect: {present: false}
  - store: sounds
    op: keys
    expect: {keys: [a]}
  - store: sounds
    op: entries
    expect: {entries: {k: w}}
  - store: sounds
    op: count
    expect: {count: 2}
  - store: sounds
    op: set
    key: k2
    value: v2
    expect: {error: VERSION_CHANGED}
`)

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], `expected value "other", got "v"`)
	assert.Contains(t, result.Errors[1], "expected present=false")
	assert.Contains(t, result.Errors[2], "expected keys [a]")
	assert.Contains(t, result.Errors[3], "expected entries")
	assert.Contains(t, result.Errors[4], "expected count 2, got 1")
	assert.Contains(t, result.Errors[5], "expected error VERSION_CHANGED")
}

func TestRun_UnexpectedErrorFailsStep(t *testing.T) {
	scenario := mustParse(t, `
name: invalidated
description: writes after a version change fail
flow:
  - {store: sounds, op: set, key: a, value: "1"}
  - {store: sounds, op: add_collection, collection: voices}
  - {store: sounds, op: set, key: b, value: "2"}
`)

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error VERSION_CHANGED")
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := mustParse(t, `
name: setup_fails
description: setup writes must succeed
setup:
  - {store: sounds, op: set, key: a, value: "1"}
  - {store: sounds, op: add_collection, collection: voices}
  - {store: sounds, op: set, key: b, value: "2"}
flow:
  - {store: sounds, op: keys}
`)

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[2]")
	require.NotNil(t, result)
	assert.Len(t, result.Trace, 3)
}

func TestRun_StoresAreIsolated(t *testing.T) {
	scenario := mustParse(t, `
name: isolation
description: same key in two stores
flow:
  - {store: texts, op: set, key: k, value: text}
  - {store: sounds, op: set, key: k, value: sound}
  - store: texts
    op: get
    key: k
    expect: {value: text}
assertions:
  - type: final_entries
    store: sounds
    entries: {k: sound}
  - type: trace_count
    store: texts
    op: set
    count: 1
`)

	result, err := Run(context.Background(), scenario, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
