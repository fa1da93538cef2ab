package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/sounds_round_trip.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sounds_round_trip", scenario.Name)
	require.Len(t, scenario.Flow, 5)
	assert.Equal(t, OpSet, scenario.Flow[0].Op)
	require.NotNil(t, scenario.Flow[0].Value)
	assert.Equal(t, "AAAA==", *scenario.Flow[0].Value)

	require.NotNil(t, scenario.Flow[1].Expect)
	require.NotNil(t, scenario.Flow[1].Expect.Found)
	assert.True(t, *scenario.Flow[1].Expect.Found)

	require.Len(t, scenario.Assertions, 3)
	assert.Equal(t, AssertFinalEntries, scenario.Assertions[0].Type)
	assert.NotNil(t, scenario.Assertions[0].Entries, "{} must decode to an empty, non-nil map")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_EmptyValueAllowed(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: empty
description: empty strings are values
flow:
  - store: texts
    op: set
    key: k
    value: ""
`))
	require.NoError(t, err)
	require.NotNil(t, scenario.Flow[0].Value)
	assert.Equal(t, "", *scenario.Flow[0].Value)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: d\nflows: []\n",
			wantErr: "field flows not found",
		},
		{
			name:    "missing name",
			yaml:    "description: d\nflow: [{store: s, op: keys}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nflow: [{store: s, op: keys}]\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: x\ndescription: d\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown op",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: upsert}]\n",
			wantErr: `unknown op "upsert"`,
		},
		{
			name:    "missing key",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: get}]\n",
			wantErr: "key is required for get",
		},
		{
			name:    "set without value",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: set, key: k}]\n",
			wantErr: "value is required for set",
		},
		{
			name:    "invalid store name",
			yaml:    "name: x\ndescription: d\nflow: [{store: ../s, op: keys}]\n",
			wantErr: "invalid name",
		},
		{
			name:    "add_collection without collection",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: add_collection}]\n",
			wantErr: "collection is required",
		},
		{
			name:    "expect in setup",
			yaml:    "name: x\ndescription: d\nsetup: [{store: s, op: count, expect: {count: 0}}]\nflow: [{store: s, op: keys}]\n",
			wantErr: "expect is not allowed in setup",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: keys}]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "final_entries without entries",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: keys}]\nassertions: [{type: final_entries, store: s}]\n",
			wantErr: "entries is required",
		},
		{
			name:    "trace_order without ops",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: keys}]\nassertions: [{type: trace_order}]\n",
			wantErr: "ops list is required",
		},
		{
			name:    "database_version without version",
			yaml:    "name: x\ndescription: d\nflow: [{store: s, op: keys}]\nassertions: [{type: database_version, store: s}]\n",
			wantErr: "version must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
