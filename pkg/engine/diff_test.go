package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		existing    State
		desired     State
		patchable   []string
		differences []string
		wantPatch   []PatchOp
		wantChanges State
	}{
		{
			name:     "identical",
			existing: State{"name": "A", "type": "shared"},
			desired:  State{"name": "A", "type": "shared"},
		},
		{
			name:     "nil desired never differs",
			existing: State{"name": "A", "description": "x"},
			desired:  State{"name": "A", "description": nil},
		},
		{
			name:        "patchable difference",
			existing:    State{"id": "1", "name": "A", "description": "x"},
			desired:     State{"name": "A", "description": "y"},
			patchable:   []string{"name", "description"},
			differences: []string{"description"},
			wantPatch:   []PatchOp{{Op: "replace", Path: "/description", Value: "y"}},
		},
		{
			name:        "non-patchable difference",
			existing:    State{"id": "1", "name": "A", "type": "shared"},
			desired:     State{"name": "A", "type": "managed"},
			patchable:   []string{"name"},
			differences: []string{"type"},
			wantChanges: State{"type": "managed"},
		},
		{
			name:        "mixed differences are not patchable",
			existing:    State{"name": "A", "type": "shared"},
			desired:     State{"name": "B", "type": "managed"},
			patchable:   []string{"name"},
			differences: []string{"name", "type"},
			wantChanges: State{"name": "B", "type": "managed"},
		},
		{
			name:        "missing attribute differs",
			existing:    State{"name": "A"},
			desired:     State{"name": "A", "ownerId": "u1"},
			patchable:   []string{"ownerId"},
			differences: []string{"ownerId"},
			wantPatch:   []PatchOp{{Op: "replace", Path: "/ownerId", Value: "u1"}},
		},
		{
			name:     "numbers compare across types",
			existing: State{"clockToleranceSec": float64(5)},
			desired:  State{"clockToleranceSec": 5},
		},
		{
			name:     "typed slices compare to decoded json",
			existing: State{"validOrigins": []any{"a.example.com", "b.example.com"}},
			desired:  State{"validOrigins": []string{"a.example.com", "b.example.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Compare(tt.existing, tt.desired, tt.patchable)

			assert.Equal(t, tt.differences, d.Differences)
			assert.Equal(t, len(tt.differences) > 0, d.IsDifferent())
			assert.Equal(t, tt.wantPatch, d.Patch)
			assert.Equal(t, tt.wantChanges, d.Changes)

			if d.CanPatch() {
				assert.Nil(t, d.Changes)
			}
			if d.Changes != nil {
				assert.Empty(t, d.Patch)
			}
		})
	}
}

func TestCompareApplied(t *testing.T) {
	existing := State{"id": "1", "name": "A", "description": "x"}
	desired := State{"name": "A", "description": "y"}

	d := Compare(existing, desired, []string{"description"})
	require.True(t, d.CanPatch())

	assert.Equal(t, State{"id": "1", "name": "A", "description": "y"}, d.Applied)
	assert.Equal(t, "x", existing["description"], "existing state must not be mutated")
	assert.Equal(t, State{"description": "x"}, d.Before)
	assert.Equal(t, State{"description": "y"}, d.After)
}

func TestDifferenceRender(t *testing.T) {
	d := Compare(
		State{"name": "A", "description": "x", "roles": []any{"a"}},
		State{"name": "B", "description": "y", "roles": []any{"a", "b"}},
		nil,
	)

	text := d.Render()
	require.NotNil(t, text)
	assert.Equal(t, "description - x\nname - A\nroles - [\"a\"]\n", text.Before)
	assert.Equal(t, "description - y\nname - B\nroles - [\"a\",\"b\"]\n", text.After)
}

func TestDifferenceRenderNonStrings(t *testing.T) {
	d := Compare(
		State{"active": false, "clockToleranceSec": 5, "meta": map[string]any{"a": 1}},
		State{"active": true, "clockToleranceSec": 10, "meta": map[string]any{"a": 2}},
		nil,
	)

	text := d.Render()
	require.NotNil(t, text)
	assert.Equal(t, "active - false\nclockToleranceSec - 5\nmeta - {\"a\":1}\n", text.Before)
	assert.Equal(t, "active - true\nclockToleranceSec - 10\nmeta - {\"a\":2}\n", text.After)
}

func TestDifferenceRenderNoDifferences(t *testing.T) {
	d := Compare(State{"name": "A"}, State{"name": "A"}, nil)
	assert.Nil(t, d.Render())
}
