package resources_test

import (
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

func existingSpace(attrs map[string]any) map[string]any {
	out := map[string]any{"id": "s1", "name": "Test", "type": "shared", "createdAt": "2024-01-01T00:00:00Z", "links": map[string]any{}}
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func TestSpaceCreate(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List())
	srv.Reply("POST /api/v1/spaces", http.StatusCreated, existingSpace(nil))

	res, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "shared"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "s1", res.Resource["id"])
	assert.NotContains(t, res.Resource, "links")

	calls := srv.CallsTo(http.MethodPost, "/api/v1/spaces")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"name": "Test", "type": "shared"}, calls[0].JSONBody(t))
}

func TestSpacePatchesDescription(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List(existingSpace(map[string]any{"description": "old"})))
	srv.Reply("PATCH /api/v1/spaces/{id}", http.StatusNoContent, nil)

	res, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "shared", "description": "new"},
		engine.Options{Diff: true})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "new", res.Resource["description"])
	assert.Equal(t, &engine.DiffText{Before: "description - old\n", After: "description - new\n"}, res.Diff)

	calls := srv.CallsTo(http.MethodPatch, "/api/v1/spaces/s1")
	require.Len(t, calls, 1)
	assert.Equal(t, []engine.PatchOp{{Op: "replace", Path: "/description", Value: "new"}}, patchOps(t, calls[0]))
}

func TestSpaceTypeChange(t *testing.T) {
	tests := []struct {
		name          string
		allowRecreate bool
		wantChanged   bool
		wantWarnings  int
		wantMutations int
	}{
		{name: "warns without allow_recreate", wantChanged: true, wantWarnings: 1},
		{name: "recreates when allowed", allowRecreate: true, wantChanged: true, wantMutations: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tenanttest.New(t)
			srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List(existingSpace(nil)))
			srv.Reply("DELETE /api/v1/spaces/{id}", http.StatusNoContent, nil)
			srv.Reply("POST /api/v1/spaces", http.StatusCreated, existingSpace(map[string]any{"id": "s2", "type": "managed"}))

			res, err := run(t, srv, "space", map[string]any{
				"name":           "Test",
				"type":           "managed",
				"allow_recreate": tt.allowRecreate,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, res.Changed)
			assert.Len(t, res.Warnings, tt.wantWarnings)
			assert.Len(t, srv.Mutations(), tt.wantMutations)
			if tt.allowRecreate {
				assert.Equal(t, "s2", res.Resource["id"])
			}
		})
	}
}

func TestSpaceUnchanged(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List(existingSpace(map[string]any{"description": "same"})))

	res, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "shared", "description": "same"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, srv.Mutations())
	assert.Equal(t, "s1", res.Resource["id"])
}

func TestSpaceAbsentIsIdempotent(t *testing.T) {
	srv := tenanttest.New(t)
	var deleted atomic.Bool
	srv.Handle("GET /api/v1/spaces", func(w http.ResponseWriter, r *http.Request) {
		if deleted.Load() {
			tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List())
			return
		}
		tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List(existingSpace(nil)))
	})
	srv.Handle("DELETE /api/v1/spaces/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s1", r.PathValue("id"))
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})

	kv := map[string]any{"name": "Test", "type": "shared", "state": "absent"}
	res, err := run(t, srv, "space", kv)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, res.Resource)

	res, err = run(t, srv, "space", kv)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, srv.Mutations(), 1)
}

func TestSpaceCheckModeMakesNoCalls(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List())

	res, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "shared"}, engine.Options{CheckMode: true})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, srv.Mutations())
}

func TestSpaceCreateFailure(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List())
	srv.Handle("POST /api/v1/spaces", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"title":"invalid type"}]}`)
	})

	res, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "shared"})
	require.Error(t, err)
	assert.Equal(t, `error creating space, HTTP 400: {"errors":[{"title":"invalid type"}]}`, err.Error())
	assert.True(t, engine.IsTransport(err))
	assert.False(t, res.Changed)
}

func TestSpaceRejectsInvalidType(t *testing.T) {
	srv := tenanttest.New(t)

	_, err := run(t, srv, "space", map[string]any{"name": "Test", "type": "private"})
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
	assert.Empty(t, srv.Calls())
}
