package resources_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

func appObject(attrs map[string]any) map[string]any {
	out := map[string]any{"id": "app1", "name": "Sales", "ownerId": "u1", "spaceId": "s1"}
	for k, v := range attrs {
		out[k] = v
	}
	return map[string]any{"attributes": out}
}

func replySpaceAndItems(srv *tenanttest.Server, items ...any) {
	srv.Reply("GET /api/v1/spaces", http.StatusOK, tenanttest.List(map[string]any{"id": "s1", "name": "Finance"}))
	srv.Reply("GET /api/v1/items", http.StatusOK, tenanttest.List(items...))
}

func TestAppCreateWithOwner(t *testing.T) {
	srv := tenanttest.New(t)
	replySpaceAndItems(srv)
	srv.Reply("POST /api/v1/apps", http.StatusCreated, appObject(nil))
	srv.Reply("PUT /api/v1/apps/{id}/owner", http.StatusOK, appObject(map[string]any{"ownerId": "u2"}))

	res, err := run(t, srv, "app", map[string]any{"name": "Sales", "space": "Finance", "owner_id": "u2"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "u2", res.Resource["ownerId"])

	created := srv.CallsTo(http.MethodPost, "/api/v1/apps")
	require.Len(t, created, 1)
	assert.Equal(t, map[string]any{"attributes": map[string]any{"name": "Sales", "spaceId": "s1"}}, created[0].JSONBody(t))

	owner := srv.CallsTo(http.MethodPut, "/api/v1/apps/app1/owner")
	require.Len(t, owner, 1)
	assert.Equal(t, map[string]any{"ownerId": "u2"}, owner[0].JSONBody(t))
}

func TestAppUpdatesPerAttribute(t *testing.T) {
	srv := tenanttest.New(t)
	replySpaceAndItems(srv, map[string]any{"name": "Sales", "resourceId": "app1", "resourceType": "app"})
	srv.Reply("GET /api/v1/apps/{id}", http.StatusOK, appObject(map[string]any{"description": "old"}))
	srv.Reply("PUT /api/v1/apps/{id}", http.StatusOK, appObject(map[string]any{"description": "new"}))
	srv.Reply("PUT /api/v1/apps/{id}/owner", http.StatusOK, appObject(map[string]any{"ownerId": "u2"}))

	res, err := run(t, srv, "app", map[string]any{
		"name":        "Sales",
		"space":       "Finance",
		"description": "new",
		"owner_id":    "u2",
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "new", res.Resource["description"])
	assert.Equal(t, "u2", res.Resource["ownerId"])

	attrs := srv.CallsTo(http.MethodPut, "/api/v1/apps/app1")
	require.Len(t, attrs, 1)
	assert.Equal(t, map[string]any{"attributes": map[string]any{"description": "new"}}, attrs[0].JSONBody(t))
	assert.Len(t, srv.CallsTo(http.MethodPut, "/api/v1/apps/app1/owner"), 1)
	assert.Empty(t, srv.CallsTo(http.MethodPut, "/api/v1/apps/app1/space"))

	items := srv.CallsTo(http.MethodGet, "/api/v1/items")
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Query, "spaceId=s1")
}

func TestAppImportFromFile(t *testing.T) {
	file := writeFile(t, "sales.qvf", "qvf")

	srv := tenanttest.New(t)
	replySpaceAndItems(srv)
	srv.Handle("POST /api/v1/temp-contents", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/api/v1/temp-contents/tmp1")
		w.WriteHeader(http.StatusCreated)
	})
	srv.Handle("POST /api/v1/apps/import", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tmp1", r.URL.Query().Get("fileId"))
		assert.Equal(t, "s1", r.URL.Query().Get("spaceId"))
		tenanttest.WriteJSON(w, http.StatusCreated, appObject(nil))
	})
	srv.Reply("PUT /api/v1/apps/{id}", http.StatusOK, appObject(map[string]any{"description": "imported"}))

	res, err := run(t, srv, "app", map[string]any{
		"name": "Sales", "space": "Finance", "file": file, "description": "imported",
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "imported", res.Resource["description"])
	assert.Len(t, srv.CallsTo(http.MethodPost, "/api/v1/temp-contents"), 1)
}

func TestAppPublish(t *testing.T) {
	srv := tenanttest.New(t)
	replySpaceAndItems(srv)
	srv.Reply("POST /api/v1/apps/{id}/publish", http.StatusCreated, appObject(map[string]any{"id": "app2"}))

	res, err := run(t, srv, "app", map[string]any{"name": "Sales", "space": "Finance", "origin_app_id": "app1"})
	require.NoError(t, err)
	assert.Equal(t, "app2", res.Resource["id"])

	calls := srv.CallsTo(http.MethodPost, "/api/v1/apps/app1/publish")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"spaceId": "s1"}, calls[0].JSONBody(t))
}

func TestAppReloaded(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/apps/{id}", http.StatusOK, appObject(nil))
	srv.Reply("POST /api/v1/reloads", http.StatusCreated, map[string]any{"id": "rl1", "status": "QUEUED"})

	res, err := run(t, srv, "app", map[string]any{"id": "app1", "name": "Sales", "state": "reloaded"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, engine.OperationTrigger, res.LastOperation())

	calls := srv.CallsTo(http.MethodPost, "/api/v1/reloads")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"appId": "app1"}, calls[0].JSONBody(t))
}

func TestAppAbsent(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/apps/{id}", http.StatusOK, appObject(nil))
	srv.Reply("DELETE /api/v1/apps/{id}", http.StatusNoContent, nil)

	res, err := run(t, srv, "app", map[string]any{"id": "app1", "name": "Sales", "state": "absent"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Len(t, srv.CallsTo(http.MethodDelete, "/api/v1/apps/app1"), 1)
}
