package resources_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

func replyRoles(srv *tenanttest.Server) {
	srv.Handle("GET /api/v1/roles", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("filter") {
		case `name eq "TenantAdmin"`:
			tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List(map[string]any{
				"id": "r1", "name": "TenantAdmin", "level": "admin", "type": "default", "description": "x",
			}))
		default:
			tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List())
		}
	})
}

func TestUserCreateResolvesRoles(t *testing.T) {
	srv := tenanttest.New(t)
	replyRoles(srv)
	srv.Reply("POST /api/v1/users/actions/filter", http.StatusOK, tenanttest.List())
	srv.Reply("POST /api/v1/users", http.StatusCreated, map[string]any{"id": "u1", "subject": "auth0|ada"})

	res, err := run(t, srv, "user", map[string]any{
		"subject":        "auth0|ada",
		"email":          "ada@example.com",
		"assigned_roles": []any{"TenantAdmin"},
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)

	filter := srv.CallsTo(http.MethodPost, "/api/v1/users/actions/filter")
	require.Len(t, filter, 1)
	assert.Equal(t,
		`(status eq "active" or status eq "disabled" or status eq "invited") and (subject eq "auth0|ada")`,
		filter[0].JSONBody(t)["filter"])

	created := srv.CallsTo(http.MethodPost, "/api/v1/users")
	require.Len(t, created, 1)
	assert.Equal(t, map[string]any{
		"subject": "auth0|ada",
		"email":   "ada@example.com",
		"assignedRoles": []any{
			map[string]any{"id": "r1", "name": "TenantAdmin", "level": "admin", "type": "default"},
		},
	}, created[0].JSONBody(t))
}

func TestUserUnknownRole(t *testing.T) {
	srv := tenanttest.New(t)
	replyRoles(srv)

	_, err := run(t, srv, "user", map[string]any{
		"subject":        "auth0|ada",
		"assigned_roles": []any{"Wizard"},
	})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
	assert.Empty(t, srv.Mutations())
}

func TestUserPatchesStatus(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("POST /api/v1/users/actions/filter", http.StatusOK, tenanttest.List(map[string]any{
		"id": "u1", "subject": "auth0|ada", "name": "Ada", "status": "active",
	}))
	srv.Reply("PATCH /api/v1/users/{id}", http.StatusNoContent, nil)

	res, err := run(t, srv, "user", map[string]any{"subject": "auth0|ada", "status": "disabled"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "disabled", res.Resource["status"])

	calls := srv.CallsTo(http.MethodPatch, "/api/v1/users/u1")
	require.Len(t, calls, 1)
	assert.Equal(t, []engine.PatchOp{{Op: "replace", Path: "/status", Value: "disabled"}}, patchOps(t, calls[0]))
}

func TestUserEmailChangeNeedsRecreate(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("POST /api/v1/users/actions/filter", http.StatusOK, tenanttest.List(map[string]any{
		"id": "u1", "subject": "auth0|ada", "email": "ada@old.example.com",
	}))

	res, err := run(t, srv, "user", map[string]any{"subject": "auth0|ada", "email": "ada@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "allow_recreate")
	assert.Empty(t, srv.Mutations())
}
