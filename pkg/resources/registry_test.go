package resources_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/resources"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

func TestRegisteredModules(t *testing.T) {
	want := []string{
		"app", "automation", "csp_origin", "data_connection", "data_file",
		"extension", "generic_link", "group_settings", "identity_provider",
		"license_settings", "reload_task", "space", "space_assignment",
		"theme", "user", "web_integration",
	}
	assert.Equal(t, want, resources.Names())

	for _, name := range want {
		m, ok := resources.Lookup(name)
		require.True(t, ok, name)
		assert.NoError(t, m.Schema.Validate(), name)
		assert.NotEmpty(t, m.Description, name)
		assert.True(t, m.SupportsState(engine.StatePresent), name)
	}
}

func TestModuleStates(t *testing.T) {
	tests := []struct {
		module string
		state  engine.TerminalState
		want   bool
	}{
		{"space", engine.StateAbsent, true},
		{"space", resources.StateTriggered, false},
		{"automation", resources.StateTriggered, true},
		{"app", resources.StateReloaded, true},
		{"group_settings", engine.StateAbsent, false},
		{"license_settings", engine.StateAbsent, false},
	}
	for _, tt := range tests {
		t.Run(tt.module+"/"+string(tt.state), func(t *testing.T) {
			m, ok := resources.Lookup(tt.module)
			require.True(t, ok)
			assert.Equal(t, tt.want, m.SupportsState(tt.state))
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m, ok := resources.Lookup("space")
	require.True(t, ok)
	assert.Panics(t, func() { resources.Register(m) })
}

func TestRunRejectsBadInput(t *testing.T) {
	srv := tenanttest.New(t)

	tests := []struct {
		name   string
		module string
		kv     map[string]any
		check  func(error) bool
	}{
		{"unknown module", "dashboard", map[string]any{}, engine.IsValidation},
		{"unknown state", "space", map[string]any{"name": "A", "type": "shared", "state": "archived"}, engine.IsValidation},
		{"unknown parameter", "space", map[string]any{"name": "A", "type": "shared", "colour": "red"}, engine.IsValidation},
		{"missing required", "web_integration", map[string]any{}, engine.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, srv, tt.module, tt.kv)
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
	assert.Empty(t, srv.Calls())
}

func TestRunConnectsLazily(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/web-integrations", http.StatusOK, tenanttest.List(
		map[string]any{"id": "w1", "name": "Portal", "validOrigins": []any{"https://portal.example.com"}},
	))

	var gotURI, gotKey string
	env := resources.Env{
		Logger: zerolog.Nop(),
		Connect: func(tenantURI, apiKey string) (*tenant.Client, error) {
			gotURI, gotKey = tenantURI, apiKey
			return srv.Client(t), nil
		},
	}
	res, err := resources.Run(context.Background(), env, "web_integration", params(srv, map[string]any{
		"name":          "Portal",
		"valid_origins": []any{"https://portal.example.com"},
	}))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, srv.URL, gotURI)
	assert.Equal(t, "test-key", gotKey)
}

func TestResultMapUsesModuleKind(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/web-integrations", http.StatusOK, tenanttest.List(
		map[string]any{"id": "w1", "name": "Portal"},
	))

	res, err := run(t, srv, "web_integration", map[string]any{"name": "Portal"})
	require.NoError(t, err)
	m := res.Map()
	assert.Equal(t, false, m["changed"])
	assert.Equal(t, map[string]any{"id": "w1", "name": "Portal"}, m["web_integration"])
}

func TestRunReportsRejectedCredentials(t *testing.T) {
	srv := tenanttest.New(t)
	srv.Reply("GET /api/v1/web-integrations", http.StatusUnauthorized, map[string]any{"errors": []any{}})

	_, err := run(t, srv, "web_integration", map[string]any{"name": "Portal"})
	require.Error(t, err)
	assert.True(t, engine.IsAuth(err))
	assert.True(t, tenant.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "credentials rejected by")
	assert.Contains(t, err.Error(), "HTTP 401")
}
