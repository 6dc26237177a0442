package resources_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/resources"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

func params(srv *tenanttest.Server, kv map[string]any) map[string]any {
	out := map[string]any{
		"tenant_uri": srv.URL,
		"api_key":    "test-key",
	}
	for k, v := range kv {
		out[k] = v
	}
	return out
}

func run(t *testing.T, srv *tenanttest.Server, module string, kv map[string]any, opts ...engine.Options) (*engine.Result, error) {
	t.Helper()
	env := resources.Env{Client: srv.Client(t), Logger: zerolog.Nop()}
	if len(opts) > 0 {
		env.Options = opts[0]
	}
	return resources.Run(context.Background(), env, module, params(srv, kv))
}

func patchOps(t *testing.T, call tenanttest.Call) []engine.PatchOp {
	t.Helper()
	var ops []engine.PatchOp
	require.NoError(t, json.Unmarshal(call.Body, &ops))
	return ops
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
