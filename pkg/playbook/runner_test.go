package playbook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/inventory"
	"github.com/openfroyo/qlikcloud/pkg/playbook"
	"github.com/openfroyo/qlikcloud/pkg/stores"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
	"github.com/openfroyo/qlikcloud/pkg/tenant/tenanttest"
)

type connection struct {
	uri, key string
}

// fakeTenant serves a spaces collection that remembers created spaces.
func fakeTenant(t *testing.T, existing ...string) *tenanttest.Server {
	t.Helper()
	srv := tenanttest.New(t)

	var mu sync.Mutex
	spaces := map[string]map[string]any{}
	for _, name := range existing {
		spaces[name] = map[string]any{"id": "id-" + name, "name": name, "type": "shared"}
	}

	srv.Handle("GET /api/v1/spaces", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := spaces[r.URL.Query().Get("name")]; ok {
			tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List(s))
			return
		}
		tenanttest.WriteJSON(w, http.StatusOK, tenanttest.List())
	})
	srv.Handle("POST /api/v1/spaces", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		var body map[string]any
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			return
		}
		name, _ := body["name"].(string)
		if name == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		body["id"] = "id-" + name
		spaces[name] = body
		tenanttest.WriteJSON(w, http.StatusCreated, body)
	})
	return srv
}

func parse(t *testing.T, content string) *playbook.Playbook {
	t.Helper()
	l, err := playbook.NewLoader()
	require.NoError(t, err)
	pb, err := l.Parse("test.yml", []byte(content))
	require.NoError(t, err)
	return pb
}

func newRunner(t *testing.T, srv *tenanttest.Server) (*playbook.Runner, *[]connection) {
	t.Helper()
	var conns []connection
	r := &playbook.Runner{
		Connect: func(uri, key string) (*tenant.Client, error) {
			conns = append(conns, connection{uri, key})
			return srv.Client(t), nil
		},
		Logger: zerolog.Nop(),
	}
	return r, &conns
}

func statuses(report *playbook.Report) []stores.TaskStatus {
	var out []stores.TaskStatus
	for _, res := range report.Results {
		out = append(out, res.Status)
	}
	return out
}

func TestRunLocalhostRegistersResults(t *testing.T) {
	srv := fakeTenant(t)
	pb := parse(t, `
- hosts: localhost
  vars:
    team: Finance
  tasks:
    - name: team space
      module: space
      params:
        tenant_uri: "{{ .uri }}"
        api_key: "{{ .key }}"
        name: "{{ .team }}"
        type: shared
      register: team_space
    - name: archive space
      module: space
      when: team_space["changed"]
      params:
        tenant_uri: "{{ .uri }}"
        api_key: "{{ .key }}"
        name: "{{ .team_space.space.id }}-archive"
        type: shared
    - name: never
      module: space
      when: false
      params:
        name: unused
        type: shared
`)

	runner, conns := newRunner(t, srv)
	report, err := runner.Run(context.Background(), pb, playbook.Options{
		ExtraVars: map[string]any{"uri": srv.URL, "key": "k1"},
	})
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, []stores.TaskStatus{
		stores.TaskStatusChanged,
		stores.TaskStatusChanged,
		stores.TaskStatusSkipped,
	}, statuses(report))
	assert.Equal(t, &playbook.HostStats{Changed: 2, Skipped: 1}, report.Stats[playbook.LocalHost])
	assert.Equal(t, []connection{{srv.URL, "k1"}, {srv.URL, "k1"}}, *conns)

	created := srv.CallsTo(http.MethodPost, "/api/v1/spaces")
	require.Len(t, created, 2)
	assert.Equal(t, "id-Finance-archive", created[1].JSONBody(t)["name"])
}

func TestRunCheckModeMakesNoChanges(t *testing.T) {
	srv := fakeTenant(t)
	pb := parse(t, `
- hosts: localhost
  tasks:
    - module: space
      params: {tenant_uri: "{{ .uri }}", api_key: k, name: Sales, type: shared}
`)
	runner, _ := newRunner(t, srv)
	report, err := runner.Run(context.Background(), pb, playbook.Options{
		CheckMode: true,
		ExtraVars: map[string]any{"uri": srv.URL},
	})
	require.NoError(t, err)
	assert.Equal(t, []stores.TaskStatus{stores.TaskStatusChanged}, statuses(report))
	assert.Empty(t, srv.Mutations())
}

func TestRunUsesInventoryConnectionDefaults(t *testing.T) {
	srv := fakeTenant(t, "Shared")
	invPath := filepath.Join(t.TempDir(), "contexts.yml")
	require.NoError(t, os.WriteFile(invPath, []byte(`
contexts:
  prod:
    server: https://prod.eu.qlikcloud.com
    server-type: cloud
    headers:
      Authorization: Bearer secret-token
  dev:
    server: https://dev.eu.qlikcloud.com
    server-type: cloud
    oauth-client-id: cid
    oauth-client-secret: csecret
  onprem:
    server: https://sense.example.com
    server-type: windows
`), 0o600))
	inv, err := inventory.Load(invPath)
	require.NoError(t, err)

	var tokenCalls int
	runner, conns := newRunner(t, srv)
	runner.Inventory = inv
	runner.Token = func(_ context.Context, uri, id, secret string) (string, error) {
		tokenCalls++
		assert.Equal(t, "https://dev.eu.qlikcloud.com", uri)
		assert.Equal(t, "cid", id)
		assert.Equal(t, "csecret", secret)
		return "oauth-token", nil
	}

	pb := parse(t, `
- hosts: cloud
  tasks:
    - module: space
      params: {name: Shared, type: shared}
    - module: space
      params: {name: Shared, type: shared}
`)
	report, err := runner.Run(context.Background(), pb, playbook.Options{})
	require.NoError(t, err)
	assert.Equal(t, []stores.TaskStatus{
		stores.TaskStatusOK, stores.TaskStatusOK,
		stores.TaskStatusOK, stores.TaskStatusOK,
	}, statuses(report))
	assert.Equal(t, []connection{
		{"https://dev.eu.qlikcloud.com", "oauth-token"},
		{"https://dev.eu.qlikcloud.com", "oauth-token"},
		{"https://prod.eu.qlikcloud.com", "secret-token"},
		{"https://prod.eu.qlikcloud.com", "secret-token"},
	}, *conns)
	assert.Equal(t, 1, tokenCalls)

	limited, err := runner.Run(context.Background(), pb, playbook.Options{Limit: "prod"})
	require.NoError(t, err)
	for _, res := range limited.Results {
		assert.Equal(t, "prod", res.Host)
	}

	_, err = runner.Run(context.Background(), pb, playbook.Options{Limit: "nowhere"})
	assert.Error(t, err)
}

func TestRunFailureStopsHost(t *testing.T) {
	tests := []struct {
		name         string
		ignoreErrors bool
		want         []stores.TaskStatus
	}{
		{
			name: "stops remaining tasks",
			want: []stores.TaskStatus{stores.TaskStatusFailed},
		},
		{
			name:         "continues when errors are ignored",
			ignoreErrors: true,
			want:         []stores.TaskStatus{stores.TaskStatusIgnored, stores.TaskStatusChanged},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeTenant(t)
			pb := parse(t, `
- hosts: localhost
  tasks:
    - module: space
      ignore_errors: false
      params: {tenant_uri: "{{ .uri }}", api_key: k, name: broken, type: shared}
      register: broken
    - module: space
      when: broken["failed"]
      params: {tenant_uri: "{{ .uri }}", api_key: k, name: fallback, type: shared}
`)
			pb.Plays[0].Tasks[0].IgnoreErrors = tt.ignoreErrors

			runner, _ := newRunner(t, srv)
			report, err := runner.Run(context.Background(), pb, playbook.Options{
				ExtraVars: map[string]any{"uri": srv.URL},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, statuses(report))
			assert.Equal(t, !tt.ignoreErrors, report.Failed())
			assert.Contains(t, report.Results[0].Error, "error creating space, HTTP 400")
		})
	}
}

type recorder struct {
	tasks []string
}

func (r *recorder) ObserveTask(module, operation, status string, _ time.Duration) {
	r.tasks = append(r.tasks, module+"/"+operation+"/"+status)
}

func TestRunLoopJournalAndMetrics(t *testing.T) {
	srv := fakeTenant(t, "b")
	journal, err := stores.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	pb := parse(t, `
- name: loop
  hosts: localhost
  vars:
    names: [a, b]
  tasks:
    - name: spaces
      module: space
      loop: "{{ .names | toJson }}"
      params: {tenant_uri: "{{ .uri }}", api_key: k, name: "{{ .item }}", type: shared}
      register: created
    - name: count
      module: space
      when: len(created["results"]) == 2 and created["results"][0]["changed"]
      params: {tenant_uri: "{{ .uri }}", api_key: k, name: c, type: shared}
`)
	pb.Path = "loop.yml"

	metrics := &recorder{}
	runner, _ := newRunner(t, srv)
	runner.Journal = journal
	runner.Metrics = metrics

	report, err := runner.Run(context.Background(), pb, playbook.Options{ExtraVars: map[string]any{"uri": srv.URL}})
	require.NoError(t, err)
	assert.Equal(t, []stores.TaskStatus{
		stores.TaskStatusChanged, stores.TaskStatusOK, stores.TaskStatusChanged,
	}, statuses(report))
	assert.Equal(t, "a", report.Results[0].Item)
	assert.Equal(t, []string{"space/create/changed", "space/noop/ok", "space/create/changed"}, metrics.tasks)

	run, err := journal.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, stores.RunStatusCompleted, run.Status)
	assert.Equal(t, "loop.yml", run.Playbook)

	recs, err := journal.ListTasks(context.Background(), report.RunID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "spaces", recs[0].Task)
	assert.Equal(t, "loop", recs[0].Play)
	assert.True(t, recs[0].Changed)
	assert.Equal(t, `["read","create"]`, recs[0].Operations)
	assert.Equal(t, stores.TaskStatusOK, recs[1].Status)
}

func TestRunRequiresInventoryForPatterns(t *testing.T) {
	pb := parse(t, `
- hosts: all
  tasks:
    - module: space
      params: {name: a, type: shared}
`)
	runner := &playbook.Runner{Logger: zerolog.Nop()}
	_, err := runner.Run(context.Background(), pb, playbook.Options{})
	assert.ErrorContains(t, err, "inventory")
}
