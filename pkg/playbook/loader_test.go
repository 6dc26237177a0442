package playbook_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/playbook"
)

const sitePlaybook = `
- name: spaces
  hosts: all
  vars:
    team: Finance
  tasks:
    - name: team space
      module: qlik.cloud.space
      params:
        name: "{{ .team }}"
        type: shared
      register: team_space
    - module: space_assignment
      when: team_space["changed"]
      loop: [alice, bob]
      ignore_errors: true
      params:
        space: "{{ .team }}"
        type: user
        assignee_id: "{{ .item }}"
        roles: [consumer]
`

func newLoader(t *testing.T) *playbook.Loader {
	t.Helper()
	l, err := playbook.NewLoader()
	require.NoError(t, err)
	return l
}

func TestParse(t *testing.T) {
	pb, err := newLoader(t).Parse("site.yml", []byte(sitePlaybook))
	require.NoError(t, err)

	require.Len(t, pb.Plays, 1)
	play := pb.Plays[0]
	assert.Equal(t, "all", play.Hosts)
	assert.Equal(t, map[string]any{"team": "Finance"}, play.Vars)
	require.Len(t, play.Tasks, 2)

	first := play.Tasks[0]
	assert.Equal(t, "space", first.Module)
	assert.Equal(t, "team space", first.DisplayName())
	assert.Equal(t, "team_space", first.Register)

	second := play.Tasks[1]
	assert.Equal(t, "space_assignment", second.DisplayName())
	assert.True(t, second.IgnoreErrors)
	assert.Equal(t, []any{"alice", "bob"}, second.Loop)
	conds, err := second.Conditions()
	require.NoError(t, err)
	assert.Equal(t, []string{`team_space["changed"]`}, conds)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(sitePlaybook), 0o600))

	pb, err := newLoader(t).Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, pb.Path)

	_, err = newLoader(t).Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseRejectsInvalidPlaybooks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "missing hosts",
			content: `
- tasks:
    - module: space
`,
			want: "hosts",
		},
		{
			name: "unknown task field",
			content: `
- hosts: all
  tasks:
    - module: space
      become: true
`,
			want: "become",
		},
		{
			name: "invalid module name",
			content: `
- hosts: all
  tasks:
    - module: Space-Module
`,
			want: "module",
		},
		{
			name: "unregistered module",
			content: `
- hosts: all
  tasks:
    - module: qlik.cloud.app_script
`,
			want: `unknown module "app_script"`,
		},
		{
			name: "not a list",
			content: `
hosts: all
`,
			want: "site.yml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t).Parse("site.yml", []byte(tt.content))
			require.Error(t, err)

			var verrs playbook.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.NotEmpty(t, verrs)
			assert.Contains(t, err.Error(), tt.want)
			for _, e := range verrs {
				assert.Equal(t, "error", e.Severity)
			}
		})
	}
}

func TestTaskConditions(t *testing.T) {
	tests := []struct {
		name    string
		when    any
		want    []string
		wantErr bool
	}{
		{name: "none"},
		{name: "true", when: true, want: []string{"True"}},
		{name: "false", when: false, want: []string{"False"}},
		{name: "expression", when: "x > 1", want: []string{"x > 1"}},
		{name: "list", when: []any{"a", "b"}, want: []string{"a", "b"}},
		{name: "bad list item", when: []any{1}, wantErr: true},
		{name: "bad type", when: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := playbook.Task{When: tt.when}.Conditions()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
