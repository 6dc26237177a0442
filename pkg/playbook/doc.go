// Package playbook loads YAML playbooks and runs their tasks against the
// tenants of an inventory.
//
// # Playbooks
//
// A playbook is a list of plays. Each play selects hosts from the inventory
// and runs its tasks, in order, against every selected host:
//
//   - name: onboarding
//     hosts: all
//     vars:
//     team: Finance
//     tasks:
//   - name: team space
//     module: space
//     params:
//     name: "{{ .team }}"
//     type: shared
//     register: team_space
//   - name: analyst access
//     module: space_assignment
//     when: team_space["changed"]
//     params:
//     space: "{{ .team }}"
//     type: group
//     assignee_id: "{{ .analysts_group }}"
//     roles: [consumer]
//
// Playbooks are validated against an embedded CUE schema before anything
// runs, and module names are checked against the resource registry.
//
// # Conditions and templating
//
// The when field is a Starlark expression (or a list of expressions that
// must all hold) evaluated against the host and play variables. String
// parameters are Go templates with the sprig function library and the
// connection string helpers connstringToProp and connstringProps.
//
// # Connection defaults
//
// A task that omits tenant_uri connects to https://<ansible_host>. A task
// that omits api_key uses the host's access_token, or requests an OAuth
// token with the host's client_id and client_secret.
package playbook
