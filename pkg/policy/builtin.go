package policy

// BuiltinPolicies returns all built-in policies.
func BuiltinPolicies() []Policy {
	return []Policy{
		destructiveOperationsPolicy(),
		adminRoleGrantPolicy(),
		wildcardOriginsPolicy(),
	}
}

// destructiveOperationsPolicy reports every delete and recreate.
func destructiveOperationsPolicy() Policy {
	return Policy{
		Name:        "destructive-operations",
		Description: "Reports resources that are deleted or deleted and recreated",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"safety"},
		Rego: `package qlikcloud.policies.destructive

import rego.v1

deny contains violation if {
	input.operation in {"delete", "recreate"}
	not input.check_mode
	violation := {
		"message": sprintf("%s %s %q", [verb[input.operation], input.kind, display_name]),
		"severity": "warning",
	}
}

verb := {"delete": "deleting", "recreate": "recreating"}

display_name := object.get(input, "name", "") if object.get(input, "name", "") != ""

display_name := object.get(input.existing, "id", "") if object.get(input, "name", "") == ""
`,
	}
}

// adminRoleGrantPolicy reports users gaining the tenant admin role.
func adminRoleGrantPolicy() Policy {
	return Policy{
		Name:        "admin-role-grant",
		Description: "Reports users that are granted the TenantAdmin role",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"access"},
		Rego: `package qlikcloud.policies.admin

import rego.v1

deny contains violation if {
	input.kind == "user"
	input.operation in {"create", "patch", "update", "recreate"}
	some role in object.get(input.desired, "assignedRoles", [])
	role.name == "TenantAdmin"
	not had_admin
	violation := sprintf("granting TenantAdmin to %s", [object.get(input.desired, "subject", object.get(input, "name", ""))])
}

had_admin if {
	some role in object.get(input.existing, "assignedRoles", [])
	role.name == "TenantAdmin"
}
`,
	}
}

// wildcardOriginsPolicy rejects origins that allow every site.
func wildcardOriginsPolicy() Policy {
	return Policy{
		Name:        "wildcard-origins",
		Description: "Rejects wildcard origins on web integrations and content security policy entries",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"security"},
		Rego: `package qlikcloud.policies.origins

import rego.v1

deny contains violation if {
	input.kind == "web_integration"
	some origin in object.get(input.desired, "validOrigins", [])
	contains(origin, "*")
	violation := sprintf("web integration %q allows wildcard origin %s", [input.name, origin])
}

deny contains violation if {
	input.kind == "csp_origin"
	contains(object.get(input.desired, "origin", ""), "*")
	violation := sprintf("content security policy entry %q uses a wildcard origin", [input.name])
}
`,
	}
}
