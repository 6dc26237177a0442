// Package policy vets tenant mutations with Open Policy Agent.
//
// Every create, patch, update, delete and recreate the reconciler is about to
// make is evaluated as input against the loaded Rego policies:
//
//	{
//	  "kind": "space",
//	  "operation": "delete",
//	  "name": "Finance",
//	  "existing": {...},
//	  "desired": {...},
//	  "changes": {...},
//	  "check_mode": false
//	}
//
// A policy reports violations through a deny set of strings or objects with
// a message and an optional severity:
//
//	package qlikcloud.policies.spaces
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.kind == "space"
//	    input.operation == "delete"
//	    startswith(input.name, "prod-")
//	    violation := {"message": "production spaces are never deleted", "severity": "error"}
//	}
//
// Violations with severity error or critical abort the operation. Lower
// severities are attached to the task result as warnings.
//
// Built-in policies warn about destructive operations and tenant admin role
// grants, and reject wildcard origins. Additional policies are loaded from
// .rego files, JSON policy definitions, and JSON bundles.
package policy
