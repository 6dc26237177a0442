// Package engine provides the generic reconciler that converges one tenant
// resource towards a desired state.
//
// # Overview
//
// Every resource kind follows the same "ensure state X" workflow:
//
//  1. Fetch - read the current remote object (at most once per reconciliation)
//  2. Compare - diff desired attributes against the existing object
//  3. Converge - create, patch, update or delete with the minimal call
//  4. Report - return a Result with the changed flag, resource and diff
//
// # Composition
//
// A Reconciler is not subclassed per kind. It is configured with:
//
//   - Schema: the kind name and the table mapping task parameters to remote
//     attributes, including which attributes accept JSON-Patch
//   - Handlers: fetch, create, patch, update and delete calls
//   - UpdatePolicy: what to do when differences cannot be patched
//   - States: extra terminal states beyond present and absent
//   - Guard: an optional policy hook consulted before every mutation
//
// Example:
//
//	r, err := engine.New(engine.Config{
//	    Schema:       spaceSchema,
//	    Desired:      spaceSchema.Desired(params),
//	    Handlers:     engine.Handlers{Fetch: fetch, Create: create, Patch: patch, Delete: del},
//	    UpdatePolicy: engine.UpdateRecreateIfAllowed,
//	    Options:      engine.Options{CheckMode: check, Diff: diff},
//	})
//	result, err := r.Execute(ctx, engine.StatePresent)
//
// # Check Mode
//
// With Options.CheckMode set no mutating handler is called. Create, Patch and
// Update return the current state, Delete returns an empty one, and the
// result reports whether a change would have been made.
//
// # Errors
//
// Failed handler calls are wrapped in an EngineError of class transport
// whose message reads "error <verb> <kind>, HTTP <status>: <body>". Nothing
// is retried and nothing is rolled back.
//
// # Thread Safety
//
// A Reconciler is used from a single goroutine and is not safe for
// concurrent use.
package engine
