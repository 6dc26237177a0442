// Package resources implements the tenant resource modules.
//
// Each module declares its task parameters as a struct, a static
// engine.Schema mapping those parameters onto remote attributes, the calls
// used to fetch and converge the resource, and the update policy applied
// when differences cannot be patched. Modules register themselves at init
// time; registration validates the schema, so a malformed mapping table
// fails at startup rather than during a run.
package resources
