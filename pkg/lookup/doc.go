// Package lookup implements read-only queries against a tenant: users,
// groups, spaces, items and the license overview. It also holds the
// credential helpers (OAuth tokens and signed JWTs) and the connection
// string parser used when templating playbooks.
package lookup
