// Package stores provides the run journal. Every playbook run and each task
// result is appended to an SQLite database with embedded migrations, so past
// runs can be listed and inspected.
package stores
