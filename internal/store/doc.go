// Package store defines the narrow contract the isolation harness needs from a
// relational database: open a transaction at an isolation level, read a target,
// apply a mutation, commit, roll back, and reset the baseline rows. Store errors
// are classified into connection, query and serialization failures so callers
// never have to inspect driver-specific error types.
package store
