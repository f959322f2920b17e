// Package testdb opens the PostgreSQL store for integration tests.
//
// Tests that need a real database call OpenTestStore, which skips the test
// unless DATABASE_URL (or ISOCHECK_TEST_DB_URL) is set, applies the embedded
// migrations and closes the pool when the test ends. Tests sharing the
// database must not run in parallel with each other: every scenario resets
// the same harness_rows table.
package testdb
