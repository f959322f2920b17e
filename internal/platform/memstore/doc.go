// Package memstore is an in-memory multi-version implementation of
// store.TxStore.
//
// It mimics PostgreSQL closely enough for the scenario catalog to classify
// the same way against it: READ COMMITTED takes a snapshot per statement,
// REPEATABLE READ and SERIALIZABLE take one at their first statement, writers
// hold row locks until they finish, a repeatable-read writer that finds a row
// changed since its snapshot fails with a serialization error, and
// SERIALIZABLE commits run a simplified dangerous-structure check over
// concurrent serializable transactions. READ UNCOMMITTED runs as READ
// COMMITTED.
package memstore
