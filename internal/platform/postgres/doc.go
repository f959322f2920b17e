// Package postgres implements store.TxStore on PostgreSQL through the pgx
// database/sql driver. Every scenario runs against the single table
// harness_rows(key, grp, value), created by the embedded goose migrations.
//
// Driver errors are classified by SQLSTATE: serialization failures (40001)
// and detected deadlocks (40P01) become store.ErrSerialization, connection
// exceptions (class 08) and dial failures become store.ErrConnection, and
// syntax, data and integrity errors become store.ErrQuery.
package postgres
