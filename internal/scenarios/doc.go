// Package scenarios is the built-in catalog of isolation anomaly scenarios.
//
// Every scenario carries the verdict PostgreSQL is expected to produce at each
// isolation level. Constructors return a fresh value on every call, so callers
// may modify what they get back.
package scenarios
