// Package harness runs transaction-isolation scenarios: several concurrent
// transactions whose statements are interleaved through named signals, followed
// by a pure classification of the observed values and outcomes.
//
// A Scenario lists, per worker, an ordered sequence of Steps (read, write,
// wait for a signal, raise a signal, sleep, commit, rollback). The Runner starts
// one goroutine per worker, each owning one TransactionHandle, and guarantees no
// ordering between workers other than what the signals encode. Serialization
// failures reported by the store are outcomes, not errors; connection and query
// errors, signal timeouts and run timeouts abort the run.
package harness
