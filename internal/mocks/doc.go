// Package mocks provides centralized mock implementations for testing.
//
// Mocks are structs with a function field per interface method. A nil
// function falls back to the default response fields, and every call is
// recorded so tests can assert on what the code under test did:
//
//	st := &mocks.MockTxStore{
//	    BeginFn: func(ctx context.Context, level domain.IsolationLevel) (store.Tx, error) {
//	        return nil, store.ErrConnection
//	    },
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Track calls under a mutex; mocks are used from concurrent workers
package mocks
