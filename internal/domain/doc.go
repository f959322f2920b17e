// Package domain contains the value types shared by every part of the isolation
// harness: isolation levels, read targets and write mutations, observations,
// transaction outcomes and verification results. It has no dependencies on
// storage or transport code.
package domain
