// Package api exposes the scenario catalog over HTTP. It lists scenarios and
// runs one at a requested isolation level, returning the VerificationResult
// as JSON. Harness errors map to distinct status codes so a client never
// mistakes a connectivity problem for a failed verification.
package api
