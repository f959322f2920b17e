// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the harness settings (store selection, timeouts, logging, the
// optional HTTP server) while keeping configuration details separate from the
// harness logic.
package config
