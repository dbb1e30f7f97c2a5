// Package server owns connection lifecycle.
//
// Ownership boundary:
// - listener bind and accept loop
// - per-connection scheduling (sequential or one goroutine per conn)
// - connection close and lifecycle logging
//
// The protocol semantics live in internal/protocol; the server hands each
// accepted conn to one engine and closes it when the engine returns.
package server
