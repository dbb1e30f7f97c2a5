// Package protocol owns the framed-echo wire contract.
//
// Ownership boundary:
// - connection greeting byte
// - message delimiter scanning
// - per-byte echo transform
//
// The engine consumes one duplex stream until clean EOF or transport
// failure; it never closes the stream it is handed.
package protocol
