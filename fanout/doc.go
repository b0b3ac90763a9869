// Package fanout implements reflect mode: one client request is forwarded
// to every configured target and the replies are joined into one aggregate.
//
// Targets are visited concurrently but results are written into a slice
// indexed by target position, so the aggregate always follows the configured
// order:
//
//	<reply of target 0>
//	---
//	<reply of target 1>
//
// A target that cannot be reached, or that rejects the configured
// credentials, contributes an error line instead of a reply. The sweep never
// stops early.
//
// The response of the last successful target is kept in an Aggregate cell
// and can be pushed to any address with "SEND TO <address>".
package fanout
