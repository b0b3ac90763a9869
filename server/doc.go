// Package server accepts client connections for the magic server and runs
// the inline AUTH handshake before handing the request to a Handler.
//
// Every TCP connection is served by its own goroutine and answers exactly
// one request:
//
//	client: AUTH <username> <password>   (optional)
//	server: AUTH OK | AUTH FAILED
//	client: <request>
//	server: <reply>
//
// Each read is a single bounded read of MaxPayloadSize bytes; there is no
// framing, so longer input is truncated. The AUTH line and the request must
// arrive in separate reads.
//
// UDP is served by one sequential receive loop. Every datagram stands alone:
// an AUTH datagram only receives the AUTH reply.
package server
