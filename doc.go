// Package magicdb provides a lightweight in-memory key-value server spoken
// over a plain text protocol, and a reflect mode that turns the same server
// into a fan-out proxy.
//
// Commands (keywords are case-insensitive):
//
//	SUMMON <key> AS <value...>
//	CONJURE <key>
//	DISPEL <key>
//	INCANT <lua script...>
//	SEND TO <address> [value...]
//
// A connection may start with "AUTH <username> <password>"; the server
// answers "AUTH OK" or "AUTH FAILED" and, on success, reads the command next.
//
// Basic usage:
//
//	srv, err := magicdb.New(
//		magicdb.WithAddr("127.0.0.1:7070"),
//		magicdb.WithCredentials("merlin", "s3cret"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Close()
//
//	if err := srv.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// In reflect mode every request is forwarded to each configured target and
// the replies are joined with "\n---\n" in target order:
//
//	srv, err := magicdb.New(
//		magicdb.WithProtocol("reflect"),
//		magicdb.WithReflectTargets([]string{"127.0.0.1:7878", "192.168.1.5:7878"}),
//	)
//
// "SEND TO <address>" on a reflect server pushes the last successful target
// response to address.
package magicdb
