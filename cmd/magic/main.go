// Command magic runs the magic key-value server.
//
//	magic setup                 write a default magic.toml
//	magic start [-p port] [-r protocol] [-c config]
//	magic version
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
