package server

import (
	"bytes"
	"crypto/subtle"
	"strings"
)

const authPrefix = "AUTH "

// Replies of the inline AUTH handshake
const (
	ReplyAuthOK       = "AUTH OK"
	ReplyAuthFailed   = "AUTH FAILED"
	ReplyAuthRequired = "AUTH REQUIRED"
)

// Credentials is the server-wide username/password pair
type Credentials struct {
	Username string
	Password string
}

// parseAuth reports whether payload is an AUTH line and, if so, whether it
// carries exactly a username and a password.
func parseAuth(payload []byte) (creds Credentials, isAuth bool, wellFormed bool) {
	if !bytes.HasPrefix(payload, []byte(authPrefix)) {
		return Credentials{}, false, false
	}

	fields := strings.Fields(string(payload[len(authPrefix):]))
	if len(fields) != 2 {
		return Credentials{}, true, false
	}
	return Credentials{Username: fields[0], Password: fields[1]}, true, true
}

// match compares both fields in constant time
func (c *Credentials) match(other Credentials) bool {
	if c == nil {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password)) == 1
	return userOK && passOK
}
