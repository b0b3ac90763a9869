package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// DefaultBufferSize is the capacity of every single bounded read
const DefaultBufferSize = 1024

// Credentials authenticate the controller against a target
type Credentials struct {
	Username string
	Password string
}

// Transport opens outbound connections to targets. A zero timeout
// disables the matching deadline.
type Transport struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	BufferSize     int
}

// NewTransport creates a transport with the default buffer size and
// the given timeouts
func NewTransport(connectTimeout, readTimeout, writeTimeout time.Duration) *Transport {
	return &Transport{
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		BufferSize:     DefaultBufferSize,
	}
}

// Exchange dials addr, optionally authenticates, writes payload verbatim
// and returns the result of one bounded read.
func (t *Transport) Exchange(ctx context.Context, addr string, payload []byte, creds *Credentials) ([]byte, error) {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		if creds != nil {
			return nil, &AuthError{Target: addr, Err: err}
		}
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if creds != nil {
		if err := t.authenticate(conn, creds); err != nil {
			return nil, &AuthError{Target: addr, Err: err}
		}
	}

	if err := t.write(conn, payload); err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	response, err := t.read(conn)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}
	return response, nil
}

// Send dials addr and writes payload without waiting for a reply
func (t *Transport) Send(ctx context.Context, addr string, payload []byte) error {
	conn, err := t.dial(ctx, addr)
	if err != nil {
		return &ConnectionError{Addr: addr, Err: err}
	}
	defer conn.Close()

	if err := t.write(conn, payload); err != nil {
		return &ConnectionError{Addr: addr, Err: err}
	}
	return nil
}

// authenticate sends the AUTH line and requires a reply containing "OK"
func (t *Transport) authenticate(conn net.Conn, creds *Credentials) error {
	line := fmt.Sprintf("AUTH %s %s", creds.Username, creds.Password)
	if err := t.write(conn, []byte(line)); err != nil {
		return err
	}

	reply, err := t.read(conn)
	if err != nil {
		return err
	}
	if !strings.Contains(string(reply), "OK") {
		return ErrAuthRejected
	}
	return nil
}

func (t *Transport) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: t.ConnectTimeout,
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (t *Transport) write(conn net.Conn, payload []byte) error {
	if t.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t.WriteTimeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	_, err := conn.Write(payload)
	return err
}

// read performs one bounded read. A peer that closes without writing
// yields an empty response.
func (t *Transport) read(conn net.Conn) ([]byte, error) {
	if t.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(t.ReadTimeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	size := t.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)

	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if errors.Is(err, io.EOF) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:0], nil
}
