package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// MaxPayloadSize is the capacity of a single bounded read
const MaxPayloadSize = 1024

// ErrEmptyRead indicates the peer sent nothing before closing
var ErrEmptyRead = errors.New("empty read")

// Handler produces the reply for one request payload
type Handler interface {
	Handle(ctx context.Context, payload []byte) []byte
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, payload []byte) []byte

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, payload []byte) []byte {
	return f(ctx, payload)
}

// Server serves magic requests over TCP or UDP
type Server struct {
	handler Handler

	// Server configuration
	network      string
	addr         string
	credentials  *Credentials
	requireAuth  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       Logger

	// Connection management
	listener   net.Listener
	packetConn net.PacketConn
	clients    sync.Map // map[net.Conn]*Client

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	connCount    int64
	commandCount int64
	errorCount   int64
	authFailures int64
}

// Client represents one accepted TCP connection
type Client struct {
	id     string
	conn   net.Conn
	server *Server

	// Client state
	authenticated bool

	// Control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server for network ("tcp" or "udp") on addr
func NewServer(network, addr string, handler Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		handler: handler,
		network: network,
		addr:    addr,
		logger:  nopLogger{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetCredentials sets the server-wide AUTH credentials
func (s *Server) SetCredentials(username, password string) {
	s.credentials = &Credentials{Username: username, Password: password}
}

// SetRequireAuth rejects requests that did not start with a successful AUTH
func (s *Server) SetRequireAuth(require bool) {
	s.requireAuth = require
}

// SetTimeouts sets per-operation deadlines on client sockets; 0 disables
func (s *Server) SetTimeouts(read, write time.Duration) {
	s.readTimeout = read
	s.writeTimeout = write
}

// SetLogger sets the server logger
func (s *Server) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Start starts listening and serving in the background
func (s *Server) Start() error {
	switch s.network {
	case "udp":
		conn, err := net.ListenPacket("udp", s.addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		}
		s.packetConn = conn

		s.wg.Add(1)
		go s.servePackets()

	case "tcp", "":
		listener, err := net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		}
		s.listener = listener

		s.wg.Add(1)
		go s.acceptConnections()

	default:
		return fmt.Errorf("unsupported network %q", s.network)
	}

	return nil
}

// Stop stops the server and closes every client connection
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}
	if s.packetConn != nil {
		s.packetConn.Close()
	}

	s.clients.Range(func(key, value interface{}) bool {
		if client, ok := value.(*Client); ok {
			client.Close()
		}
		return true
	})

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	if s.packetConn != nil {
		return s.packetConn.LocalAddr().String()
	}
	return s.addr
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	clientCount := 0
	s.clients.Range(func(key, value interface{}) bool {
		clientCount++
		return true
	})

	return map[string]interface{}{
		"connected_clients": clientCount,
		"total_commands":    atomic.LoadInt64(&s.commandCount),
		"total_errors":      atomic.LoadInt64(&s.errorCount),
		"total_connections": atomic.LoadInt64(&s.connCount),
		"auth_failures":     atomic.LoadInt64(&s.authFailures),
	}
}

// acceptConnections accepts new client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return // Server is shutting down
			}
			s.logger.Error("Accept failed", "error", err)
			continue
		}

		s.handleNewClient(conn)
	}
}

// handleNewClient handles a new client connection
func (s *Server) handleNewClient(conn net.Conn) {
	atomic.AddInt64(&s.connCount, 1)

	ctx, cancel := context.WithCancel(s.ctx)
	client := &Client{
		id:            uuid.NewString(),
		conn:          conn,
		server:        s,
		authenticated: !s.requireAuth,
		ctx:           ctx,
		cancel:        cancel,
	}

	s.clients.Store(conn, client)

	// Stop may have ranged over clients before this one was stored
	if s.ctx.Err() != nil {
		client.Close()
		return
	}

	s.logger.Debug("New connection", "conn", client.id, "remote", conn.RemoteAddr().String())

	s.wg.Add(1)
	go client.handle()
}

// Close closes the client connection
func (c *Client) Close() {
	c.cancel()
	c.conn.Close()
	c.server.clients.Delete(c.conn)
}

// handle runs the handshake and serves one request
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	stop := context.AfterFunc(c.ctx, func() {
		_ = c.conn.Close()
	})
	defer stop()

	payload, err := c.read()
	if err != nil {
		c.logReadError(err)
		return
	}

	if creds, isAuth, wellFormed := parseAuth(payload); isAuth {
		if !wellFormed || !c.server.credentials.match(creds) {
			atomic.AddInt64(&c.server.authFailures, 1)
			c.server.logger.Info("Authentication failed", "conn", c.id, "user", creds.Username)
			c.write([]byte(ReplyAuthFailed))
			return
		}

		c.authenticated = true
		if !c.write([]byte(ReplyAuthOK)) {
			return
		}

		payload, err = c.read()
		if err != nil {
			c.logReadError(err)
			return
		}
	}

	if !c.authenticated {
		c.write([]byte(ReplyAuthRequired))
		return
	}

	c.write(c.server.process(c.ctx, payload))
}

// read performs one bounded read
func (c *Client) read() ([]byte, error) {
	if c.server.readTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
	}

	buf := make([]byte, MaxPayloadSize)
	n, err := c.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, ErrEmptyRead
	}
	return nil, err
}

// write sends reply and reports whether it succeeded
func (c *Client) write(reply []byte) bool {
	if c.server.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.server.writeTimeout))
	}

	if _, err := c.conn.Write(reply); err != nil {
		atomic.AddInt64(&c.server.errorCount, 1)
		c.server.logger.Error("Response cannot be sent", "conn", c.id, "error", err)
		return false
	}
	return true
}

func (c *Client) logReadError(err error) {
	if errors.Is(err, ErrEmptyRead) {
		c.server.logger.Debug("Empty read", "conn", c.id)
		return
	}
	if c.ctx.Err() != nil {
		return // Server shutting down
	}
	atomic.AddInt64(&c.server.errorCount, 1)
	c.server.logger.Error("Read failed", "conn", c.id, "error", err)
}

// process hands one request to the handler
func (s *Server) process(ctx context.Context, payload []byte) []byte {
	atomic.AddInt64(&s.commandCount, 1)
	return s.handler.Handle(ctx, payload)
}

// servePackets reads datagrams one at a time until the server stops
func (s *Server) servePackets() {
	defer s.wg.Done()

	buf := make([]byte, MaxPayloadSize)
	for {
		n, src, err := s.packetConn.ReadFrom(buf)
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			atomic.AddInt64(&s.errorCount, 1)
			s.logger.Error("Datagram read failed", "error", err)
			continue
		}
		atomic.AddInt64(&s.connCount, 1)

		if n == 0 {
			s.logger.Debug("Empty datagram", "remote", src.String())
			continue
		}

		reply := s.handleDatagram(append([]byte(nil), buf[:n]...))
		if s.writeTimeout > 0 {
			s.packetConn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		if _, err := s.packetConn.WriteTo(reply, src); err != nil {
			atomic.AddInt64(&s.errorCount, 1)
			s.logger.Error("Datagram reply cannot be sent", "remote", src.String(), "error", err)
		}
	}
}

// handleDatagram answers one datagram. AUTH cannot span datagrams, so an
// AUTH datagram only gets the handshake reply.
func (s *Server) handleDatagram(payload []byte) []byte {
	if creds, isAuth, wellFormed := parseAuth(payload); isAuth {
		if wellFormed && s.credentials.match(creds) {
			return []byte(ReplyAuthOK)
		}
		atomic.AddInt64(&s.authFailures, 1)
		return []byte(ReplyAuthFailed)
	}

	if s.requireAuth {
		return []byte(ReplyAuthRequired)
	}

	return s.process(s.ctx, payload)
}
