package magicdb

import (
	"context"
	"sync"

	"github.com/raniellyferreira/magicdb/executor"
	"github.com/raniellyferreira/magicdb/fanout"
	"github.com/raniellyferreira/magicdb/server"
	"github.com/raniellyferreira/magicdb/storage"
)

// Server is a magic key-value server, or a reflect proxy when the protocol
// is ProtocolReflect
type Server struct {
	config *config

	// Components
	store      storage.Store
	aggregate  *fanout.Aggregate
	executor   *executor.Executor
	controller *fanout.Controller
	server     *server.Server

	// State
	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a new Server with the given options
//
// The server is created but not started. Use Start() to begin listening.
//
// Example:
//
//	srv, err := magicdb.New(
//		magicdb.WithAddr("127.0.0.1:7070"),
//		magicdb.WithProtocol("reflect"),
//		magicdb.WithReflectTargets([]string{"127.0.0.1:7878"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Server, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	stor := cfg.store
	if stor == nil {
		stor = storage.NewMemory()
	}

	aggregate := cfg.aggregate
	if aggregate == nil {
		aggregate = fanout.NewAggregate()
	}

	logs := &loggerAdapter{logger: cfg.logger}
	transport := fanout.NewTransport(cfg.connectTimeout, cfg.readTimeout, cfg.writeTimeout)

	s := &Server{
		config:    cfg,
		store:     stor,
		aggregate: aggregate,
		executor: executor.New(stor,
			executor.WithSender(transport),
			executor.WithScriptTimeout(cfg.scriptTimeout),
		),
	}

	var handler server.Handler = s.executor
	network := string(cfg.protocol)

	if cfg.protocol == ProtocolReflect {
		credentials := make(map[string]fanout.Credentials, len(cfg.targetCredentials))
		for target, creds := range cfg.targetCredentials {
			credentials[target] = fanout.Credentials{Username: creds.Username, Password: creds.Password}
		}

		s.controller = fanout.NewController(cfg.targets,
			fanout.WithCredentials(credentials),
			fanout.WithAggregate(aggregate),
			fanout.WithTransport(transport),
			fanout.WithMaxConcurrency(cfg.maxConcurrency),
			fanout.WithLogger(logs),
		)
		handler = s.controller
		network = "tcp"
	}

	s.server = server.NewServer(network, cfg.addr, handler)
	s.server.SetLogger(logs)
	s.server.SetTimeouts(cfg.readTimeout, cfg.writeTimeout)
	s.server.SetRequireAuth(cfg.requireAuth)
	if cfg.credentials != nil {
		s.server.SetCredentials(cfg.credentials.Username, cfg.credentials.Password)
	}

	return s, nil
}

// Start begins listening. The server closes itself when ctx is done.
//
// Example:
//
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.started {
		return nil // Already started
	}

	if err := s.server.Start(); err != nil {
		s.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: s.config.addr})
		return err
	}
	s.started = true

	if ctx != nil {
		context.AfterFunc(ctx, func() { _ = s.Close() })
	}

	fields := []Field{
		{Key: "addr", Value: s.server.Addr()},
		{Key: "protocol", Value: string(s.config.protocol)},
	}
	if s.controller != nil {
		fields = append(fields, Field{Key: "targets", Value: len(s.config.targets)})
	}
	s.config.logger.Info("Server listening", fields...)

	return nil
}

// Close stops the server and waits for open connections to finish
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if !s.started {
		return nil
	}

	err := s.server.Stop()
	s.config.logger.Info("Server stopped", Field{Key: "addr", Value: s.server.Addr()})
	return err
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.server.Addr()
}

// Protocol returns the serving mode
func (s *Server) Protocol() Protocol {
	return s.config.protocol
}

// Store returns the shared key-value store
func (s *Server) Store() storage.Store {
	return s.store
}

// Aggregate returns the cell holding the last reflect response
func (s *Server) Aggregate() *fanout.Aggregate {
	return s.aggregate
}

// Stats returns server statistics
func (s *Server) Stats() map[string]interface{} {
	stats := s.server.Stats()
	stats["protocol"] = string(s.config.protocol)
	stats["keys"] = s.store.KeyCount()

	if s.controller != nil {
		for key, value := range s.controller.Stats() {
			stats["reflect_"+key] = value
		}
	}

	return stats
}
