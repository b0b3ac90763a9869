package magicdb

import (
	"strings"
	"time"

	"github.com/raniellyferreira/magicdb/fanout"
	"github.com/raniellyferreira/magicdb/storage"
)

// Protocol selects how the server is reached
type Protocol string

const (
	// ProtocolTCP serves one request per TCP connection
	ProtocolTCP Protocol = "tcp"

	// ProtocolUDP serves one request per datagram
	ProtocolUDP Protocol = "udp"

	// ProtocolReflect fans every TCP request out to the reflect targets
	ProtocolReflect Protocol = "reflect"
)

// ParseProtocol parses a protocol name case-insensitively
func ParseProtocol(name string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(strings.TrimSpace(name))); p {
	case ProtocolTCP, ProtocolUDP, ProtocolReflect:
		return p, nil
	case "":
		return ProtocolTCP, nil
	default:
		return "", &ConfigError{Option: "protocol", Err: ErrUnknownProtocol}
	}
}

// Credentials is a username/password pair
type Credentials struct {
	Username string
	Password string
}

// config holds the configuration for a Server
type config struct {
	// Listener settings
	addr     string
	protocol Protocol

	// Client authentication
	credentials *Credentials
	requireAuth bool

	// Reflect settings
	targets           []string
	targetCredentials map[string]Credentials
	maxConcurrency    int

	// Timeouts; 0 disables
	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	scriptTimeout  time.Duration

	// Shared state
	store     storage.Store
	aggregate *fanout.Aggregate

	// Observability
	logger Logger
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:              "127.0.0.1:7070",
		protocol:          ProtocolTCP,
		targetCredentials: map[string]Credentials{},
		connectTimeout:    5 * time.Second,
		readTimeout:       30 * time.Second,
		writeTimeout:      10 * time.Second,
		scriptTimeout:     5 * time.Second,
		logger:            NewSlogLogger(nil),
	}
}

// validate checks combinations that single options cannot see
func (c *config) validate() error {
	if c.protocol == ProtocolReflect && len(c.targets) == 0 {
		return invalid("reflect targets", "reflect mode needs at least one target")
	}

	if c.requireAuth {
		if c.credentials == nil {
			return invalid("require auth", "no server credentials configured")
		}
		if c.protocol == ProtocolUDP {
			return invalid("require auth", "udp datagrams cannot carry a session")
		}
	}

	for target := range c.targetCredentials {
		found := false
		for _, t := range c.targets {
			if t == target {
				found = true
				break
			}
		}
		if !found {
			return invalid("target credentials", "%s is not a reflect target", target)
		}
	}

	return nil
}

// Option represents a configuration option for a Server
type Option func(*config) error

// WithAddr sets the listen address
//
// Example:
//
//	WithAddr("0.0.0.0:7070")
func WithAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return invalid("addr", "empty address")
		}
		c.addr = addr
		return nil
	}
}

// WithProtocol selects tcp, udp or reflect
//
// Example:
//
//	WithProtocol("reflect")
func WithProtocol(name string) Option {
	return func(c *config) error {
		p, err := ParseProtocol(name)
		if err != nil {
			return err
		}
		c.protocol = p
		return nil
	}
}

// WithCredentials sets the server-wide AUTH credentials
//
// Example:
//
//	WithCredentials("merlin", "s3cret")
func WithCredentials(username, password string) Option {
	return func(c *config) error {
		if username == "" || password == "" {
			return invalid("credentials", "username and password are required")
		}
		if strings.ContainsAny(username+password, " \t\r\n") {
			return invalid("credentials", "username and password cannot contain whitespace")
		}
		c.credentials = &Credentials{Username: username, Password: password}
		return nil
	}
}

// WithRequireAuth rejects clients that do not start with a successful AUTH
func WithRequireAuth(require bool) Option {
	return func(c *config) error {
		c.requireAuth = require
		return nil
	}
}

// WithReflectTargets sets the ordered list of reflect targets.
// The reply segments follow this order.
//
// Example:
//
//	WithReflectTargets([]string{"127.0.0.1:7878", "192.168.1.5:7878"})
func WithReflectTargets(targets []string) Option {
	return func(c *config) error {
		for _, target := range targets {
			if strings.TrimSpace(target) == "" {
				return invalid("reflect targets", "empty target")
			}
		}
		c.targets = append([]string(nil), targets...)
		return nil
	}
}

// WithTargetCredentials sets the credentials used to AUTH against
// individual reflect targets
func WithTargetCredentials(credentials map[string]Credentials) Option {
	return func(c *config) error {
		c.targetCredentials = make(map[string]Credentials, len(credentials))
		for target, creds := range credentials {
			c.targetCredentials[target] = creds
		}
		return nil
	}
}

// WithMaxConcurrency limits how many reflect targets are contacted at once.
// 0 means unlimited, 1 means strictly sequential.
func WithMaxConcurrency(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return invalid("max concurrency", "%d is negative", n)
		}
		c.maxConcurrency = n
		return nil
	}
}

// WithConnectTimeout sets the timeout for outbound connections
//
// Example:
//
//	WithConnectTimeout(10 * time.Second)
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return invalid("connect timeout", "%v is negative", timeout)
		}
		c.connectTimeout = timeout
		return nil
	}
}

// WithReadTimeout sets the read deadline for client and target sockets
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return invalid("read timeout", "%v is negative", timeout)
		}
		c.readTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets the write deadline for client and target sockets
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return invalid("write timeout", "%v is negative", timeout)
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithScriptTimeout bounds how long one INCANT script may run
//
// Example:
//
//	WithScriptTimeout(500 * time.Millisecond)
func WithScriptTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout < 0 {
			return invalid("script timeout", "%v is negative", timeout)
		}
		c.scriptTimeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return invalid("logger", "nil logger")
		}
		c.logger = logger
		return nil
	}
}

// WithStore shares an existing store instead of creating one
func WithStore(store storage.Store) Option {
	return func(c *config) error {
		if store == nil {
			return invalid("store", "nil store")
		}
		c.store = store
		return nil
	}
}

// WithAggregate shares an existing aggregate cell with the reflect controller
func WithAggregate(aggregate *fanout.Aggregate) Option {
	return func(c *config) error {
		if aggregate == nil {
			return invalid("aggregate", "nil aggregate")
		}
		c.aggregate = aggregate
		return nil
	}
}
