// Package config loads magic.toml.
//
// The file is read with viper, so every key can be overridden from the
// environment with the MAGIC_ prefix (MAGIC_SERVER_PORT, MAGIC_REFLECT_TARGETS,
// ...). WriteDefault renders the default file with go-toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/raniellyferreira/magicdb"
	"github.com/spf13/viper"
)

const (
	// DefaultPath is where setup writes and start reads the configuration
	DefaultPath = "magic.toml"

	configType = "toml"
	envPrefix  = "MAGIC"
	fileMode   = 0o600
)

var (
	// ErrNotFound indicates the configuration file does not exist
	ErrNotFound = errors.New("config file not found")

	// ErrExists indicates WriteDefault would overwrite a file
	ErrExists = errors.New("config file already exists")
)

// Config mirrors magic.toml
type Config struct {
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Reflect   ReflectConfig   `mapstructure:"reflect" toml:"reflect"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" toml:"timeouts"`
	Log       LogConfig       `mapstructure:"log" toml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" toml:"telemetry"`
}

// ServerConfig is the [server] table
type ServerConfig struct {
	Port        int    `mapstructure:"port" toml:"port"`
	BindAddress string `mapstructure:"bind_address" toml:"bind_address"`
	Protocol    string `mapstructure:"protocol" toml:"protocol"`
	Username    string `mapstructure:"username" toml:"username,omitempty"`
	Password    string `mapstructure:"password" toml:"password,omitempty"`
	RequireAuth bool   `mapstructure:"require_auth" toml:"require_auth"`
}

// ReflectConfig is the [reflect] table
type ReflectConfig struct {
	Targets        []string            `mapstructure:"targets" toml:"targets"`
	MaxConcurrency int                 `mapstructure:"max_concurrency" toml:"max_concurrency"`
	Credentials    []TargetCredentials `mapstructure:"credentials" toml:"credentials,omitempty"`
}

// TargetCredentials is one [[reflect.credentials]] entry
type TargetCredentials struct {
	Target   string `mapstructure:"target" toml:"target"`
	Username string `mapstructure:"username" toml:"username"`
	Password string `mapstructure:"password" toml:"password"`
}

// TimeoutsConfig is the [timeouts] table. Values are Go durations; "0s"
// disables the timeout.
type TimeoutsConfig struct {
	Connect string `mapstructure:"connect" toml:"connect"`
	Read    string `mapstructure:"read" toml:"read"`
	Write   string `mapstructure:"write" toml:"write"`
	Script  string `mapstructure:"script" toml:"script"`
}

// LogConfig is the [log] table
type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

// TelemetryConfig is the [telemetry] table. Tracing is off while Endpoint
// is empty.
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint" toml:"endpoint"`
	ServiceName string `mapstructure:"service_name" toml:"service_name"`
}

// Default returns the configuration written by setup
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        7070,
			BindAddress: "127.0.0.1",
			Protocol:    string(magicdb.ProtocolReflect),
		},
		Reflect: ReflectConfig{
			Targets: []string{"127.0.0.1:7878", "192.168.1.5:7878"},
		},
		Timeouts: TimeoutsConfig{
			Connect: "5s",
			Read:    "30s",
			Write:   "10s",
			Script:  "5s",
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "magicdb",
		},
	}
}

// setDefaults registers every key so env overrides apply even when the
// file omits them
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.protocol", string(magicdb.ProtocolTCP))
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.require_auth", false)
	v.SetDefault("reflect.targets", []string{})
	v.SetDefault("reflect.max_concurrency", 0)
	v.SetDefault("timeouts.connect", d.Timeouts.Connect)
	v.SetDefault("timeouts.read", d.Timeouts.Read)
	v.SetDefault("timeouts.write", d.Timeouts.Write)
	v.SetDefault("timeouts.script", d.Timeouts.Script)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
}

// Load reads path into a Config. A nil v uses a fresh viper instance.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if path == "" {
		path = DefaultPath
	}

	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes Default() to path. An existing file is kept unless
// overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if path == "" {
		path = DefaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks values that viper cannot type-check
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", magicdb.ErrInvalidConfig, c.Server.Port)
	}
	if _, err := magicdb.ParseProtocol(c.Server.Protocol); err != nil {
		return err
	}
	if _, err := c.Durations(); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	for i, cred := range c.Reflect.Credentials {
		if cred.Target == "" {
			return fmt.Errorf("%w: reflect.credentials[%d] has no target", magicdb.ErrInvalidConfig, i)
		}
	}
	return nil
}

// Addr returns bind_address:port
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.BindAddress, strconv.Itoa(c.Server.Port))
}

// Durations holds the parsed [timeouts] table
type Durations struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
	Script  time.Duration
}

// Durations parses the [timeouts] table
func (c *Config) Durations() (Durations, error) {
	var d Durations
	for _, field := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"timeouts.connect", c.Timeouts.Connect, &d.Connect},
		{"timeouts.read", c.Timeouts.Read, &d.Read},
		{"timeouts.write", c.Timeouts.Write, &d.Write},
		{"timeouts.script", c.Timeouts.Script, &d.Script},
	} {
		if field.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(field.value)
		if err != nil {
			return Durations{}, fmt.Errorf("%w: %s: %v", magicdb.ErrInvalidConfig, field.name, err)
		}
		*field.dst = parsed
	}
	return d, nil
}

// SlogLevel parses the configured level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %v", magicdb.ErrInvalidConfig, err)
	}
	return level, nil
}

// Options converts the configuration into server options
func (c *Config) Options() ([]magicdb.Option, error) {
	durations, err := c.Durations()
	if err != nil {
		return nil, err
	}

	opts := []magicdb.Option{
		magicdb.WithAddr(c.Addr()),
		magicdb.WithProtocol(c.Server.Protocol),
		magicdb.WithRequireAuth(c.Server.RequireAuth),
		magicdb.WithMaxConcurrency(c.Reflect.MaxConcurrency),
		magicdb.WithConnectTimeout(durations.Connect),
		magicdb.WithReadTimeout(durations.Read),
		magicdb.WithWriteTimeout(durations.Write),
		magicdb.WithScriptTimeout(durations.Script),
	}

	if c.Server.Username != "" || c.Server.Password != "" {
		opts = append(opts, magicdb.WithCredentials(c.Server.Username, c.Server.Password))
	}

	if len(c.Reflect.Targets) > 0 {
		opts = append(opts, magicdb.WithReflectTargets(c.Reflect.Targets))
	}

	if len(c.Reflect.Credentials) > 0 {
		creds := make(map[string]magicdb.Credentials, len(c.Reflect.Credentials))
		for _, cred := range c.Reflect.Credentials {
			creds[cred.Target] = magicdb.Credentials{Username: cred.Username, Password: cred.Password}
		}
		opts = append(opts, magicdb.WithTargetCredentials(creds))
	}

	return opts, nil
}
