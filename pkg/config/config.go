// Package config loads micbridge settings from MICBRIDGE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	TransportWebSocket = "ws"
	TransportAMQP      = "amqp"
	TransportLoopback  = "loopback"

	BackendArecord   = "arecord"
	BackendSynthetic = "synthetic"
)

type Config struct {
	ListenAddr     string   `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8787"`
	BridgePath     string   `env:"BRIDGE_PATH" envDefault:"/bridge"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	Transport      string   `env:"TRANSPORT" envDefault:"ws"`

	AMQPURL       string        `env:"AMQP_URL"`
	AMQPExchange  string        `env:"AMQP_EXCHANGE" envDefault:"micbridge"`
	AMQPQueue     string        `env:"AMQP_QUEUE" envDefault:"micbridge.bridge"`
	AMQPRetries   int           `env:"AMQP_RETRIES" envDefault:"5"`
	AMQPRetryWait time.Duration `env:"AMQP_RETRY_WAIT" envDefault:"2s"`
	Producer      string        `env:"PRODUCER" envDefault:"micbridge"`

	RecordingsDir  string `env:"RECORDINGS_DIR" envDefault:"recordings"`
	CaptureBackend string `env:"CAPTURE_BACKEND" envDefault:"arecord"`
	ArecordBinary  string `env:"ARECORD_BINARY" envDefault:"arecord"`
	DeviceDir      string `env:"DEVICE_DIR" envDefault:"/dev/snd"`
	// granted|denied forces the permission outcome; empty checks DeviceDir.
	PermissionOverride string `env:"PERMISSION_OVERRIDE"`

	EmitFailureEvents bool          `env:"EMIT_FAILURE_EVENTS"`
	BackgroundPolicy  string        `env:"BACKGROUND_POLICY" envDefault:"keep"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: "MICBRIDGE_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Override adjusts a parsed Config before validation, e.g. from flags.
type Override func(*Config)

// Load parses the environment, applies overrides in order and validates
// the result.
func Load(overrides ...Override) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportWebSocket, TransportLoopback:
	case TransportAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("MICBRIDGE_AMQP_URL is required for amqp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.CaptureBackend {
	case BackendArecord, BackendSynthetic:
	default:
		errs = append(errs, fmt.Errorf("unknown capture backend %q", c.CaptureBackend))
	}
	switch strings.ToLower(c.PermissionOverride) {
	case "", "granted", "denied":
	default:
		errs = append(errs, fmt.Errorf("unknown permission override %q", c.PermissionOverride))
	}
	switch c.BackgroundPolicy {
	case "", "keep", "stop":
	default:
		errs = append(errs, fmt.Errorf("unknown background policy %q", c.BackgroundPolicy))
	}
	if !strings.HasPrefix(c.BridgePath, "/") {
		errs = append(errs, fmt.Errorf("bridge path %q must start with /", c.BridgePath))
	}
	if c.RecordingsDir == "" {
		errs = append(errs, errors.New("recordings dir is required"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Level maps LogLevel onto slog.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
