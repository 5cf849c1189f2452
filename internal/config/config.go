package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service  ServiceConfig         `koanf:"service"`
	Listener ListenerConfig        `koanf:"listener"`
	Kafka    KafkaConfig           `koanf:"kafka"`
	Postgres PostgresConfig        `koanf:"postgres"`
	Decode   DecodeConfig          `koanf:"decode"`
	History  HistoryConfig         `koanf:"history"`
	Retention RetentionConfig      `koanf:"retention"`
	Routers  map[string]RouterMeta `koanf:"routers"`
}

// RouterMeta is operator-supplied metadata for a monitored router, keyed
// by source address under `routers`. The entries are loaded with the rest
// of the configuration; the collector does not apply them to any router
// record.
type RouterMeta struct {
	Name     string `koanf:"name"`
	Location string `koanf:"location"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	HTTPListen             string `koanf:"http_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// ListenerConfig describes the TCP socket routers connect to.
type ListenerConfig struct {
	Address            string `koanf:"address"`
	TLS                TLSConfig `koanf:"tls"`
	MaxConnections      int    `koanf:"max_connections"`
	ReadTimeoutSeconds  int    `koanf:"read_timeout_seconds"`
}

type KafkaConfig struct {
	Brokers  []string   `koanf:"brokers"`
	ClientID string     `koanf:"client_id"`
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`

	// Topic receives one JSON-encoded event per decoded Peer Up,
	// Statistics Report, and Termination message.
	Topic string `koanf:"topic"`

	ProduceTimeoutMs int `koanf:"produce_timeout_ms"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// DecodeConfig holds per-message size limits. MaxRouteMonitoringBytes
// caps how much of a Route Monitoring or Peer Down body the collector
// reads and decodes. MaxInitTermBodyBytes is validated but not passed to
// the decoder, whose Initiation/Termination ceiling is the fixed
// 40000-byte limit in internal/bmp.
type DecodeConfig struct {
	MaxInitTermBodyBytes  int `koanf:"max_init_term_body_bytes"`
	MaxRouteMonitoringBytes int `koanf:"max_route_monitoring_bytes"`
}

// HistoryConfig controls the raw-message audit trail.
type HistoryConfig struct {
	Enabled           bool `koanf:"enabled"`
	BatchSize         int  `koanf:"batch_size"`
	FlushIntervalMs   int  `koanf:"flush_interval_ms"`
	ChannelBufferSize int  `koanf:"channel_buffer_size"`
	Compress          bool `koanf:"compress"`
}

type RetentionConfig struct {
	Days     int    `koanf:"days"`
	Timezone string `koanf:"timezone"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: BMPCOLLECTOR_KAFKA__BROKERS → kafka.brokers
	if err := k.Load(env.Provider("BMPCOLLECTOR_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BMPCOLLECTOR_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "bmp-collector-1",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Listener: ListenerConfig{
			Address:            ":4189",
			MaxConnections:     512,
			ReadTimeoutSeconds: 90,
		},
		Kafka: KafkaConfig{
			ClientID:         "bmp-collector",
			Topic:            "bmp.events",
			ProduceTimeoutMs: 5000,
		},
		Postgres: PostgresConfig{
			MaxConns: 20,
			MinConns: 2,
		},
		Decode: DecodeConfig{
			MaxInitTermBodyBytes:    40000,
			MaxRouteMonitoringBytes: 16777216,
		},
		History: HistoryConfig{
			Enabled:           true,
			BatchSize:         500,
			FlushIntervalMs:   200,
			ChannelBufferSize: 16,
			Compress:          true,
		},
		Retention: RetentionConfig{
			Days:     30,
			Timezone: "UTC",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Listener.Address == "" {
		return fmt.Errorf("config: listener.address is required")
	}
	if c.Listener.MaxConnections <= 0 {
		return fmt.Errorf("config: listener.max_connections must be > 0 (got %d)", c.Listener.MaxConnections)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 {
		return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
	}
	if c.Decode.MaxInitTermBodyBytes <= 0 {
		return fmt.Errorf("config: decode.max_init_term_body_bytes must be > 0 (got %d)", c.Decode.MaxInitTermBodyBytes)
	}
	if c.Decode.MaxRouteMonitoringBytes <= 0 {
		return fmt.Errorf("config: decode.max_route_monitoring_bytes must be > 0 (got %d)", c.Decode.MaxRouteMonitoringBytes)
	}
	if c.History.Enabled {
		if c.History.FlushIntervalMs <= 0 {
			return fmt.Errorf("config: history.flush_interval_ms must be > 0 (got %d)", c.History.FlushIntervalMs)
		}
		if c.History.BatchSize <= 0 {
			return fmt.Errorf("config: history.batch_size must be > 0 (got %d)", c.History.BatchSize)
		}
		if c.History.ChannelBufferSize <= 0 {
			return fmt.Errorf("config: history.channel_buffer_size must be > 0 (got %d)", c.History.ChannelBufferSize)
		}
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("config: retention.days must be > 0 (got %d)", c.Retention.Days)
	}
	if _, err := time.LoadLocation(c.Retention.Timezone); err != nil {
		return fmt.Errorf("config: retention.timezone is invalid: %w", err)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from a TLS settings block. Returns nil if TLS is disabled.
func BuildTLSConfig(t TLSConfig) (*tls.Config, error) {
	if !t.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if t.CAFile != "" {
		caPEM, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if t.CertFile != "" && t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the Kafka SASL settings. Returns nil if SASL is disabled.
func (k *KafkaConfig) BuildSASLMechanism() sasl.Mechanism {
	if !k.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(k.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: k.SASL.Username, Pass: k.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
