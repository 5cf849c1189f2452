package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			InstanceID:             "test",
			HTTPListen:             ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Listener: ListenerConfig{
			Address:        ":4189",
			MaxConnections: 10,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "bmp.events",
		},
		Postgres: PostgresConfig{
			DSN:      "postgres://localhost/test",
			MaxConns: 10,
			MinConns: 2,
		},
		Decode: DecodeConfig{
			MaxInitTermBodyBytes:    40000,
			MaxRouteMonitoringBytes: 1024,
		},
		History: HistoryConfig{
			Enabled:           true,
			BatchSize:         500,
			FlushIntervalMs:   200,
			ChannelBufferSize: 16,
		},
		Retention: RetentionConfig{
			Days:     30,
			Timezone: "UTC",
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func TestValidate_NoListenerAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Listener.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty listener address")
	}
}

func TestValidate_NoBrokers(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Brokers = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty brokers")
	}
}

func TestValidate_NoTopic(t *testing.T) {
	cfg := validConfig()
	cfg.Kafka.Topic = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty kafka topic")
	}
}

func TestValidate_NoDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.DSN = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestValidate_MaxInitTermBodyBytesZero(t *testing.T) {
	cfg := validConfig()
	cfg.Decode.MaxInitTermBodyBytes = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_init_term_body_bytes = 0")
	}
}

func TestValidate_HistoryFlushIntervalZero(t *testing.T) {
	cfg := validConfig()
	cfg.History.FlushIntervalMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for history.flush_interval_ms = 0")
	}
}

func TestValidate_HistoryDisabledSkipsFlushCheck(t *testing.T) {
	cfg := validConfig()
	cfg.History.Enabled = false
	cfg.History.FlushIntervalMs = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled history to skip flush_interval_ms check, got: %v", err)
	}
}

func TestValidate_RetentionDaysZero(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Days = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for retention.days = 0")
	}
}

func TestValidate_ShutdownTimeoutZero(t *testing.T) {
	cfg := validConfig()
	cfg.Service.ShutdownTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for shutdown_timeout_seconds = 0")
	}
}

func TestValidate_InvalidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Timezone = "Not/A/Real/Zone"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestValidate_ValidTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Retention.Timezone = "America/New_York"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
listener:
  address: ":4189"
kafka:
  brokers:
    - "localhost:9092"
  topic: "bmp.events"
postgres:
  dsn: "postgres://localhost/test"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideDSN(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BMPCOLLECTOR_POSTGRES__DSN", "postgres://envhost/envdb")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://envhost/envdb" {
		t.Errorf("expected DSN from env, got %q", cfg.Postgres.DSN)
	}
}

func TestLoad_EnvOverrideLogLevel(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BMPCOLLECTOR_SERVICE__LOG_LEVEL", "debug")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.LogLevel != "debug" {
		t.Errorf("expected log_level 'debug' from env, got %q", cfg.Service.LogLevel)
	}
}

func TestLoad_EnvEmptyTopicFailsValidation(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("BMPCOLLECTOR_KAFKA__TOPIC", "")

	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error for empty kafka topic via env")
	}
}
