package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// Storage
	Backend string
	DBPath  string

	// Identity
	User string

	// Timer
	SnapshotInterval time.Duration

	// Logging
	LogLevel string
	LogFile  string

	// AMQP replication; disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sync worker
	ReplicaDBPath string
}

func Load() *Config {
	dir := configDir()
	cfg := &Config{
		Backend: getEnv("ITRACK_BACKEND", "sqlite"),
		DBPath:  getEnv("ITRACK_DB_PATH", filepath.Join(dir, "itrack.db")),

		User: getEnv("ITRACK_USER", ""),

		SnapshotInterval: getEnvDuration("ITRACK_SNAPSHOT_INTERVAL", time.Second),

		LogLevel: getEnv("ITRACK_LOG_LEVEL", "info"),
		LogFile:  getEnv("ITRACK_LOG_FILE", filepath.Join(dir, "itrack.log")),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "itrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_changes"),

		ReplicaDBPath: getEnv("ITRACK_REPLICA_DB_PATH", filepath.Join(dir, "replica.db")),
	}
	return cfg
}

// Validate validates the configuration and returns every problem in one
// error.
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.Backend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}
	if c.Backend == "sqlite" && c.DBPath == "" {
		errors = append(errors, "database path cannot be empty when using sqlite backend")
	}

	if c.SnapshotInterval < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at least 100ms", c.SnapshotInterval))
	} else if c.SnapshotInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must be at most 1 hour", c.SnapshotInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	errors = append(errors, c.amqpErrors()...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker adds the settings the sync worker cannot run without.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required for the sync worker")
	}
	errors = append(errors, c.amqpErrors()...)
	if c.ReplicaDBPath == "" {
		errors = append(errors, "replica database path cannot be empty")
	} else if c.ReplicaDBPath == c.DBPath {
		errors = append(errors, "replica database path must differ from the primary database path")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ReplicationEnabled reports whether writes should be published over AMQP.
func (c *Config) ReplicationEnabled() bool {
	return c.AMQPURL != ""
}

func (c *Config) amqpErrors() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
	if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
	}
	if c.AMQPExchange == "" {
		errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errors
}

func configDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "itrack")
	}
	return "."
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
