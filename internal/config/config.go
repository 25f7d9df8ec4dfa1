package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port            string `toml:"port" env:"PORT"`
	Environment     string `toml:"environment" env:"ENVIRONMENT"`
	ShutdownSeconds int    `toml:"shutdown_seconds" env:"SHUTDOWN_SECONDS"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri" env:"NEO4J_URI"`
	User     string `toml:"user" env:"NEO4J_USER"`
	Password string `toml:"password" env:"NEO4J_PASSWORD"`
	Database string `toml:"database" env:"NEO4J_DATABASE"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret" env:"JWT_SECRET"`
	Issuer          string `toml:"issuer" env:"JWT_ISSUER"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes" env:"JWT_TTL_MINUTES"`
	BcryptRounds    int    `toml:"bcrypt_rounds" env:"BCRYPT_ROUNDS"`
}

type IdempotencyConfig struct {
	Backend    string `toml:"backend" env:"IDEMPOTENCY_BACKEND"`
	SQLitePath string `toml:"sqlite_path" env:"IDEMPOTENCY_SQLITE_PATH"`
	TTLSeconds int    `toml:"ttl_seconds" env:"IDEMPOTENCY_TTL_SECONDS"`
	LocalCache bool   `toml:"local_cache" env:"IDEMPOTENCY_LOCAL_CACHE"`
}

type NATSConfig struct {
	URL           string `toml:"url" env:"NATS_URL"`
	SubjectPrefix string `toml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
}

type LoggingConfig struct {
	Level       string `toml:"level" env:"LOG_LEVEL"`
	RelationLog bool   `toml:"relation_log" env:"RELATION_LOG"`
}

type Config struct {
	Server      ServerConfig      `toml:"server"`
	Neo4j       Neo4jConfig       `toml:"neo4j"`
	Auth        AuthConfig        `toml:"auth"`
	Idempotency IdempotencyConfig `toml:"idempotency"`
	NATS        NATSConfig        `toml:"nats"`
	Logging     LoggingConfig     `toml:"logging"`
}

const (
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Environment: "development", ShutdownSeconds: 10},
		Neo4j:  Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j", Database: "neo4j"},
		Auth:   AuthConfig{Issuer: "kindred", TokenTTLMinutes: 60, BcryptRounds: 10},
		Idempotency: IdempotencyConfig{
			Backend:    BackendNeo4j,
			SQLitePath: "data/idempotency.db",
			TTLSeconds: 600,
			LocalCache: true,
		},
		NATS:    NATSConfig{SubjectPrefix: "kindred"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load layers the TOML file at path (optional) and then the environment over
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse TOML: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required in production"))
	}
	if c.Auth.BcryptRounds < 4 || c.Auth.BcryptRounds > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_rounds must be within [4,31], got %d", c.Auth.BcryptRounds))
	}
	switch c.Idempotency.Backend {
	case BackendNeo4j:
	case BackendSQLite:
		if c.Idempotency.SQLitePath == "" {
			errs = append(errs, errors.New("idempotency.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown idempotency backend %q", c.Idempotency.Backend))
	}
	if c.Idempotency.TTLSeconds <= 0 {
		errs = append(errs, errors.New("idempotency.ttl_seconds must be positive"))
	}
	if c.Neo4j.URI == "" {
		errs = append(errs, errors.New("neo4j.uri is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Idempotency.TTLSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}
