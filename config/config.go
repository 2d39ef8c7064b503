package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the service settings read from the environment.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"ENV" envDefault:"production"`

	MongoURI     string        `env:"MONGO_URI"`
	MongoDBURI   string        `env:"MONGODB_URI"`
	DBName       string        `env:"DB_NAME" envDefault:"barrim"`
	MongoTimeout time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret          string   `env:"JWT_SECRET"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	MatchingTypes    []string      `env:"MATCHING_TYPES" envSeparator:"," envDefault:"BINARY,LEVEL_COMMISSION,DIRECT_BONUS"`
	MatchingLockTTL  time.Duration `env:"MATCHING_LOCK_TTL" envDefault:"30s"`
	MatchingWorkers  int           `env:"MATCHING_WORKERS" envDefault:"8"`
	ScheduleEnabled  bool          `env:"MATCHING_SCHEDULE_ENABLED" envDefault:"false"`
	ScheduleInterval time.Duration `env:"MATCHING_SCHEDULE_INTERVAL" envDefault:"1h"`
	CycleTimeout     time.Duration `env:"MATCHING_CYCLE_TIMEOUT" envDefault:"10m"`

	FirebaseCredentialsBase64 string `env:"FIREBASE_CREDENTIALS_BASE64"`
	GoogleCredentialsFile     string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseProjectID         string `env:"FIREBASE_PROJECT_ID"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"2525"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
}

const developmentMongoURI = "mongodb://localhost:27017/?replicaSet=rs0"

// Load reads .env if present and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return Parse()
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if _, err := cfg.MongoConnectionURI(); err != nil {
		return nil, err
	}
	if cfg.MatchingWorkers <= 0 {
		return nil, fmt.Errorf("MATCHING_WORKERS must be positive, got %d", cfg.MatchingWorkers)
	}
	if cfg.ScheduleEnabled && cfg.ScheduleInterval <= 0 {
		return nil, fmt.Errorf("MATCHING_SCHEDULE_INTERVAL must be positive, got %s", cfg.ScheduleInterval)
	}
	if cfg.CycleTimeout <= 0 {
		return nil, fmt.Errorf("MATCHING_CYCLE_TIMEOUT must be positive, got %s", cfg.CycleTimeout)
	}
	return &cfg, nil
}

// IsDevelopment reports whether ENV names a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// MongoConnectionURI picks MONGO_URI, then MONGODB_URI. A local default is
// only used in development.
func (c *Config) MongoConnectionURI() (string, error) {
	switch {
	case c.MongoURI != "":
		return c.MongoURI, nil
	case c.MongoDBURI != "":
		return c.MongoDBURI, nil
	case c.IsDevelopment():
		return developmentMongoURI, nil
	}
	return "", errors.New("MONGO_URI or MONGODB_URI environment variable is required for production")
}

// SMTPConfigured reports whether email notifications can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}
