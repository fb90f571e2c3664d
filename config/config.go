package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment and
// optionally overridden by command-line flags.
type Config struct {
	Port          string `env:"PORT" envDefault:"4000"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	StorageType      string `env:"STORAGE_TYPE" envDefault:"memory"`
	DataSourceName   string `env:"DATA_SOURCE_NAME" envDefault:"codeshare.db"`
	DatabaseURL      string `env:"DATABASE_URL"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisKey         string `env:"REDIS_KEY" envDefault:"codeshare"`
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./data"`
	S3BucketName     string `env:"S3_BUCKET_NAME"`

	RequireTitle   bool          `env:"CODESHARE_REQUIRE_TITLE" envDefault:"false"`
	PersistTimeout time.Duration `env:"CODESHARE_PERSIST_TIMEOUT" envDefault:"0s"`

	// ListenAddr is ":"+Port unless -listen is given.
	ListenAddr string `env:"-"`
}

// Load reads .env (if present), parses the environment and then applies
// flags from args. args excludes the program name.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Debug("No .env file found")
		} else {
			logrus.WithError(err).Warn("Failed to load .env file")
		}
	}
	return parse(args)
}

func parse(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	flags := flag.NewFlagSet("codeshare-server", flag.ContinueOnError)
	listen := flags.String("listen", "", "Set the server listen address (default \":$PORT\")")
	logLevel := flags.String("loglevel", cfg.LogLevel, "Set the logging level: debug, info, warn, error, fatal, panic")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = *logLevel
	cfg.ListenAddr = ":" + cfg.Port
	if *listen != "" {
		cfg.ListenAddr = *listen
	}

	if cfg.PersistTimeout < 0 {
		return Config{}, fmt.Errorf("CODESHARE_PERSIST_TIMEOUT must not be negative, got %s", cfg.PersistTimeout)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("invalid log level: %w", err)
	}
	return cfg, nil
}
