package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		LoginPassword   string
		StrictLogin     bool
		TokenTTLMinutes int
		BcryptCost      int
	}
	GraphQL struct {
		MaxDepth int
	}
	Log struct {
		Level  string
		Format string
	}
}

// TokenTTL returns the configured token lifetime; zero means no expiry.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Validate reports settings the server cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.Auth.LoginPassword == "" {
		return errors.New("auth login password is required")
	}
	return nil
}

// Load reads configuration from environment variables (seeded from .env),
// an optional config file and defaults. An empty path looks for ./config.*.
func Load(path string) (Config, error) {
	// existing environment wins over .env entries
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LIBRARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:4000")
	v.SetDefault("database.path", "data/library.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.loginpassword", "secret")
	v.SetDefault("auth.strictlogin", false)
	v.SetDefault("auth.tokenttlminutes", 0)
	v.SetDefault("auth.bcryptcost", 0)
	v.SetDefault("graphql.maxdepth", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// names used by existing deployments
	_ = v.BindEnv("auth.jwtsecret", "LIBRARY_AUTH_JWTSECRET", "JWT_SECRET")
	_ = v.BindEnv("database.path", "LIBRARY_DATABASE_PATH", "DATABASE_PATH")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // optional file
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
