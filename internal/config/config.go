package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes accepted in AUTH_MODE. Development trusts identity headers and
// exists for local work only; token mode verifies signed bearer tokens.
const (
	AuthModeDevelopment = "development"
	AuthModeToken       = "token"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	AuthMode        string   `mapstructure:"AUTH_MODE"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret       string   `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes int      `mapstructure:"TOKEN_TTL_MINUTES"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
}

// defaults keyed by env var name. AUTH_MODE stays empty so the mode can be
// inferred from ENV.
var defaults = map[string]interface{}{
	"PORT":              "8000",
	"ENV":               "development",
	"AUTH_MODE":         "",
	"DB_MAX_CONNS":      20,
	"DB_MIN_CONNS":      5,
	"TOKEN_TTL_MINUTES": 60,
	"CORS_ORIGINS":      "http://localhost:3000",
	"RATE_LIMIT_RPS":    100,
	"RATE_LIMIT_BURST":  200,
}

// envKeys must list every mapstructure tag on Config: AutomaticEnv alone does
// not let Unmarshal see untouched env vars, so each key is bound explicitly.
var envKeys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "TOKEN_TTL_MINUTES", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
}

// Load reads configuration from the environment, with a .env file as the
// fallback for local development. A missing .env is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range envKeys {
		v.BindEnv(key)
	}
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper hands CORS_ORIGINS over as one string when it comes from the
	// environment; split it so the slice form is uniform.
	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in development mode; identity is read from request headers")
		log.Println("WARNING: set ENV=production and JWT_SECRET before exposing this server")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ResolvedAuthMode returns AUTH_MODE when set explicitly; otherwise
// development environments run header auth and everything else runs signed
// bearer tokens.
func (c *Config) ResolvedAuthMode() string {
	switch {
	case c.AuthMode != "":
		return c.AuthMode
	case c.IsDev():
		return AuthModeDevelopment
	default:
		return AuthModeToken
	}
}

// Validate rejects configurations that cannot authenticate requests: token
// mode without a signing secret, unknown auth modes, and token lifetimes
// that would issue already-expired tokens.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
	case AuthModeToken:
		if c.JWTSecret == "" {
			return fmt.Errorf(
				"JWT_SECRET must be set when AUTH_MODE is %q (current ENV=%q); "+
					"use ENV=development for header-based local auth",
				AuthModeToken, c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q",
			AuthModeDevelopment, AuthModeToken, mode)
	}

	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.TokenTTLMinutes)
	}
	return nil
}
