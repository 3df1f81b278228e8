package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

const (
	defaultDecryptDelay = 50 * time.Millisecond
	defaultSessionTTL   = 12 * time.Hour
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// The stock url tag rejects file:/// because it has no host.
	v.RegisterValidation("artifact_url", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		switch u.Scheme {
		case "file":
			return true
		case "http", "https":
			return u.Host != ""
		}
		return false
	})
	return v
}

// Config holds all runtime configuration for the viewer API.
// Nothing here is secret: the password only ever arrives in an unlock request.
type Config struct {
	Environment    string   `validate:"oneof=development production test"`
	Port           string   `validate:"required,numeric"`
	AllowedOrigins []string `validate:"min=1,dive,required"`

	// Where artifacts live. Relative source references resolve against ArtifactBaseURL;
	// file:// references are served from DataRoot.
	ArtifactBaseURL string `validate:"required,artifact_url"`
	DataRoot        string `validate:"required"`
	Sources         domain.Sources

	DecryptDelay time.Duration `validate:"gte=0"`
	LogLevel     slog.Level

	// Signs viewer sessions. Empty means a random per-process secret.
	SessionSecret string        `validate:"omitempty,min=32"`
	SessionTTL    time.Duration `validate:"gt=0"`
}

// LoadEnvFiles applies the dotenv cascade for env. Missing files are skipped and
// variables already set in the process environment win.
func LoadEnvFiles(env string) {
	for _, filename := range []string{".env." + env + ".local", ".env." + env, ".env.local", ".env"} {
		if s, err := os.Stat(filename); err == nil && !s.IsDir() {
			_ = godotenv.Load(filename)
		}
	}
}

// Environment returns THREADVAULT_ENV, defaulting to production.
func Environment() string {
	return getEnv("THREADVAULT_ENV", "production")
}

// Load parses the environment and applies sensible default fallbacks.
func Load() (*Config, error) {
	env := Environment()

	// Strict CORS: must be explicitly defined in production
	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "")
	if corsOrigins == "" {
		if env == "production" {
			return nil, errors.New("config: CORS_ALLOWED_ORIGINS is required in production")
		}
		corsOrigins = "http://localhost:5173"
	}

	delay := defaultDecryptDelay
	if raw := getEnv("DECRYPT_DELAY", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid DECRYPT_DELAY %q: %w", raw, err)
		}
		delay = d
	}

	ttl := defaultSessionTTL
	if raw := getEnv("SESSION_TTL", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid SESSION_TTL %q: %w", raw, err)
		}
		ttl = d
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Environment:     env,
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  splitList(corsOrigins),
		ArtifactBaseURL: getEnv("ARTIFACT_BASE_URL", "file:///"),
		DataRoot:        getEnv("DATA_ROOT", "."),
		Sources: domain.Sources{
			Annotated: getEnv("ANNOTATED_PATH", domain.DefaultAnnotatedPath),
			Threads:   getEnv("THREADS_PATH", domain.DefaultThreadsPath),
			Config:    getEnv("CONFIG_PATH", domain.DefaultConfigPath),
		},
		DecryptDelay:  delay,
		LogLevel:      level,
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    ttl,
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
