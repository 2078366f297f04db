// Package config loads service configuration from the environment.
//
// All keys use the FLOWDECK_ prefix. A .env file in the working directory is
// honoured for local development; real deployments set the environment
// directly.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalid marks configuration that must abort startup.
var ErrInvalid = errors.New("config: invalid")

const (
	// MinSecretBytes is the minimum length of the token signing secret.
	MinSecretBytes = 32
	// MinAPIKeyBytes is the minimum entropy for generated API keys.
	MinAPIKeyBytes = 16

	defaultAddr        = ":8080"
	defaultTokenTTL    = 15 * time.Minute
	defaultAPIKeyBytes = 32
	defaultRateBurst   = 10
	defaultRatePerSec  = 5
)

// Config holds every runtime knob the service recognises.
type Config struct {
	Addr        string
	DatabaseDSN string

	// TokenSecret signs access tokens. Generated randomly when unset, which
	// invalidates all outstanding tokens on restart; persistent deployments
	// must set it explicitly.
	TokenSecret     []byte
	SecretGenerated bool
	TokenTTL        time.Duration
	BcryptCost      int
	APIKeyBytes     int

	EngineBaseURL string
	EngineToken   string

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment, applying defaults and
// validating hard limits. Validation failures wrap ErrInvalid and are fatal.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        getenv("FLOWDECK_ADDR", defaultAddr),
		DatabaseDSN: os.Getenv("FLOWDECK_PG_DSN"),
		TokenTTL:    defaultTokenTTL,
		BcryptCost:  bcrypt.DefaultCost,
		APIKeyBytes: defaultAPIKeyBytes,

		EngineBaseURL: os.Getenv("FLOWDECK_ENGINE_URL"),
		EngineToken:   os.Getenv("FLOWDECK_ENGINE_TOKEN"),

		RateBurst:  defaultRateBurst,
		RatePerSec: defaultRatePerSec,
	}

	if raw := strings.TrimSpace(os.Getenv("FLOWDECK_TOKEN_SECRET")); raw != "" {
		cfg.TokenSecret = []byte(raw)
	} else {
		secret := make([]byte, 48)
		if _, err := rand.Read(secret); err != nil {
			return Config{}, fmt.Errorf("%w: generate token secret: %v", ErrInvalid, err)
		}
		cfg.TokenSecret = []byte(base64.RawURLEncoding.EncodeToString(secret))
		cfg.SecretGenerated = true
	}
	if len(cfg.TokenSecret) < MinSecretBytes {
		return Config{}, fmt.Errorf("%w: FLOWDECK_TOKEN_SECRET must be at least %d bytes", ErrInvalid, MinSecretBytes)
	}

	if raw := os.Getenv("FLOWDECK_TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("%w: FLOWDECK_TOKEN_TTL: %q is not a positive duration", ErrInvalid, raw)
		}
		cfg.TokenTTL = ttl
	}

	var err error
	if cfg.BcryptCost, err = getint("FLOWDECK_BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("%w: FLOWDECK_BCRYPT_COST must be between %d and %d", ErrInvalid, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if cfg.APIKeyBytes, err = getint("FLOWDECK_API_KEY_BYTES", cfg.APIKeyBytes); err != nil {
		return Config{}, err
	}
	if cfg.APIKeyBytes < MinAPIKeyBytes {
		return Config{}, fmt.Errorf("%w: FLOWDECK_API_KEY_BYTES must be at least %d", ErrInvalid, MinAPIKeyBytes)
	}

	if cfg.RateBurst, err = getint("FLOWDECK_RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = getint("FLOWDECK_RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst < 1 || cfg.RatePerSec < 1 {
		return Config{}, fmt.Errorf("%w: rate limit knobs must be positive", ErrInvalid)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalid, key, raw)
	}
	return v, nil
}
