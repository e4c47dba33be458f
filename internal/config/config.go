package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultMaxPlaintextLen caps the plaintext length accepted for
	// system-encrypted messages.
	DefaultMaxPlaintextLen = 500

	// DefaultSweepInterval is how often the scheduled-destroy sweeper scans
	// for expired messages.
	DefaultSweepInterval = 30 * time.Second
)

// Config holds server configuration.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr         string
	DatabasePath string
	MasterSecret string
	// ChatKey is the process-wide symmetric key used for system-encrypted
	// messages. Loaded once at startup, never rotated during a run.
	ChatKey         [32]byte
	Debug           bool
	AllowedOrigins  []string
	MaxPlaintextLen int
	SweepInterval   time.Duration
}

// Overrides optionally overrides values from environment variables.
//
// A nil pointer means "use the environment/default value".
type Overrides struct {
	Addr          *string
	DatabasePath  *string
	MasterSecret  *string
	ChatKey       *string
	Debug         *bool
	SweepInterval *time.Duration
}

// Load loads server configuration from environment variables and applies any
// explicit overrides. A .env file in the working directory is honored when
// present.
func Load(overrides Overrides) (*Config, error) {
	// Best effort; running without a .env file is the normal case.
	_ = godotenv.Load()

	port := 3005
	if portStr := os.Getenv("PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	addr := fmt.Sprintf(":%d", port)
	if overrides.Addr != nil {
		addr = *overrides.Addr
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./hushwire.db"
	}
	if overrides.DatabasePath != nil {
		dbPath = *overrides.DatabasePath
	}

	masterSecret := os.Getenv("HUSHWIRE_MASTER_SECRET")
	if overrides.MasterSecret != nil {
		masterSecret = *overrides.MasterSecret
	}
	if masterSecret == "" {
		return nil, fmt.Errorf("HUSHWIRE_MASTER_SECRET environment variable is required")
	}

	chatKeyB64 := os.Getenv("HUSHWIRE_CHAT_KEY")
	if overrides.ChatKey != nil {
		chatKeyB64 = *overrides.ChatKey
	}
	if chatKeyB64 == "" {
		return nil, fmt.Errorf("HUSHWIRE_CHAT_KEY environment variable is required")
	}
	chatKey, err := ParseChatKey(chatKeyB64)
	if err != nil {
		return nil, err
	}

	debug := false
	if debugStr := os.Getenv("DEBUG"); debugStr == "true" || debugStr == "1" {
		debug = true
	}
	if overrides.Debug != nil {
		debug = *overrides.Debug
	}

	sweepInterval := DefaultSweepInterval
	if raw := os.Getenv("HUSHWIRE_SWEEP_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			sweepInterval = d
		}
	}
	if overrides.SweepInterval != nil {
		sweepInterval = *overrides.SweepInterval
	}

	maxPlaintext := DefaultMaxPlaintextLen
	if raw := os.Getenv("HUSHWIRE_MAX_PLAINTEXT_LEN"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxPlaintext = n
		}
	}

	return &Config{
		Addr:            addr,
		DatabasePath:    dbPath,
		MasterSecret:    masterSecret,
		ChatKey:         chatKey,
		Debug:           debug,
		AllowedOrigins:  []string{"*"}, // For self-hosted, allow all origins
		MaxPlaintextLen: maxPlaintext,
		SweepInterval:   sweepInterval,
	}, nil
}

// ParseChatKey decodes a base64-encoded 32-byte symmetric key.
func ParseChatKey(b64 string) ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return key, fmt.Errorf("HUSHWIRE_CHAT_KEY is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("HUSHWIRE_CHAT_KEY must decode to 32 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}
