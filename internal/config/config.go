// Package config loads cutman's runtime configuration from CUTMAN_* environment
// variables, mirroring the environment-first configuration style the rest of
// the retrieved stack uses (e.g. QAZNA_PG_DSN) rather than a config file format.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the fully-resolved set of knobs the server and CLI need.
type Config struct {
	// DataDir is the root directory holding the SQLite database, bare
	// repositories, and LFS object store.
	DataDir string

	// Addr is the listen address for the HTTP server.
	Addr string

	// AdminTokenFile is where the bootstrap admin token is written on first
	// run (mode 0600), relative to DataDir unless absolute.
	AdminTokenFile string

	// RateLimitRPS and RateLimitBurst bound per-IP request rate.
	RateLimitRPS   float64
	RateLimitBurst int

	// MaxRequestBodyBytes caps the size of non-git-pack request bodies the
	// REST dispatcher will read.
	MaxRequestBodyBytes int64

	// MaxLFSObjectBytes caps the size of a single Git LFS object upload.
	// Git pack pushes (git-receive-pack) are bounded only by disk space and
	// the server's timeouts, never by this or MaxRequestBodyBytes: pack
	// size has no fixed ceiling a self-hosted git server can impose without
	// rejecting legitimate large repositories.
	MaxLFSObjectBytes int64

	// LogLevel gates which structured log entries obs.LogRequest emits:
	// one of "debug", "info", "warn", "error".
	LogLevel string

	// SelfServiceTokens lets an authenticated non-admin user mint their own
	// token scoped to their own principal, instead of every token needing
	// an admin to issue it.
	SelfServiceTokens bool

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// DBPath returns the path to the SQLite database file.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "cutman.db")
}

// ReposDir returns the root of the bare-repository tree.
func (c Config) ReposDir() string {
	return filepath.Join(c.DataDir, "repos")
}

// TrashDir returns the holding area for orphaned or deleted repositories.
func (c Config) TrashDir() string {
	return filepath.Join(c.DataDir, "trash")
}

// LFSDir returns the root of the content-addressed LFS object store.
func (c Config) LFSDir() string {
	return filepath.Join(c.DataDir, "lfs")
}

// AdminTokenPath resolves AdminTokenFile against DataDir.
func (c Config) AdminTokenPath() string {
	if filepath.IsAbs(c.AdminTokenFile) {
		return c.AdminTokenFile
	}
	return filepath.Join(c.DataDir, c.AdminTokenFile)
}

// Default returns the built-in defaults, overridable by env vars and flags.
func Default() Config {
	return Config{
		DataDir:             "./data",
		Addr:                ":8080",
		AdminTokenFile:      ".admin_token",
		RateLimitRPS:        10,
		RateLimitBurst:      20,
		MaxRequestBodyBytes: 10 << 20,
		MaxLFSObjectBytes:   5 << 30,
		LogLevel:            "info",
		SelfServiceTokens:   false,
		ReadTimeout:         15 * time.Second,
		ReadHeaderTimeout:   15 * time.Second,
		WriteTimeout:        0, // git pack streaming can run long; bounded by idle timeout instead
		IdleTimeout:         60 * time.Second,
		ShutdownTimeout:     10 * time.Second,
	}
}

// Load starts from Default and overlays CUTMAN_* environment variables.
func Load() (Config, error) {
	c := Default()

	if v := os.Getenv("CUTMAN_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CUTMAN_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("CUTMAN_ADMIN_TOKEN_FILE"); v != "" {
		c.AdminTokenFile = v
	}
	if v, err := envFloat("CUTMAN_RATE_LIMIT_RPS"); err != nil {
		return Config{}, err
	} else if v != nil {
		c.RateLimitRPS = *v
	}
	if v, err := envInt("CUTMAN_RATE_LIMIT_BURST"); err != nil {
		return Config{}, err
	} else if v != nil {
		c.RateLimitBurst = *v
	}
	if v, err := envInt64("CUTMAN_MAX_BODY_BYTES"); err != nil {
		return Config{}, err
	} else if v != nil {
		c.MaxRequestBodyBytes = *v
	}
	if v, err := envInt64("CUTMAN_MAX_LFS_OBJECT_BYTES"); err != nil {
		return Config{}, err
	} else if v != nil {
		c.MaxLFSObjectBytes = *v
	}
	if v := os.Getenv("CUTMAN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v, err := envBool("CUTMAN_SELF_SERVICE_TOKENS"); err != nil {
		return Config{}, err
	} else if v != nil {
		c.SelfServiceTokens = *v
	}

	if c.DataDir == "" {
		return Config{}, fmt.Errorf("config: CUTMAN_DATA_DIR must not be empty")
	}
	return c, nil
}

func envFloat(key string) (*float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &v, nil
}

func envInt(key string) (*int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &v, nil
}

func envBool(key string) (*bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &v, nil
}

func envInt64(key string) (*int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &v, nil
}
