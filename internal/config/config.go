// Package config loads code2doc defaults from a .env file and CODE2DOC_*
// environment variables. Command-line flags override what it returns.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "CODE2DOC_"

type Config struct {
	RunTimeout     time.Duration
	CompileTimeout time.Duration
	Quiescence     time.Duration
	PollInterval   time.Duration
	MaxInputs      int
	Encoding       string

	Browser        string
	ViewportWidth  int
	ViewportHeight int

	// Recipes is an optional YAML file of recipe overrides.
	Recipes   string
	OutputDir string

	Storage StorageConfig
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether enough is set to attempt an upload.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// Load reads .env from the working directory when present, then the
// environment. Malformed values are errors rather than silently ignored.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		RunTimeout:     r.duration("RUN_TIMEOUT", 10*time.Second),
		CompileTimeout: r.duration("COMPILE_TIMEOUT", 8*time.Second),
		Quiescence:     r.duration("QUIESCENCE", 400*time.Millisecond),
		PollInterval:   r.duration("POLL_INTERVAL", 50*time.Millisecond),
		MaxInputs:      r.int("MAX_INPUTS", 64),
		Encoding:       r.string("ENCODING", "utf8"),
		Browser:        r.string("CHROME", ""),
		ViewportWidth:  r.int("VIEWPORT_WIDTH", 1280),
		ViewportHeight: r.int("VIEWPORT_HEIGHT", 800),
		Recipes:        r.string("RECIPES", ""),
		OutputDir:      r.string("OUTPUT_DIR", "."),
		Storage: StorageConfig{
			Endpoint:  r.string("S3_ENDPOINT", ""),
			Region:    r.string("S3_REGION", "us-east-1"),
			AccessKey: firstNonEmpty(r.string("S3_ACCESS_KEY", ""), strings.TrimSpace(getenv("MINIO_ROOT_USER"))),
			SecretKey: firstNonEmpty(r.string("S3_SECRET_KEY", ""), strings.TrimSpace(getenv("MINIO_ROOT_PASSWORD"))),
			Bucket:    r.string("S3_BUCKET", "code2doc-reports"),
			UseSSL:    r.bool("S3_USE_SSL", true),
		},
	}
	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// reader keeps the first parse error so Load can report it once.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) raw(key string) string {
	return strings.TrimSpace(r.getenv(envPrefix + key))
}

func (r *reader) fail(key, raw string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s%s=%q: %w", envPrefix, key, raw, err)
	}
}

func (r *reader) string(key, def string) string {
	return firstNonEmpty(r.raw(key), def)
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := r.raw(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return d
}

func (r *reader) int(key string, def int) int {
	raw := r.raw(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	raw := r.raw(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
