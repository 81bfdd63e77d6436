package executor

import (
	"io"
	"log/slog"
	"time"

	"github.com/caffeineduck/code2doc/language"
	"github.com/caffeineduck/code2doc/transcript"
)

// Default thresholds.
const (
	DefaultRunTimeout     = 10 * time.Second
	DefaultCompileTimeout = 8 * time.Second
	DefaultQuiescence     = 400 * time.Millisecond
	DefaultPollInterval   = 50 * time.Millisecond
	DefaultMaxInputRounds = 64
)

// Option configures an Executor.
type Option func(*config)

type config struct {
	runTimeout     time.Duration
	compileTimeout time.Duration
	quiescence     time.Duration
	pollInterval   time.Duration
	maxInputRounds int
	encoding       string
	plotCapture    bool
	env            []string
	logger         *slog.Logger
	toolchain      *language.Toolchain

	// WebAssembly backend
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
}

func defaultConfig() config {
	return config{
		runTimeout:     DefaultRunTimeout,
		compileTimeout: DefaultCompileTimeout,
		quiescence:     DefaultQuiescence,
		pollInterval:   DefaultPollInterval,
		maxInputRounds: DefaultMaxInputRounds,
		encoding:       transcript.EncodingUTF8,
		plotCapture:    true,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithRunTimeout sets the default wall-clock limit for the run step.
// Request.Timeout overrides it per file.
func WithRunTimeout(d time.Duration) Option {
	return func(c *config) {
		c.runTimeout = d
	}
}

// WithCompileTimeout sets the limit for the compile step.
func WithCompileTimeout(d time.Duration) Option {
	return func(c *config) {
		c.compileTimeout = d
	}
}

// WithQuiescence sets how long a program must stay silent before it is
// considered to be waiting for input.
func WithQuiescence(d time.Duration) Option {
	return func(c *config) {
		c.quiescence = d
	}
}

// WithPollInterval sets how often a running program is checked for a stall.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// WithMaxInputRounds caps the number of lines supplied to one program.
func WithMaxInputRounds(n int) Option {
	return func(c *config) {
		c.maxInputRounds = n
	}
}

// WithEncoding sets the encoding of program output (utf8, cp1252, utf16le,
// utf16be or auto).
func WithEncoding(enc string) Option {
	return func(c *config) {
		c.encoding = enc
	}
}

// WithPlotCapture enables or disables saving matplotlib figures for recipes
// that support it.
func WithPlotCapture(enabled bool) Option {
	return func(c *config) {
		c.plotCapture = enabled
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of executed programs.
func WithEnv(kv ...string) Option {
	return func(c *config) {
		c.env = append(c.env, kv...)
	}
}

// WithLogger sets the logger used for execution diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithToolchain shares a tool lookup cache between executors.
func WithToolchain(tc *language.Toolchain) Option {
	return func(c *config) {
		c.toolchain = tc
	}
}

// WithDiskCache enables a persistent compilation cache for WebAssembly
// modules. Optionally provide a custom directory; otherwise uses
// ~/.cache/code2doc or XDG_CACHE_HOME/code2doc.
//
// Examples:
//
//	executor.New(executor.WithDiskCache())            // default dir
//	executor.New(executor.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit sets the maximum memory available to WebAssembly modules.
// Each page is 64KB. Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256  // 16 MB
	MemoryLimit64MB  uint32 = 1024 // 64 MB
	MemoryLimit256MB uint32 = 4096 // 256 MB
)
