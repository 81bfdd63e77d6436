package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/caffeineduck/code2doc/internal/procgroup"
	"github.com/caffeineduck/code2doc/language"
	"github.com/caffeineduck/code2doc/transcript"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Request describes one execution.
type Request struct {
	SourcePath string
	Recipe     language.Recipe
	// Timeout limits the run step; zero uses the executor default.
	Timeout time.Duration
	// Input answers the program's prompts; nil means no input is available.
	Input InputProvider
}

// Executor compiles and runs source files. It is safe for concurrent use,
// but each Run is independent and shares no state with other runs.
type Executor struct {
	cfg       config
	toolchain *language.Toolchain

	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor.
func New(opts ...Option) (*Executor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	tc := cfg.toolchain
	if tc == nil {
		var err error
		if tc, err = language.NewToolchain(128); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Executor{
		cfg:       cfg,
		toolchain: tc,
		runtime:   rt,
		cache:     cache,
		compiled:  make(map[string]wazero.CompiledModule),
	}, nil
}

func (c config) validate() error {
	switch {
	case c.runTimeout <= 0:
		return fmt.Errorf("run timeout must be positive, got %v", c.runTimeout)
	case c.compileTimeout <= 0:
		return fmt.Errorf("compile timeout must be positive, got %v", c.compileTimeout)
	case c.quiescence <= 0:
		return fmt.Errorf("quiescence must be positive, got %v", c.quiescence)
	case c.pollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	case c.maxInputRounds < 0:
		return fmt.Errorf("max input rounds must not be negative, got %d", c.maxInputRounds)
	}
	return transcript.ValidateEncoding(c.encoding)
}

// Toolchain returns the tool lookup cache used by this executor.
func (e *Executor) Toolchain() *language.Toolchain { return e.toolchain }

// Run executes one source file. The returned error is non-nil only when the
// request itself is unusable (invalid recipe, unreadable source, recipe that
// does not match the file); every failure of the program is reported in
// Result.
func (e *Executor) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return Result{}, ErrClosed
	}

	recipe := req.Recipe
	if err := recipe.Validate(); err != nil {
		return Result{}, err
	}
	if !recipe.Executable() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotExecutable, recipe.Name)
	}
	if !recipe.Matches(req.SourcePath) {
		return Result{}, fmt.Errorf("%w: %s is not a %s file", ErrRecipeMismatch, req.SourcePath, recipe.Name)
	}

	source, err := filepath.Abs(req.SourcePath)
	if err != nil {
		return Result{}, fmt.Errorf("resolve source: %w", err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return Result{}, fmt.Errorf("read source: %w", err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("read source: %s is a directory", source)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.runTimeout
	}

	out, err := os.MkdirTemp("", "code2doc-*")
	if err != nil {
		return Result{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(out)

	log := e.cfg.logger.With("file", filepath.Base(source), "recipe", recipe.Name)

	var res Result
	if recipe.Family == language.FamilyWebAssembly {
		res = e.runWasm(ctx, source, timeout, req.Input, log)
	} else {
		res = e.runHost(ctx, recipe, source, out, timeout, req.Input, log)
	}
	res.Duration = time.Since(start)

	log.Debug("execution finished", "status", res.Status.Kind.String(), "duration", res.Duration)
	return res, nil
}

func (e *Executor) runHost(ctx context.Context, recipe language.Recipe, source, out string, timeout time.Duration, input InputProvider, log *slog.Logger) Result {
	vars := language.NewVars(source, out, binarySuffix())

	if recipe.RequiresCompilation() {
		if res, ok := e.compile(ctx, recipe, vars, log); !ok {
			return res
		}
	}

	runVars := vars
	plotting := false
	if recipe.PlotCapture && e.cfg.plotCapture {
		if src, err := os.ReadFile(source); err == nil && usesPlotting(src) {
			wrapper, err := writePlotWrapper(source, out)
			if err != nil {
				log.Warn("plot capture disabled", "error", err)
			} else {
				runVars.Source = wrapper
				plotting = true
			}
		}
	}

	argv := language.Expand(recipe.Run, runVars)
	tool, err := e.toolchain.Resolve(argv[0])
	if err != nil {
		return toolchainMissing(err)
	}
	argv[0] = tool

	env := append(os.Environ(), "PYTHONUNBUFFERED=1", "PYTHONIOENCODING=utf-8")
	env = append(env, e.cfg.env...)

	proc, err := startSubprocess(argv, filepath.Dir(source), env)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return toolchainMissing(err)
		}
		return Result{
			Status: Status{Kind: RuntimeError, Message: err.Error()},
			Error:  fmt.Errorf("%w: start %s: %w", ErrRuntime, filepath.Base(argv[0]), err),
		}
	}
	log.Debug("started", "argv", argv)

	res := e.newSession(proc, timeout, input, log).run(ctx)

	if plotting {
		images, err := collectPlots(out)
		if err != nil {
			log.Warn("read plots", "error", err)
		}
		res.Images = images
	}
	return res
}

// compile runs the recipe's compile step. It returns ok=false with the
// result to report when the run step must be skipped.
func (e *Executor) compile(ctx context.Context, recipe language.Recipe, vars language.Vars, log *slog.Logger) (Result, bool) {
	if language.UsesVar(recipe.Compile, language.VarStdioShim) {
		if err := os.WriteFile(vars.StdioShim, []byte(language.StdioShim), 0o644); err != nil {
			return Result{
				Status: Status{Kind: CompileFailed, Message: err.Error()},
				Error:  fmt.Errorf("%w: write stdio shim: %w", ErrCompileFailed, err),
			}, false
		}
	}

	argv := language.Expand(recipe.Compile, vars)
	tool, err := e.toolchain.Resolve(argv[0])
	if err != nil {
		return toolchainMissing(err), false
	}
	argv[0] = tool

	cctx, cancel := context.WithTimeout(ctx, e.cfg.compileTimeout)
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = vars.Dir
	cmd.Env = append(os.Environ(), e.cfg.env...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	procgroup.Set(cmd)
	cmd.Cancel = func() error {
		procgroup.Kill(cmd)
		return nil
	}
	cmd.WaitDelay = time.Second

	log.Debug("compiling", "argv", argv)
	err = cmd.Run()
	diagnostics := transcript.Normalize(output.String())

	switch {
	case err == nil:
		return Result{}, true
	case ctx.Err() != nil:
		return Result{
			Status: Status{Kind: RuntimeError, Message: "execution cancelled"},
			Stderr: diagnostics,
			Error:  fmt.Errorf("%w: %w", ErrRuntime, ctx.Err()),
		}, false
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		msg := fmt.Sprintf("compilation timed out after %v", e.cfg.compileTimeout)
		return Result{
			Status: Status{Kind: CompileFailed, Message: msg},
			Stderr: diagnostics,
			Error:  fmt.Errorf("%w: %s", ErrCompileFailed, msg),
		}, false
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		return toolchainMissing(err), false
	}

	msg := diagnostics
	if msg == "" {
		msg = err.Error()
	}
	return Result{
		Status: Status{Kind: CompileFailed, ExitCode: exitCode(err), Message: msg},
		Stderr: diagnostics,
		Error:  fmt.Errorf("%w: %s: %w", ErrCompileFailed, recipe.Name, err),
	}, false
}

func (e *Executor) runWasm(ctx context.Context, source string, timeout time.Duration, input InputProvider, log *slog.Logger) Result {
	compiled, err := e.getCompiled(ctx, source)
	if err != nil {
		return Result{
			Status: Status{Kind: CompileFailed, Message: err.Error()},
			Error:  fmt.Errorf("%w: %w", ErrCompileFailed, err),
		}
	}

	proc, err := e.startWasm(compiled, source)
	if err != nil {
		return Result{
			Status: Status{Kind: RuntimeError, Message: err.Error()},
			Error:  fmt.Errorf("%w: %w", ErrRuntime, err),
		}
	}
	return e.newSession(proc, timeout, input, log).run(ctx)
}

// getCompiled returns a cached compiled module, compiling if necessary.
// Entries are keyed by path, size and modification time.
func (e *Executor) getCompiled(ctx context.Context, path string) (wazero.CompiledModule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())

	e.mu.RLock()
	if compiled, ok := e.compiled[key]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[key]; ok {
		return compiled, nil
	}

	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", filepath.Base(path), err)
	}

	e.compiled[key] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func toolchainMissing(err error) Result {
	return Result{
		Status: Status{Kind: ToolchainMissing, Message: err.Error()},
		Error:  fmt.Errorf("%w: %w", ErrToolchainMissing, err),
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func binarySuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "code2doc")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "code2doc")
	}
	return filepath.Join(os.TempDir(), "code2doc-cache")
}
