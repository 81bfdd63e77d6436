package executor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"
)

// wasmProcess runs a WASI command module in-process. Its stdio is wired to
// OS pipes so the session treats it exactly like a host program.
type wasmProcess struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File

	// reading is set while the module is blocked in a stdin read.
	reading atomic.Bool

	cancel      context.CancelFunc
	exit        chan exitInfo
	releaseOnce sync.Once
}

type trackedStdin struct {
	r       io.Reader
	reading *atomic.Bool
}

func (t trackedStdin) Read(p []byte) (int, error) {
	t.reading.Store(true)
	defer t.reading.Store(false)
	return t.r.Read(p)
}

func (e *Executor) startWasm(compiled wazero.CompiledModule, source string) (*wasmProcess, error) {
	p := &wasmProcess{exit: make(chan exitInfo, 1)}

	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithStdin(trackedStdin{r: p.stdinR, reading: &p.reading}).
		WithStdout(p.stdoutW).
		WithStderr(p.stderrW).
		WithArgs(filepath.Base(source)).
		WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(filepath.Dir(source), "/")).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader).
		WithName("")

	for _, kv := range e.cfg.env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			moduleConfig = moduleConfig.WithEnv(k, v)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		mod, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if mod != nil {
			mod.Close(context.Background())
		}
		p.stdoutW.Close()
		p.stderrW.Close()
		p.stdinR.Close()
		p.exit <- wasmExitInfo(err)
	}()

	return p, nil
}

func wasmExitInfo(err error) exitInfo {
	if err == nil {
		return exitInfo{}
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		return exitInfo{code: int(exitErr.ExitCode())}
	}
	return exitInfo{code: -1, err: err}
}

func (p *wasmProcess) closeAll() {
	for _, f := range []*os.File{p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *wasmProcess) Stdin() io.Writer        { return p.stdinW }
func (p *wasmProcess) Stdout() io.Reader       { return p.stdoutR }
func (p *wasmProcess) Stderr() io.Reader       { return p.stderrR }
func (p *wasmProcess) Exited() <-chan exitInfo { return p.exit }

// Probe is exact: the module is either inside a stdin read or executing.
func (p *wasmProcess) Probe() activity {
	if p.reading.Load() {
		return activityWaiting
	}
	return activityBusy
}

func (p *wasmProcess) Kill() {
	p.cancel()
	// A host read does not observe cancellation; closing the pipe does.
	p.stdinR.Close()
}

func (p *wasmProcess) Release() {
	p.releaseOnce.Do(func() {
		p.cancel()
		p.stdinW.Close()
		p.stdoutR.Close()
		p.stderrR.Close()
	})
}
