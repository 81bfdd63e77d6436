package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/caffeineduck/code2doc/internal/procgroup"
)

// backend is a started program whose standard streams a session drives.
type backend interface {
	// Stdin receives input lines.
	Stdin() io.Writer
	// Stdout and Stderr are read until EOF by the session's pumps.
	Stdout() io.Reader
	Stderr() io.Reader
	// Probe reports what the program is doing right now.
	Probe() activity
	// Kill terminates the program and everything it started.
	Kill()
	// Exited delivers exactly one exitInfo.
	Exited() <-chan exitInfo
	// Release closes the session's ends of the streams, unblocking readers.
	Release()
}

type exitInfo struct {
	code   int
	signal string
	err    error
}

// subprocess runs a host program with its stdio connected to OS pipes.
type subprocess struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File
	exit   chan exitInfo

	releaseOnce sync.Once
}

func startSubprocess(argv []string, dir string, env []string) (*subprocess, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	pipe := func() (r, w *os.File, err error) {
		r, w, err = os.Pipe()
		if err == nil {
			opened = append(opened, r, w)
		}
		return r, w, err
	}

	stdinR, stdinW, err := pipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	procgroup.Set(cmd)

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, err
	}

	// The child holds its own copies now.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	p := &subprocess{
		cmd:    cmd,
		stdin:  stdinW,
		stdout: stdoutR,
		stderr: stderrR,
		exit:   make(chan exitInfo, 1),
	}
	go func() {
		err := cmd.Wait()
		p.exit <- exitInfoFromState(cmd.ProcessState, err)
	}()
	return p, nil
}

func exitInfoFromState(ps *os.ProcessState, err error) exitInfo {
	if ps == nil {
		return exitInfo{code: -1, err: err}
	}
	info := exitInfo{code: ps.ExitCode()}
	if info.code == -1 {
		info.signal = procgroup.ExitSignal(ps)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		info.err = err
	}
	return info
}

func (p *subprocess) Stdin() io.Writer        { return p.stdin }
func (p *subprocess) Stdout() io.Reader       { return p.stdout }
func (p *subprocess) Stderr() io.Reader       { return p.stderr }
func (p *subprocess) Exited() <-chan exitInfo { return p.exit }
func (p *subprocess) Probe() activity         { return probeProcess(p.cmd.Process.Pid) }
func (p *subprocess) Kill()                   { procgroup.Kill(p.cmd) }

func (p *subprocess) Release() {
	p.releaseOnce.Do(func() {
		p.stdin.Close()
		p.stdout.Close()
		p.stderr.Close()
	})
}
