package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/caffeineduck/code2doc/transcript"
)

var (
	ErrNonZeroExit       = errors.New("non-zero exit")
	ErrTimedOut          = errors.New("timed out")
	ErrCompileFailed     = errors.New("compilation failed")
	ErrRuntime           = errors.New("runtime error")
	ErrInsufficientInput = errors.New("insufficient input")
	ErrTooManyInputs     = errors.New("too many input rounds")
	ErrToolchainMissing  = errors.New("toolchain missing")
	ErrRecipeMismatch    = errors.New("recipe does not match source")
	ErrNotExecutable     = errors.New("recipe is not executable")
	ErrClosed            = errors.New("executor closed")
)

// StatusKind classifies how an execution ended.
type StatusKind int

const (
	Success StatusKind = iota
	NonZeroExit
	TimedOut
	CompileFailed
	RuntimeError
	ToolchainMissing
)

func (k StatusKind) String() string {
	switch k {
	case Success:
		return "success"
	case NonZeroExit:
		return "non-zero exit"
	case TimedOut:
		return "timed out"
	case CompileFailed:
		return "compilation failed"
	case RuntimeError:
		return "runtime error"
	case ToolchainMissing:
		return "toolchain missing"
	default:
		return fmt.Sprintf("status(%d)", int(k))
	}
}

// Status is the outcome of one execution. ExitCode is meaningful for
// NonZeroExit and for RuntimeError caused by a failing exit; Message holds
// compiler diagnostics, a stderr excerpt or a short explanation.
type Status struct {
	Kind     StatusKind
	ExitCode int
	Message  string
}

func (s Status) String() string {
	switch {
	case s.Kind == NonZeroExit:
		return fmt.Sprintf("%s (%d)", s.Kind, s.ExitCode)
	case s.Message != "":
		return fmt.Sprintf("%s: %s", s.Kind, s.Message)
	default:
		return s.Kind.String()
	}
}

// OK reports whether the program ran to completion with exit code zero.
func (s Status) OK() bool { return s.Kind == Success }

// Result holds everything observed while executing one source file.
type Result struct {
	Status     Status
	Stdout     string
	Stderr     string
	Transcript transcript.Transcript
	// Images are PNG files produced by the program, such as captured plots.
	Images   [][]byte
	Duration time.Duration
	// Error is nil on success and otherwise wraps one of the Err* sentinels.
	Error error
}
