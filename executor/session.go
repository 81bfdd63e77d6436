package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caffeineduck/code2doc/transcript"
)

const (
	// maxOutputSize limits captured output so a runaway print loop cannot
	// exhaust memory before the timeout fires.
	maxOutputSize = 1 << 20

	// drainTimeout bounds how long output is collected after the program
	// ends, in case a descendant still holds the pipes open.
	drainTimeout = 500 * time.Millisecond

	truncatedNotice = "\n[output truncated]\n"
)

type streamID int

const (
	streamStdout streamID = iota + 1
	streamStderr
)

type chunk struct {
	stream streamID
	data   []byte
	eof    bool
}

// session drives one started program: it pumps output, watches for stalls,
// feeds input and enforces the run deadline. Everything except the pumps
// runs on the goroutine that calls run.
type session struct {
	b          backend
	input      InputProvider
	timeout    time.Duration
	quiescence time.Duration
	poll       time.Duration
	maxRounds  int
	encoding   string
	log        *slog.Logger

	tb        transcript.Builder
	stdout    strings.Builder
	stderr    strings.Builder
	captured  int
	truncated bool
	// carry holds an incomplete trailing UTF-8 sequence per stream until
	// the rest of it arrives.
	carry [streamStderr + 1][]byte
}

func (e *Executor) newSession(b backend, timeout time.Duration, input InputProvider, log *slog.Logger) *session {
	return &session{
		b:          b,
		input:      input,
		timeout:    timeout,
		quiescence: e.cfg.quiescence,
		poll:       e.cfg.pollInterval,
		maxRounds:  e.cfg.maxInputRounds,
		encoding:   e.cfg.encoding,
		log:        log,
	}
}

func (s *session) run(ctx context.Context) Result {
	quit := make(chan struct{})
	defer close(quit)
	defer s.b.Release()

	chunks := make(chan chunk, 16)
	open := 0
	for _, st := range []struct {
		id streamID
		r  io.Reader
	}{{streamStdout, s.b.Stdout()}, {streamStderr, s.b.Stderr()}} {
		r, err := transcript.NewDecodingReader(st.r, s.encoding)
		if err != nil {
			s.b.Kill()
			return Result{
				Status: Status{Kind: RuntimeError, Message: err.Error()},
				Error:  fmt.Errorf("%w: %w", ErrRuntime, err),
			}
		}
		go pump(st.id, r, chunks, quit)
		open++
	}

	det := newDetector(s.quiescence, s.maxRounds, time.Now())
	deadline := time.Now().Add(s.timeout)
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var (
		exit     exitInfo
		failure  error
		canceled error
	)

	record := func(c chunk) {
		if c.eof {
			open--
			s.write(c.stream, s.carry[c.stream])
			s.carry[c.stream] = nil
			return
		}
		s.capture(c)
		det.Output(time.Now())
	}

loop:
	for {
		select {
		case c := <-chunks:
			record(c)

		case exit = <-s.b.Exited():
			det.Exited()
			break loop

		case <-timer.C:
			det.Expired()
			s.log.Debug("run deadline reached", "timeout", s.timeout)
			s.b.Kill()
			break loop

		case <-ctx.Done():
			canceled = ctx.Err()
			s.b.Kill()
			break loop

		case <-ticker.C:
			act := s.b.Probe()
			if det.Tick(time.Now(), act) != Stalled {
				continue
			}
			// Output may be queued behind the tick.
			if drained := s.drainReady(chunks, record); drained {
				continue
			}

			if err := det.AwaitInput(); err != nil {
				failure = err
				s.b.Kill()
				break loop
			}

			line, err := s.ask(ctx, &deadline, timer)
			if err != nil {
				if ctx.Err() != nil {
					canceled = ctx.Err()
				} else {
					failure = err
				}
				s.b.Kill()
				break loop
			}
			if _, err := io.WriteString(s.b.Stdin(), line+"\n"); err != nil {
				s.log.Debug("write input", "error", err)
			}
			s.tb.Input(line)
			det.Delivered(time.Now())
			s.log.Debug("input delivered", "round", det.Rounds(), "activity", act)
		}
	}

	// Children left in the background hold the pipes open and would
	// outlive the run.
	s.b.Kill()
	s.drain(chunks, &open, record)

	res := Result{
		Stdout:     transcript.Normalize(s.stdout.String()),
		Stderr:     transcript.Normalize(s.stderr.String()),
		Transcript: s.tb.Transcript(),
	}

	switch {
	case canceled != nil:
		res.Status = Status{Kind: RuntimeError, Message: "execution cancelled"}
		res.Error = fmt.Errorf("%w: %w", ErrRuntime, canceled)
	case det.State() == StateTimedOut:
		res.Status = Status{Kind: TimedOut, Message: fmt.Sprintf("exceeded %v time limit", s.timeout)}
		res.Error = fmt.Errorf("%w after %v", ErrTimedOut, s.timeout)
	case failure != nil:
		res.Status = Status{Kind: RuntimeError, Message: failure.Error()}
		res.Error = fmt.Errorf("%w: %w", ErrRuntime, failure)
	default:
		res.Status, res.Error = classifyExit(exit, res.Stderr)
	}
	return res
}

// ask requests one line from the provider. Time spent waiting on the
// provider moves the deadline back.
func (s *session) ask(ctx context.Context, deadline *time.Time, timer *time.Timer) (string, error) {
	if s.input == nil {
		return "", ErrInsufficientInput
	}

	prompt := s.tb.PromptText()
	asked := time.Now()
	line, ok, err := s.input.NextLine(ctx, prompt)

	*deadline = deadline.Add(time.Since(asked))
	timer.Reset(time.Until(*deadline))

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInsufficientInput, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: program asked for more input after %q", ErrInsufficientInput, strings.TrimSpace(prompt))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *session) capture(c chunk) {
	if s.truncated {
		return
	}
	data := append(s.carry[c.stream], c.data...)
	s.carry[c.stream] = nil
	if n := partialRune(data); n > 0 {
		s.carry[c.stream] = append([]byte(nil), data[len(data)-n:]...)
		data = data[:len(data)-n]
	}
	s.write(c.stream, data)
}

func (s *session) write(stream streamID, data []byte) {
	if s.truncated || len(data) == 0 {
		return
	}
	if room := maxOutputSize - s.captured; len(data) > room {
		for room > 0 && !utf8.RuneStart(data[room]) {
			room--
		}
		data = data[:room]
		s.truncated = true
	}
	s.captured += len(data)

	s.tb.Write(data)
	if stream == streamStderr {
		s.stderr.Write(data)
	} else {
		s.stdout.Write(data)
	}
	if s.truncated {
		s.tb.WriteString(truncatedNotice)
	}
}

// partialRune returns the length of an incomplete UTF-8 sequence at the
// end of p, or 0.
func partialRune(p []byte) int {
	for i := len(p) - 1; i >= 0 && i > len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if utf8.FullRune(p[i:]) {
				return 0
			}
			return len(p) - i
		}
	}
	return 0
}

// drainReady consumes chunks that are already queued without blocking.
func (s *session) drainReady(chunks <-chan chunk, record func(chunk)) bool {
	got := false
	for {
		select {
		case c := <-chunks:
			record(c)
			if !c.eof {
				got = true
			}
		default:
			return got
		}
	}
}

// drain collects the remaining output until both streams reach EOF or
// drainTimeout passes.
func (s *session) drain(chunks <-chan chunk, open *int, record func(chunk)) {
	grace := time.NewTimer(drainTimeout)
	defer grace.Stop()
	for *open > 0 {
		select {
		case c := <-chunks:
			record(c)
		case <-grace.C:
			s.log.Debug("output still open after exit", "streams", *open)
			return
		}
	}
}

func pump(id streamID, r io.Reader, out chan<- chunk, quit <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case out <- chunk{stream: id, data: data}:
			case <-quit:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{stream: id, eof: true}:
			case <-quit:
			}
			return
		}
	}
}

// classifyExit maps how a program ended to a Status.
func classifyExit(exit exitInfo, stderr string) (Status, error) {
	switch {
	case exit.err != nil:
		return Status{Kind: RuntimeError, ExitCode: exit.code, Message: exit.err.Error()},
			fmt.Errorf("%w: %w", ErrRuntime, exit.err)
	case exit.signal != "":
		msg := "terminated by signal " + exit.signal
		return Status{Kind: RuntimeError, ExitCode: exit.code, Message: msg},
			fmt.Errorf("%w: %s", ErrRuntime, msg)
	case exit.code == 0:
		return Status{Kind: Success}, nil
	case strings.TrimSpace(stderr) != "":
		return Status{Kind: RuntimeError, ExitCode: exit.code, Message: excerpt(stderr)},
			fmt.Errorf("%w: exit status %d", ErrRuntime, exit.code)
	default:
		return Status{Kind: NonZeroExit, ExitCode: exit.code},
			fmt.Errorf("%w: exit status %d", ErrNonZeroExit, exit.code)
	}
}

const excerptLines = 20

// excerpt keeps the tail of stderr, where tracebacks end.
func excerpt(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > excerptLines {
		lines = append([]string{"..."}, lines[len(lines)-excerptLines:]...)
	}
	return strings.Join(lines, "\n")
}
