package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// ErrInterrupted is returned when the operator presses Ctrl+C.
var ErrInterrupted = errors.New("input interrupted")

// Terminal asks the operator, showing the program's prompt as the
// readline prompt.
type Terminal struct {
	rl  *readline.Instance
	out io.Writer
}

// NewTerminal opens a readline instance on the process terminal.
func NewTerminal() (*Terminal, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize readline: %w", err)
	}
	return &Terminal{rl: rl, out: rl.Stderr()}, nil
}

// Close releases the terminal.
func (t *Terminal) Close() error {
	return t.rl.Close()
}

// NextLine shows prompt and returns what the operator typed. Ctrl+D means
// no more input.
func (t *Terminal) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	p := strings.TrimRight(prompt, "\n")
	if p == "" {
		p = "> "
	}
	return t.read(ctx, p)
}

// Ask prompts for a single value such as a report field, returning def when
// the operator enters nothing.
func (t *Terminal) Ask(ctx context.Context, label, def string) (string, error) {
	p := label + ": "
	if def != "" {
		p = fmt.Sprintf("%s [%s]: ", label, def)
	}
	line, ok, err := t.read(ctx, p)
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if !ok || line == "" {
		return def, nil
	}
	return line, nil
}

// Notice prints a line above the prompt.
func (t *Terminal) Notice(format string, args ...any) {
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *Terminal) read(ctx context.Context, prompt string) (string, bool, error) {
	t.rl.SetPrompt(prompt)

	type reply struct {
		line string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		line, err := t.rl.Readline()
		ch <- reply{line, err}
	}()

	var r reply
	select {
	case <-ctx.Done():
		t.rl.Close()
		return "", false, ctx.Err()
	case r = <-ch:
	}

	switch {
	case r.err == nil:
		return r.line, true, nil
	case errors.Is(r.err, readline.ErrInterrupt):
		return "", false, ErrInterrupted
	case errors.Is(r.err, io.EOF):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("read input: %w", r.err)
	}
}
