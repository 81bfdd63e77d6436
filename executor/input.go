package executor

import "context"

// InputProvider supplies lines to a program that is waiting for input.
//
// NextLine is called at most once per stall with the text the program
// printed just before it stopped. It returns ok=false when no more input is
// available; the line must not include a trailing newline.
type InputProvider interface {
	NextLine(ctx context.Context, prompt string) (line string, ok bool, err error)
}

// InputFunc adapts a function to InputProvider.
type InputFunc func(ctx context.Context, prompt string) (string, bool, error)

func (f InputFunc) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	return f(ctx, prompt)
}
