// Package input provides the sources of lines fed to interactive programs:
// fixed answer lists, answers files, a plain line reader and an operator
// prompt.
package input

import (
	"context"
	"sync"
)

// Queue hands out a fixed list of lines in order.
type Queue struct {
	mu    sync.Mutex
	lines []string
	next  int
}

// NewQueue returns a Queue over lines. The slice is copied.
func NewQueue(lines ...string) *Queue {
	return &Queue{lines: append([]string(nil), lines...)}
}

// NextLine returns the next line, or ok=false once all lines are used.
func (q *Queue) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.lines) {
		return "", false, nil
	}
	line := q.lines[q.next]
	q.next++
	return line, true, nil
}

// Remaining returns how many lines have not been handed out.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines) - q.next
}

// Provider is the contract every source in this package satisfies.
type Provider interface {
	NextLine(ctx context.Context, prompt string) (string, bool, error)
}

// Fallback asks each provider in turn, moving on when one is exhausted.
type Fallback []Provider

func (f Fallback) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	for _, p := range f {
		if p == nil {
			continue
		}
		line, ok, err := p.NextLine(ctx, prompt)
		if err != nil || ok {
			return line, ok, err
		}
	}
	return "", false, nil
}

// Announced calls notify once, just before p is first asked for a line.
func Announced(p Provider, notify func()) Provider {
	return &announced{p: p, notify: notify}
}

type announced struct {
	p      Provider
	notify func()
	once   sync.Once
}

func (a *announced) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	a.once.Do(a.notify)
	return a.p.NextLine(ctx, prompt)
}
