package input

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// LineReader supplies lines read from r, typically a piped stdin. Reads
// happen on a background goroutine so a blocked read never outlives the
// caller's context.
type LineReader struct {
	once  sync.Once
	r     io.Reader
	lines chan string
	err   error
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, lines: make(chan string)}
}

func (l *LineReader) start() {
	go func() {
		defer close(l.lines)
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			l.lines <- strings.TrimRight(sc.Text(), "\r")
		}
		l.err = sc.Err()
	}()
}

// NextLine returns the next line, or ok=false at end of input.
func (l *LineReader) NextLine(ctx context.Context, prompt string) (string, bool, error) {
	l.once.Do(l.start)
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			return "", false, l.err
		}
		return line, true, nil
	}
}
