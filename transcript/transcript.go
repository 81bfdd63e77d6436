// Package transcript turns captured program output into a chronological
// prompt/input/output record suitable for rendering in a document.
package transcript

import (
	"fmt"
	"strings"
)

// Kind identifies what produced a transcript entry.
type Kind int

const (
	// Output is text the program printed.
	Output Kind = iota
	// Prompt is the text printed immediately before the program waited for input.
	Prompt
	// Input is a line supplied to the program.
	Input
)

func (k Kind) String() string {
	switch k {
	case Output:
		return "output"
	case Prompt:
		return "prompt"
	case Input:
		return "input"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry is one event in a transcript.
type Entry struct {
	Kind Kind
	Text string
}

// Transcript is the ordered list of entries for one execution.
type Transcript []Entry

// String renders the transcript as a terminal would have shown it: prompts
// are followed by the supplied input and a newline.
func (t Transcript) String() string {
	var b strings.Builder
	for _, e := range t {
		b.WriteString(e.Text)
		if e.Kind == Input {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Inputs returns the input lines in the order they were supplied.
func (t Transcript) Inputs() []string {
	var lines []string
	for _, e := range t {
		if e.Kind == Input {
			lines = append(lines, e.Text)
		}
	}
	return lines
}

// Builder accumulates output as it arrives and records input events.
// It is not safe for concurrent use; the execution loop owns it.
type Builder struct {
	entries []Entry
	pending strings.Builder
}

// Write appends program output. It never fails.
func (b *Builder) Write(p []byte) (int, error) {
	b.pending.Write(p)
	return len(p), nil
}

// WriteString appends program output.
func (b *Builder) WriteString(s string) {
	b.pending.WriteString(s)
}

// PromptText returns the text that would become the Prompt entry if input
// were supplied now.
func (b *Builder) PromptText() string {
	_, prompt := splitPrompt(Normalize(b.pending.String()))
	return prompt
}

// Input records that line was supplied. Pending output is split so that
// its last line becomes the Prompt and any earlier lines an Output entry.
func (b *Builder) Input(line string) {
	before, prompt := splitPrompt(Normalize(b.pending.String()))
	b.pending.Reset()

	if before != "" {
		b.entries = append(b.entries, Entry{Kind: Output, Text: before})
	}
	b.entries = append(b.entries, Entry{Kind: Prompt, Text: prompt})
	b.entries = append(b.entries, Entry{Kind: Input, Text: Normalize(line)})
}

// Transcript flushes pending output and returns a copy of the entries.
func (b *Builder) Transcript() Transcript {
	if text := Normalize(b.pending.String()); text != "" {
		b.entries = append(b.entries, Entry{Kind: Output, Text: text})
	}
	b.pending.Reset()

	out := make(Transcript, len(b.entries))
	copy(out, b.entries)
	return out
}

// splitPrompt separates the last line of text from what precedes it. A
// trailing newline belongs to the last line.
func splitPrompt(text string) (before, prompt string) {
	trimmed := strings.TrimSuffix(text, "\n")
	idx := strings.LastIndexByte(trimmed, '\n')
	if idx == -1 {
		return "", text
	}
	return text[:idx+1], text[idx+1:]
}
