package input

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	ctx := context.Background()
	q := NewQueue("5", "7")
	assert.Equal(t, 2, q.Remaining())

	line, ok, err := q.NextLine(ctx, "Enter: ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "5", line)

	line, ok, _ = q.NextLine(ctx, "")
	assert.True(t, ok)
	assert.Equal(t, "7", line)

	_, ok, err = q.NextLine(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, q.Remaining())
}

func TestQueueCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewQueue("x").NextLine(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	f := Fallback{NewQueue("a"), nil, NewQueue("b")}

	var got []string
	for {
		line, ok, err := f.NextLine(ctx, "")
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, line)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestAnswers(t *testing.T) {
	doc := `
default: ["1"]
files:
  sum.c: ["3", "4"]
  labs/grade.py: ["87"]
`
	a, err := ParseAnswers(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "4"}, a.Lines("/home/student/sum.c"))
	assert.Equal(t, []string{"87"}, a.Lines("labs/grade.py"))
	assert.Equal(t, []string{"87"}, a.Lines("./labs/grade.py"))
	assert.Equal(t, []string{"1"}, a.Lines("other.py"))
	assert.Equal(t, 2, a.For("sum.c").Remaining())

	var none *Answers
	assert.Nil(t, none.Lines("x"))
}

func TestAnswersRejectsUnknownFields(t *testing.T) {
	_, err := ParseAnswers(strings.NewReader("defaults: [1]\n"))
	assert.Error(t, err)

	a, err := ParseAnswers(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, a.Lines("x"))
}

func TestLineReader(t *testing.T) {
	ctx := context.Background()
	r := NewLineReader(strings.NewReader("first\r\nsecond\n"))

	line, ok, err := r.NextLine(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	line, ok, _ = r.NextLine(ctx, "")
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	_, ok, err = r.NextLine(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLineReaderHonorsContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok, err := NewLineReader(pr).NextLine(ctx, "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnnounced(t *testing.T) {
	ctx := context.Background()
	calls := 0
	p := Announced(NewQueue("1", "2"), func() { calls++ })
	assert.Equal(t, 0, calls, "notify must wait for the first request")

	for _, want := range []string{"1", "2"} {
		line, ok, err := p.NextLine(ctx, "n: ")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, line)
	}
	_, ok, err := p.NextLine(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}
