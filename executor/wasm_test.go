package executor_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/caffeineduck/code2doc/executor"
	"github.com/caffeineduck/code2doc/input"
	"github.com/caffeineduck/code2doc/transcript"
)

// buildPromptModule compiles testdata/prompt for wasip1.
func buildPromptModule(t *testing.T) string {
	t.Helper()
	requireTool(t, "go")

	out := filepath.Join(t.TempDir(), "prompt.wasm")
	cmd := exec.Command("go", "build", "-o", out, ".")
	cmd.Dir = filepath.Join("testdata", "prompt")
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot build wasip1 fixture: %v\n%s", err, output)
	}
	return out
}

func TestWasmPrompt(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a WebAssembly fixture")
	}
	path := buildPromptModule(t)
	recipe, _ := registry.Lookup(path)
	exec := sharedExecutor(t)

	res, err := exec.Run(context.Background(), executor.Request{
		SourcePath: path,
		Recipe:     recipe,
		Input:      input.NewQueue("21"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status.Kind != executor.Success {
		t.Fatalf("expected success, got %s (%v)", res.Status, res.Error)
	}
	tr := res.Transcript
	if len(tr) != 3 || tr[0].Kind != transcript.Prompt || tr[1].Text != "21" {
		t.Fatalf("unexpected transcript %#v", tr)
	}
	if tr[2].Text != "Value: %d means 42\n" {
		t.Errorf("unexpected output %q", tr[2].Text)
	}

	res, err = exec.Run(context.Background(), executor.Request{SourcePath: path, Recipe: recipe})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !errors.Is(res.Error, executor.ErrInsufficientInput) {
		t.Errorf("expected ErrInsufficientInput without input, got %s (%v)", res.Status, res.Error)
	}
}

func TestWasmInvalidModule(t *testing.T) {
	path := writeSource(t, "bad.wasm", "not a module")
	recipe, _ := registry.Lookup(path)

	res, err := sharedExecutor(t).Run(context.Background(), executor.Request{SourcePath: path, Recipe: recipe})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status.Kind != executor.CompileFailed {
		t.Errorf("expected compile failure for an invalid module, got %s", res.Status)
	}
}
