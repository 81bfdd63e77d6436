package language

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrToolNotFound reports that no alternative of a tool is on PATH.
var ErrToolNotFound = errors.New("tool not found in PATH")

type lookup struct {
	path string
	err  error
}

// Toolchain resolves command names to executables, caching PATH lookups.
type Toolchain struct {
	cache    *lru.Cache[string, lookup]
	lookPath func(string) (string, error)
}

// NewToolchain returns a toolchain resolver remembering up to size lookups.
func NewToolchain(size int) (*Toolchain, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, lookup](size)
	if err != nil {
		return nil, fmt.Errorf("init toolchain cache: %w", err)
	}
	return &Toolchain{cache: cache, lookPath: exec.LookPath}, nil
}

// Resolve returns the absolute path for tool. tool may list alternatives
// separated by "|"; the first one found wins. Names containing a path
// separator (such as a compiled {binary}) are returned unchanged.
func (t *Toolchain) Resolve(tool string) (string, error) {
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return "", fmt.Errorf("%w: empty command", ErrToolNotFound)
	}
	if strings.ContainsAny(tool, `/\`) && !strings.Contains(tool, "|") {
		return tool, nil
	}

	if cached, ok := t.cache.Get(tool); ok {
		return cached.path, cached.err
	}

	var result lookup
	candidates := strings.Split(tool, "|")
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if path, err := t.lookPath(candidate); err == nil {
			result = lookup{path: path}
			break
		}
	}
	if result.path == "" {
		result.err = fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(candidates, ", "))
	}

	t.cache.Add(tool, result)
	return result.path, result.err
}

// Available reports whether every tool a recipe needs can be resolved.
// Compiled artifacts such as {binary} are not looked up.
func (t *Toolchain) Available(r Recipe) error {
	for _, argv := range [][]string{r.Compile, r.Run} {
		if len(argv) == 0 || strings.HasPrefix(argv[0], "{") {
			continue
		}
		if _, err := t.Resolve(argv[0]); err != nil {
			return err
		}
	}
	return nil
}

// Purge forgets all cached lookups.
func (t *Toolchain) Purge() {
	t.cache.Purge()
}
