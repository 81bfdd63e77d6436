package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Answers maps source files to the lines their prompts should receive.
//
//	default: ["5"]
//	files:
//	  sum.c: ["3", "4"]
//	  labs/grade.py: ["87"]
type Answers struct {
	Default []string            `yaml:"default"`
	Files   map[string][]string `yaml:"files"`
}

// ParseAnswers decodes an answers document.
func ParseAnswers(r io.Reader) (*Answers, error) {
	var a Answers
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&a); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return &a, nil
}

// LoadAnswers reads an answers file.
func LoadAnswers(path string) (*Answers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseAnswers(f)
}

// Lines returns the answers for path. Keys are matched against the path as
// given, its cleaned form and its base name; the default list applies when
// none match.
func (a *Answers) Lines(path string) []string {
	if a == nil {
		return nil
	}
	for _, key := range []string{path, filepath.Clean(path), filepath.ToSlash(filepath.Clean(path)), filepath.Base(path)} {
		if lines, ok := a.Files[key]; ok {
			return lines
		}
	}
	return a.Default
}

// For returns a fresh Queue of the answers for path.
func (a *Answers) For(path string) *Queue {
	return NewQueue(a.Lines(path)...)
}
