package language

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type recipeFile struct {
	Recipes []recipeEntry `yaml:"recipes"`
}

type recipeEntry struct {
	Name        string   `yaml:"name"`
	Extensions  []string `yaml:"extensions"`
	Family      string   `yaml:"family"`
	Compile     []string `yaml:"compile"`
	Run         []string `yaml:"run"`
	PlotCapture bool     `yaml:"plot_capture"`
}

// LoadRecipes parses a YAML recipe file:
//
//	recipes:
//	  - name: python
//	    extensions: [.py]
//	    run: ["python3.12", "-u", "{source}"]
//	  - name: rust
//	    extensions: [.rs]
//	    family: compiled
//	    compile: ["rustc", "-o", "{binary}", "{source}"]
//	    run: ["{binary}"]
func LoadRecipes(r io.Reader) ([]Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file recipeFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode recipes: %w", err)
	}

	recipes := make([]Recipe, 0, len(file.Recipes))
	for i, entry := range file.Recipes {
		family, err := ParseFamily(entry.Family)
		if err != nil {
			return nil, fmt.Errorf("recipe %d (%s): %w", i, entry.Name, err)
		}
		if entry.Family == "" && len(entry.Compile) > 0 {
			family = FamilyCompiled
		}
		recipe := Recipe{
			Name:        entry.Name,
			Extensions:  entry.Extensions,
			Family:      family,
			Compile:     entry.Compile,
			Run:         entry.Run,
			PlotCapture: entry.PlotCapture,
		}
		if err := recipe.Validate(); err != nil {
			return nil, fmt.Errorf("recipe %d: %w", i, err)
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

// LoadRegistry builds the default registry extended by the recipes in
// path. An empty path yields the defaults.
func LoadRegistry(path string) (*Registry, error) {
	recipes := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read recipes: %w", err)
		}
		extra, err := LoadRecipes(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		recipes = append(recipes, extra...)
	}
	return NewRegistry(recipes...)
}
