package language

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Registry resolves file extensions to recipes. It is read-only once built
// and safe for concurrent use.
type Registry struct {
	byExt   map[string]Recipe
	recipes []Recipe
}

// NewRegistry builds a registry from recipes. Later recipes override the
// extensions of earlier ones, which is how user overrides replace defaults.
func NewRegistry(recipes ...Recipe) (*Registry, error) {
	reg := &Registry{
		byExt: make(map[string]Recipe),
	}

	for _, recipe := range recipes {
		if err := recipe.Validate(); err != nil {
			return nil, err
		}
		for _, ext := range recipe.Extensions {
			reg.byExt[normalizeExt(ext)] = recipe
		}
	}

	if len(reg.byExt) == 0 {
		return nil, fmt.Errorf("%w: at least one recipe must be registered", ErrInvalidRecipe)
	}

	seen := make(map[string]bool)
	for _, ext := range reg.Extensions() {
		recipe := reg.byExt[ext]
		if !seen[recipe.Name] {
			seen[recipe.Name] = true
			reg.recipes = append(reg.recipes, recipe)
		}
	}
	sort.Slice(reg.recipes, func(i, j int) bool {
		return reg.recipes[i].Name < reg.recipes[j].Name
	})

	return reg, nil
}

// Recipe returns the recipe registered for ext (with or without the dot,
// case-insensitive).
func (r *Registry) Recipe(ext string) (Recipe, bool) {
	recipe, ok := r.byExt[normalizeExt(ext)]
	return recipe, ok
}

// Lookup returns the recipe for the extension of path.
func (r *Registry) Lookup(path string) (Recipe, bool) {
	return r.Recipe(filepath.Ext(path))
}

// Recipes lists the distinct registered recipes sorted by name.
func (r *Registry) Recipes() []Recipe {
	out := make([]Recipe, len(r.recipes))
	copy(out, r.recipes)
	return out
}

// Extensions lists every registered extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
