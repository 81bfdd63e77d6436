// Package language maps source file extensions to build and run recipes.
package language

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidRecipe reports a recipe that cannot be executed as written.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Family groups recipes by how the report pipeline treats them.
type Family int

const (
	// FamilyScript files are run directly by an interpreter.
	FamilyScript Family = iota
	// FamilyCompiled files are compiled into a temporary artifact first.
	FamilyCompiled
	// FamilyWeb files are rendered in a browser instead of executed.
	FamilyWeb
	// FamilyWebAssembly files are WASI command modules run in-process.
	FamilyWebAssembly
)

func (f Family) String() string {
	switch f {
	case FamilyScript:
		return "script"
	case FamilyCompiled:
		return "compiled"
	case FamilyWeb:
		return "web"
	case FamilyWebAssembly:
		return "wasm"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily is the inverse of Family.String.
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "script", "":
		return FamilyScript, nil
	case "compiled":
		return FamilyCompiled, nil
	case "web":
		return FamilyWeb, nil
	case "wasm", "webassembly":
		return FamilyWebAssembly, nil
	default:
		return 0, fmt.Errorf("%w: unknown family %q", ErrInvalidRecipe, s)
	}
}

// Template variables understood by Expand.
const (
	VarSource    = "{source}"     // absolute path of the file being run
	VarDir       = "{dir}"        // directory containing the source
	VarBase      = "{base}"       // file name with extension
	VarName      = "{name}"       // file name without extension
	VarOut       = "{out}"        // private temp directory for artifacts
	VarBinary    = "{binary}"     // compiled executable path inside {out}
	VarStdioShim = "{stdio_shim}" // C source that unbuffers stdout, inside {out}
)

// Recipe describes how to build and run one language.
//
// Compile and Run are argv templates. The first element of each may list
// alternatives separated by "|", e.g. "python3|python"; the first one found
// on PATH wins.
type Recipe struct {
	Name        string
	Extensions  []string
	Family      Family
	Compile     []string
	Run         []string
	PlotCapture bool
}

// RequiresCompilation reports whether the recipe has a compile step.
func (r Recipe) RequiresCompilation() bool {
	return len(r.Compile) > 0
}

// Executable reports whether the recipe produces program output at all.
func (r Recipe) Executable() bool {
	return r.Family != FamilyWeb
}

// Matches reports whether path carries one of the recipe's extensions.
func (r Recipe) Matches(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	for _, e := range r.Extensions {
		if normalizeExt(e) == ext {
			return true
		}
	}
	return false
}

// Validate checks the recipe is internally consistent.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRecipe)
	}
	if len(r.Extensions) == 0 {
		return fmt.Errorf("%w: %s has no extensions", ErrInvalidRecipe, r.Name)
	}
	for _, ext := range r.Extensions {
		if normalizeExt(ext) == "." {
			return fmt.Errorf("%w: %s has an empty extension", ErrInvalidRecipe, r.Name)
		}
	}

	switch r.Family {
	case FamilyWeb, FamilyWebAssembly:
		if len(r.Run) > 0 || len(r.Compile) > 0 {
			return fmt.Errorf("%w: %s family %s takes no commands", ErrInvalidRecipe, r.Name, r.Family)
		}
	case FamilyCompiled:
		if len(r.Compile) == 0 {
			return fmt.Errorf("%w: %s is compiled but has no compile command", ErrInvalidRecipe, r.Name)
		}
		fallthrough
	case FamilyScript:
		if len(r.Run) == 0 || strings.TrimSpace(r.Run[0]) == "" {
			return fmt.Errorf("%w: %s has no run command", ErrInvalidRecipe, r.Name)
		}
		if len(r.Compile) > 0 && strings.TrimSpace(r.Compile[0]) == "" {
			return fmt.Errorf("%w: %s has an empty compile command", ErrInvalidRecipe, r.Name)
		}
	default:
		return fmt.Errorf("%w: %s has unknown family %d", ErrInvalidRecipe, r.Name, int(r.Family))
	}

	if r.PlotCapture && r.Family != FamilyScript {
		return fmt.Errorf("%w: %s plot capture needs a script recipe", ErrInvalidRecipe, r.Name)
	}
	return nil
}

// Vars holds the values substituted into command templates.
type Vars struct {
	Source    string
	Dir       string
	Base      string
	Name      string
	Out       string
	Binary    string
	StdioShim string
}

// NewVars derives the path variables for source, with artifacts under out.
func NewVars(source, out, binarySuffix string) Vars {
	base := filepath.Base(source)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return Vars{
		Source:    source,
		Dir:       filepath.Dir(source),
		Base:      base,
		Name:      name,
		Out:       out,
		Binary:    filepath.Join(out, name+binarySuffix),
		StdioShim: filepath.Join(out, "code2doc_stdio.c"),
	}
}

// Expand substitutes vars into every element of argv.
func Expand(argv []string, vars Vars) []string {
	replacer := strings.NewReplacer(
		VarSource, vars.Source,
		VarDir, vars.Dir,
		VarBase, vars.Base,
		VarName, vars.Name,
		VarOut, vars.Out,
		VarBinary, vars.Binary,
		VarStdioShim, vars.StdioShim,
	)
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// UsesVar reports whether any element of argv references the variable.
func UsesVar(argv []string, variable string) bool {
	for _, arg := range argv {
		if strings.Contains(arg, variable) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
