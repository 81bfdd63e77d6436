package language

// Defaults returns the built-in recipes.
//
// C and C++ link {stdio_shim} so that prompts printed without a trailing
// newline are flushed before the program blocks on input.
func Defaults() []Recipe {
	return []Recipe{
		{
			Name:        "python",
			Extensions:  []string{".py"},
			Family:      FamilyScript,
			Run:         []string{"python3|python", "-u", VarSource},
			PlotCapture: true,
		},
		{
			Name:       "c",
			Extensions: []string{".c"},
			Family:     FamilyCompiled,
			Compile:    []string{"gcc|cc|clang", VarSource, VarStdioShim, "-o", VarBinary, "-lm"},
			Run:        []string{VarBinary},
		},
		{
			Name:       "cpp",
			Extensions: []string{".cpp", ".cc", ".cxx"},
			Family:     FamilyCompiled,
			Compile:    []string{"g++|c++|clang++", VarSource, VarStdioShim, "-o", VarBinary},
			Run:        []string{VarBinary},
		},
		{
			Name:       "java",
			Extensions: []string{".java"},
			Family:     FamilyCompiled,
			Compile:    []string{"javac", "-d", VarOut, VarSource},
			Run:        []string{"java", "-cp", VarOut, VarName},
		},
		{
			Name:       "go",
			Extensions: []string{".go"},
			Family:     FamilyCompiled,
			Compile:    []string{"go", "build", "-o", VarBinary, VarSource},
			Run:        []string{VarBinary},
		},
		{
			Name:       "javascript",
			Extensions: []string{".js", ".mjs"},
			Family:     FamilyScript,
			Run:        []string{"node|nodejs", VarSource},
		},
		{
			Name:       "php",
			Extensions: []string{".php"},
			Family:     FamilyScript,
			Run:        []string{"php", VarSource},
		},
		{
			Name:       "shell",
			Extensions: []string{".sh"},
			Family:     FamilyScript,
			Run:        []string{"bash|sh", VarSource},
		},
		{
			Name:       "wasm",
			Extensions: []string{".wasm"},
			Family:     FamilyWebAssembly,
		},
		{
			Name:       "web",
			Extensions: []string{".html", ".htm", ".css"},
			Family:     FamilyWeb,
		},
	}
}

// DefaultRegistry builds a registry from Defaults.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(Defaults()...)
	if err != nil {
		panic("language: invalid default recipes: " + err.Error())
	}
	return reg
}

// StdioShim is the C translation unit linked into C and C++ programs.
const StdioShim = `#include <stdio.h>

__attribute__((constructor))
static void code2doc_unbuffer_stdout(void) {
	setvbuf(stdout, NULL, _IONBF, 0);
}
`
