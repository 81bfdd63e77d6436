package executor

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const plotWrapperName = "code2doc_plot.py"

var plotImport = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+(?:matplotlib|seaborn)\b`)

// usesPlotting reports whether a Python source imports a plotting library.
func usesPlotting(src []byte) bool {
	return plotImport.Match(src)
}

// The wrapper forces the Agg backend, turns plt.show into a no-op and saves
// every open figure when the interpreter exits. If matplotlib is missing the
// program runs unchanged and fails on its own import.
const plotWrapper = `# -*- coding: utf-8 -*-
import os
import runpy
import sys

_source = {{SOURCE}}
_out = {{OUT}}
sys.argv[0] = _source
sys.path[0] = os.path.dirname(_source)

try:
    import matplotlib
    matplotlib.use("Agg")
    import matplotlib.pyplot as _plt
except Exception:
    _plt = None

if _plt is not None:
    import atexit

    _plt.show = lambda *args, **kwargs: None

    def _save_figures():
        for i, num in enumerate(_plt.get_fignums()):
            path = os.path.join(_out, "plot_%03d.png" % i)
            _plt.figure(num).savefig(path, bbox_inches="tight")

    atexit.register(_save_figures)

runpy.run_path(_source, run_name="__main__")
`

// writePlotWrapper writes the wrapper for source into out and returns its path.
func writePlotWrapper(source, out string) (string, error) {
	script := strings.NewReplacer(
		"{{SOURCE}}", strconv.Quote(source),
		"{{OUT}}", strconv.Quote(out),
	).Replace(plotWrapper)

	path := filepath.Join(out, plotWrapperName)
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// collectPlots reads the figures saved by the wrapper in order.
func collectPlots(out string) ([][]byte, error) {
	paths, err := filepath.Glob(filepath.Join(out, "plot_*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	images := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return images, err
		}
		images = append(images, data)
	}
	return images, nil
}
