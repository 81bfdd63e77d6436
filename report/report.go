// Package report turns a list of source files into a paginated document:
// each file's code, its execution transcript or errors, plot images and,
// for web files, a screenshot of the rendered page.
//
// Files are processed sequentially and always appear in the order given.
// A file that fails to compile or run still gets its blocks; only contract
// violations abort the build.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/code2doc/executor"
	"github.com/caffeineduck/code2doc/language"
	"github.com/caffeineduck/code2doc/layout"
	"github.com/caffeineduck/code2doc/screenshot"
	"github.com/caffeineduck/code2doc/transcript"
)

// Block captions.
const (
	LabelCode          = "Source Code"
	LabelOutput        = "Output"
	LabelImage         = "Image Output"
	LabelPreview       = "Frontend Preview"
	LabelFrontendError = "Frontend Error"
	LabelCompileError  = "Compilation Error"
	LabelRuntimeError  = "Runtime Error"
	LabelTimedOut      = "Timed Out"
	LabelToolchain     = "Toolchain Missing"
	LabelUnsupported   = "Execution Error"
	LabelSubmittedBy   = "Submitted By"
)

const (
	noOutput          = "[No Output]"
	fileHeadingPrefix = "File: "
)

// Runner executes one source file.
type Runner interface {
	Run(ctx context.Context, req executor.Request) (executor.Result, error)
}

// InputSource returns the input provider for a file, or nil for none.
type InputSource func(path string) executor.InputProvider

// Option configures an Assembler.
type Option func(*Assembler)

// WithCapturer enables screenshots of web files. Without one, web files
// get only their source.
func WithCapturer(c screenshot.Capturer) Option {
	return func(a *Assembler) {
		a.capturer = c
	}
}

// WithMetrics sets the page geometry used for measuring and writing.
func WithMetrics(m layout.Metrics) Option {
	return func(a *Assembler) {
		a.metrics = m
	}
}

// WithPagePerFile starts every file after the first on a new page.
func WithPagePerFile(enabled bool) Option {
	return func(a *Assembler) {
		a.pagePerFile = enabled
	}
}

// WithTimeout sets the per-file run timeout; zero keeps the runner's
// default.
func WithTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		a.timeout = d
	}
}

// WithInputs sets where each file's input comes from.
func WithInputs(src InputSource) Option {
	return func(a *Assembler) {
		a.inputs = src
	}
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.log = l
		}
	}
}

// Assembler builds reports.
type Assembler struct {
	registry    *language.Registry
	runner      Runner
	capturer    screenshot.Capturer
	metrics     layout.Metrics
	pagePerFile bool
	timeout     time.Duration
	inputs      InputSource
	log         *slog.Logger
}

// New returns an Assembler that looks up recipes in reg and runs files with
// runner.
func New(reg *language.Registry, runner Runner, opts ...Option) *Assembler {
	a := &Assembler{
		registry:    reg,
		runner:      runner,
		metrics:     layout.DefaultMetrics(),
		pagePerFile: true,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// File records what happened to one input file.
type File struct {
	Path   string
	Recipe language.Recipe
	// Skipped is set when the file could not be read; it has no blocks.
	Skipped error
	// Result is nil for files that were not executed.
	Result      *executor.Result
	Screenshots []screenshot.Image
	// ScreenshotErr is a failed capture; the report shows it in place of
	// the preview.
	ScreenshotErr error
}

// Report is an assembled, paginated document.
type Report struct {
	Metadata Metadata
	Files    []File
	// Blocks in document order; Pages reference them.
	Blocks  []*layout.Block
	Pages   []layout.Page
	Metrics layout.Metrics
}

// Title is the document title.
func (r *Report) Title() string { return r.Metadata.DocTitle() }

// Build processes paths in order and paginates the result.
func (a *Assembler) Build(ctx context.Context, paths []string, meta Metadata) (*Report, error) {
	rep := &Report{Metadata: meta, Metrics: a.metrics}
	rep.Blocks = append(rep.Blocks, &layout.Block{Kind: layout.Heading, Text: meta.DocTitle()})

	group := 0
	first := true
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, blocks, err := a.buildFile(ctx, path)
		if err != nil {
			return nil, err
		}
		rep.Files = append(rep.Files, file)
		if len(blocks) == 0 {
			continue
		}

		group++
		for _, b := range blocks {
			b.Source = path
			// Heading, code and output stay together; images pack freely.
			if b.Kind != layout.Screenshot && b.Kind != layout.Image {
				b.Group = group
			}
		}
		blocks[0].BreakBefore = a.pagePerFile && !first
		first = false
		rep.Blocks = append(rep.Blocks, blocks...)
	}

	if rows := meta.Rows(); len(rows) > 0 {
		rep.Blocks = append(rep.Blocks, &layout.Block{
			Kind:  layout.Metadata,
			Label: LabelSubmittedBy,
			Rows:  rows,
		})
	}

	a.metrics.MeasureAll(rep.Blocks)
	pages, err := layout.Paginate(rep.Blocks, a.metrics.Budget())
	if err != nil {
		return nil, fmt.Errorf("paginate: %w", err)
	}
	rep.Pages = pages

	a.log.Info("report assembled", "files", len(paths), "blocks", len(rep.Blocks), "pages", len(pages))
	return rep, nil
}

func (a *Assembler) buildFile(ctx context.Context, path string) (File, []*layout.Block, error) {
	file := File{Path: path}
	name := filepath.Base(path)

	src, err := os.ReadFile(path)
	if err != nil {
		a.log.Warn("skipping file", "file", path, "error", err)
		file.Skipped = err
		return file, nil, nil
	}

	blocks := []*layout.Block{
		{Kind: layout.Heading, Level: 1, Text: fileHeadingPrefix + name},
		{Kind: layout.Code, Label: LabelCode, Text: transcript.Normalize(string(src))},
	}

	recipe, ok := a.registry.Lookup(path)
	if !ok {
		a.log.Warn("no recipe", "file", path)
		blocks = append(blocks, &layout.Block{
			Kind:  layout.Output,
			Label: LabelUnsupported,
			Text:  fmt.Sprintf("no recipe for %q files", filepath.Ext(path)),
		})
		return file, blocks, nil
	}
	file.Recipe = recipe

	if recipe.Family == language.FamilyWeb {
		blocks = append(blocks, a.preview(ctx, &file)...)
		return file, blocks, nil
	}

	a.log.Info("running", "file", name, "recipe", recipe.Name)
	req := executor.Request{SourcePath: path, Recipe: recipe, Timeout: a.timeout}
	if a.inputs != nil {
		req.Input = a.inputs(path)
	}
	res, err := a.runner.Run(ctx, req)
	if err != nil {
		return file, nil, fmt.Errorf("run %s: %w", path, err)
	}
	file.Result = &res
	if !res.Status.OK() {
		a.log.Warn("execution failed", "file", name, "status", res.Status.String())
	}

	blocks = append(blocks, resultBlocks(res)...)
	return file, blocks, nil
}

// preview captures a web file. A nil capturer means screenshots are off.
func (a *Assembler) preview(ctx context.Context, file *File) []*layout.Block {
	if a.capturer == nil {
		return nil
	}
	img, err := a.capturer.Capture(ctx, file.Path)
	if err != nil {
		a.log.Warn("screenshot failed", "file", file.Path, "error", err)
		file.ScreenshotErr = err
		return []*layout.Block{{Kind: layout.Output, Label: LabelFrontendError, Text: err.Error()}}
	}

	slices, err := screenshot.Slice(img, sliceHeight(a.metrics, img.Width))
	if err != nil {
		a.log.Warn("screenshot slicing failed", "file", file.Path, "error", err)
		slices = []screenshot.Image{img}
	}
	file.Screenshots = slices

	blocks := make([]*layout.Block, 0, len(slices))
	for i, s := range slices {
		b := &layout.Block{Kind: layout.Screenshot, PNG: s.PNG, PixelWidth: s.Width, PixelHeight: s.Height}
		if i == 0 {
			b.Label = LabelPreview
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// sliceHeight is the tallest strip, in pixels, of an image pixelWidth wide
// that fits a page below its label once scaled to the content width.
func sliceHeight(m layout.Metrics, pixelWidth int) int {
	ppp := m.PixelsPerPoint
	if ppp <= 0 {
		ppp = 1
	}
	maxH := m.Budget() - m.LabelHeight - m.Spacing
	if maxH <= 0 {
		maxH = m.Budget()
	}
	scale := 1.0
	if w := float64(pixelWidth) / ppp; w > m.ContentWidth() {
		scale = m.ContentWidth() / w
	}
	return max(1, int(maxH*ppp/scale))
}

// resultBlocks renders an execution result: the transcript, then a labeled
// block for any failure, then captured images.
func resultBlocks(res executor.Result) []*layout.Block {
	var blocks []*layout.Block

	if res.Status.Kind != executor.CompileFailed && res.Status.Kind != executor.ToolchainMissing {
		text := res.Transcript.String()
		if strings.TrimSpace(text) == "" {
			text = noOutput
		}
		blocks = append(blocks, &layout.Block{Kind: layout.Output, Label: LabelOutput, Text: text})
	}

	if label, msg := failure(res.Status); label != "" {
		blocks = append(blocks, &layout.Block{Kind: layout.Output, Label: label, Text: msg})
	}

	for _, data := range res.Images {
		img, err := screenshot.DecodeImage(data)
		if err != nil {
			continue
		}
		blocks = append(blocks, &layout.Block{
			Kind:        layout.Image,
			Label:       LabelImage,
			PNG:         img.PNG,
			PixelWidth:  img.Width,
			PixelHeight: img.Height,
		})
	}
	return blocks
}

// failure returns the caption and text for an unsuccessful status.
func failure(s executor.Status) (label, msg string) {
	msg = s.Message
	switch s.Kind {
	case executor.Success:
		return "", ""
	case executor.CompileFailed:
		label = LabelCompileError
	case executor.TimedOut:
		label = LabelTimedOut
	case executor.ToolchainMissing:
		label = LabelToolchain
	case executor.NonZeroExit:
		label = LabelRuntimeError
		if msg == "" {
			msg = fmt.Sprintf("exited with status %d", s.ExitCode)
		}
	default:
		label = LabelRuntimeError
	}
	if msg == "" {
		msg = s.Kind.String()
	}
	return label, msg
}
