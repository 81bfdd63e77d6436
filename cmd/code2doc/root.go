package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/caffeineduck/code2doc/executor"
	"github.com/caffeineduck/code2doc/internal/config"
	"github.com/caffeineduck/code2doc/language"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "code2doc [files...]",
		Short: "Build a .docx report from source files and their output",
		Long: `code2doc - Turn a set of source files into a formatted Word report.

Each file is shown with its source code and, after running it, the output it
produced. Compiled languages are built first; compile errors, runtime errors
and timeouts are reported in place of the output. Programs that prompt for
input are answered from --answer/--answers, or interactively when stdin is a
terminal. HTML and CSS files are rendered in headless Chrome and included as
screenshots unless --noscreenshot is given.

Supported: Python, C, C++, Java, Go, JavaScript, PHP, shell, WebAssembly
(WASI) and HTML/CSS. Use --recipes to add more.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE:         runReport,
		Version:      version,
	}

	root.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")
	root.PersistentFlags().Bool("no-cache", false, "Disable the WebAssembly compilation cache")
	root.PersistentFlags().String("recipes", "", "YAML file with additional or replacement recipes")

	addReportFlags(root)
	root.AddCommand(newRunCmd(), newRecipesCmd())
	return root
}

// Execute runs the command line. cobra prints "Error: ..." for failures.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// addExecFlags registers the flags that control how programs run.
func addExecFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", executor.DefaultRunTimeout, "Run time limit per file")
	cmd.Flags().Duration("compile-timeout", executor.DefaultCompileTimeout, "Compile time limit per file")
	cmd.Flags().Duration("quiescence", executor.DefaultQuiescence, "Silence after which a running program is assumed to wait for input")
	cmd.Flags().Int("max-inputs", executor.DefaultMaxInputRounds, "Maximum input lines fed to one program")
	cmd.Flags().String("encoding", "utf8", "Program output encoding: utf8, cp1252, utf16le, utf16be, auto")
	cmd.Flags().String("memory", "", "Memory limit for WebAssembly programs: 16mb, 64mb, 256mb")
	cmd.Flags().VarP(&answerValue{}, "answer", "a", "Input line for prompting programs (repeatable)")
	cmd.Flags().String("answers", "", "YAML answers file (default list and per-file lists)")
}

// answerValue collects repeated --answer flags. Unlike a string slice flag
// it never splits on commas, so an answer can be "3,4".
type answerValue []string

var _ pflag.Value = (*answerValue)(nil)

func (a *answerValue) String() string { return strings.Join(*a, ",") }
func (a *answerValue) Set(v string) error {
	*a = append(*a, v)
	return nil
}
func (a *answerValue) Type() string { return "line" }

func answers(cmd *cobra.Command) []string {
	if v, ok := cmd.Flags().Lookup("answer").Value.(*answerValue); ok {
		return *v
	}
	return nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := cmd.ErrOrStderr()
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000",
		NoColor:    !color,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	}))
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	durations := map[string]*time.Duration{
		"timeout":         &cfg.RunTimeout,
		"compile-timeout": &cfg.CompileTimeout,
		"quiescence":      &cfg.Quiescence,
	}
	for name, dst := range durations {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}
	if flags.Lookup("max-inputs") != nil && flags.Changed("max-inputs") {
		cfg.MaxInputs, _ = flags.GetInt("max-inputs")
	}
	if flags.Lookup("encoding") != nil && flags.Changed("encoding") {
		cfg.Encoding, _ = flags.GetString("encoding")
	}
	if flags.Changed("recipes") {
		cfg.Recipes, _ = flags.GetString("recipes")
	}
	if flags.Lookup("output") != nil && flags.Changed("output") {
		cfg.OutputDir, _ = flags.GetString("output")
	}
	return cfg, nil
}

func newExecutor(cmd *cobra.Command, cfg *config.Config, log *slog.Logger) (*executor.Executor, error) {
	noCache, _ := cmd.Flags().GetBool("no-cache")
	memory, _ := cmd.Flags().GetString("memory")

	tc, err := language.NewToolchain(64)
	if err != nil {
		return nil, err
	}

	opts := []executor.Option{
		executor.WithRunTimeout(cfg.RunTimeout),
		executor.WithCompileTimeout(cfg.CompileTimeout),
		executor.WithQuiescence(cfg.Quiescence),
		executor.WithPollInterval(cfg.PollInterval),
		executor.WithMaxInputRounds(cfg.MaxInputs),
		executor.WithEncoding(cfg.Encoding),
		executor.WithToolchain(tc),
		executor.WithLogger(log),
	}
	if !noCache {
		opts = append(opts, executor.WithDiskCache())
	}
	if memory != "" {
		pages, err := parseMemoryLimit(memory)
		if err != nil {
			return nil, err
		}
		opts = append(opts, executor.WithMemoryLimit(pages))
	}
	return executor.New(opts...)
}

func parseMemoryLimit(s string) (uint32, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "16mb":
		return executor.MemoryLimit16MB, nil
	case "64mb":
		return executor.MemoryLimit64MB, nil
	case "256mb":
		return executor.MemoryLimit256MB, nil
	default:
		return 0, fmt.Errorf("invalid memory limit %q (expected 16mb, 64mb or 256mb)", s)
	}
}
