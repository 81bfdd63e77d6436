package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/caffeineduck/code2doc/executor"
	"github.com/caffeineduck/code2doc/input"
	"github.com/caffeineduck/code2doc/internal/config"
	"github.com/caffeineduck/code2doc/language"
	"github.com/caffeineduck/code2doc/publish"
	"github.com/caffeineduck/code2doc/report"
	"github.com/caffeineduck/code2doc/screenshot"
)

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", `Document title (default "<course> <assignment>")`)
	cmd.Flags().String("name", "", "Student name")
	cmd.Flags().String("reg_no", "", "Registration number")
	cmd.Flags().String("course", "", "Course or subject")
	cmd.Flags().String("assignment", "", "Assignment or experiment")
	cmd.Flags().String("group", "", "Group")
	cmd.Flags().String("semester", "", "Semester")
	cmd.Flags().Bool("noscreenshot", false, "Do not screenshot HTML/CSS files")
	cmd.Flags().StringP("output", "o", ".", "Directory to write the report to")
	cmd.Flags().Bool("page-per-file", true, "Start each file on a new page")
	cmd.Flags().Bool("upload", false, "Upload the report to S3/MinIO (CODE2DOC_S3_* settings)")
	addExecFlags(cmd)
}

var errCancelled = errors.New("cancelled")

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func runReport(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := newLogger(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry, err := language.LoadRegistry(cfg.Recipes)
	if err != nil {
		return err
	}

	exec, err := newExecutor(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer exec.Close()

	prompts, err := newPrompts(cmd)
	if err != nil {
		return err
	}
	defer prompts.Close()

	meta, err := metadata(ctx, cmd, prompts.terminal)
	if err != nil {
		return err
	}

	pagePerFile, _ := cmd.Flags().GetBool("page-per-file")
	opts := []report.Option{
		report.WithLogger(log),
		report.WithPagePerFile(pagePerFile),
		report.WithInputs(prompts.For),
	}
	if noShot, _ := cmd.Flags().GetBool("noscreenshot"); !noShot {
		opts = append(opts, report.WithCapturer(newCapturer(cfg, exec, log)))
	}

	rep, err := report.New(registry, exec, opts...).Build(ctx, args, meta)
	if err != nil {
		return err
	}
	for _, f := range rep.Files {
		if f.Skipped != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s: %v\n", f.Path, f.Skipped)
		}
	}

	path, err := rep.Save(cfg.OutputDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report saved as %s (%d pages)\n", path, len(rep.Pages))

	if upload, _ := cmd.Flags().GetBool("upload"); upload {
		receipt, err := uploadReport(ctx, cfg.Storage, path)
		if err != nil {
			return fmt.Errorf("upload failed, report kept at %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded as %s\n", receipt.Key)
		if receipt.URL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Download: %s\n", receipt.URL)
		}
	}
	return nil
}

func newCapturer(cfg *config.Config, exec *executor.Executor, log *slog.Logger) screenshot.Capturer {
	return screenshot.NewChrome(screenshot.Config{
		Browser:        cfg.Browser,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		Toolchain:      exec.Toolchain(),
		Logger:         log,
	})
}

func uploadReport(ctx context.Context, sc config.StorageConfig, path string) (publish.Receipt, error) {
	store, err := publish.NewS3Store(publish.S3Config{
		Endpoint:  sc.Endpoint,
		Region:    sc.Region,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		Bucket:    sc.Bucket,
		UseSSL:    sc.UseSSL,
	})
	if err != nil {
		return publish.Receipt{}, err
	}
	return publish.NewPublisher(store).Publish(ctx, path)
}

// prompts decides where program input comes from: answers given on the
// command line or in a file first, then the operator when stdin is a
// terminal, otherwise lines piped on stdin.
type prompts struct {
	answers  *input.Answers
	terminal *input.Terminal
	stdin    *input.LineReader
}

func newPrompts(cmd *cobra.Command) (*prompts, error) {
	p := &prompts{}

	path, _ := cmd.Flags().GetString("answers")
	if path != "" {
		a, err := input.LoadAnswers(path)
		if err != nil {
			return nil, fmt.Errorf("answers: %w", err)
		}
		p.answers = a
	}
	if lines := answers(cmd); len(lines) > 0 {
		if p.answers == nil {
			p.answers = &input.Answers{}
		}
		p.answers.Default = append(p.answers.Default, lines...)
	}

	if stdinIsTerminal() {
		t, err := input.NewTerminal()
		if err != nil {
			return nil, err
		}
		p.terminal = t
	} else if p.answers == nil {
		p.stdin = input.NewLineReader(cmd.InOrStdin())
	}
	return p, nil
}

// For returns the provider for one file.
func (p *prompts) For(path string) executor.InputProvider {
	var chain input.Fallback
	if p.answers != nil {
		chain = append(chain, p.answers.For(path))
	}
	if p.terminal != nil {
		t := p.terminal
		chain = append(chain, input.Announced(t, func() {
			t.Notice("%s is waiting for input", filepath.Base(path))
		}))
	}
	if p.stdin != nil {
		chain = append(chain, p.stdin)
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

func (p *prompts) Close() error {
	if p.terminal != nil {
		return p.terminal.Close()
	}
	return nil
}

// metadata collects report fields from flags, asking for required ones on
// the terminal when they are missing.
func metadata(ctx context.Context, cmd *cobra.Command, t *input.Terminal) (report.Metadata, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	meta := report.Metadata{
		Title:      get("title"),
		Name:       get("name"),
		RegNo:      get("reg_no"),
		Course:     get("course"),
		Assignment: get("assignment"),
		Group:      get("group"),
		Semester:   get("semester"),
	}
	if t == nil {
		return meta, nil
	}

	fields := []struct {
		label string
		dst   *string
	}{
		{"Name", &meta.Name},
		{"Registration number", &meta.RegNo},
		{"Course", &meta.Course},
		{"Assignment", &meta.Assignment},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := t.Ask(ctx, f.label, "")
		if errors.Is(err, input.ErrInterrupted) {
			return meta, errCancelled
		}
		if err != nil {
			return meta, err
		}
		*f.dst = v
	}
	return meta, nil
}
