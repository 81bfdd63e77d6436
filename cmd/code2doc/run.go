package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/caffeineduck/code2doc/executor"
	"github.com/caffeineduck/code2doc/language"
)

var errExecution = errors.New("execution failed")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run one file and print its transcript",
		Long: `Compile and run a single source file the way the report does, and print
the transcript: output, the prompts the program showed and the input it was
given.

Input comes from --answer and --answers first, then from the terminal or
from lines piped on stdin:
  code2doc run sum.c -a 3 -a 4
  printf '3\n4\n' | code2doc run sum.c`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         runRun,
	}
	addExecFlags(cmd)
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
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

	path := args[0]
	recipe, ok := registry.Lookup(path)
	if !ok {
		return fmt.Errorf("no recipe for %s (see code2doc recipes)", path)
	}
	if !recipe.Executable() {
		return fmt.Errorf("%s is a %s file and is not executed", path, recipe.Family)
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

	res, err := exec.Run(ctx, executor.Request{
		SourcePath: path,
		Recipe:     recipe,
		Input:      prompts.For(path),
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), res.Transcript.String())
	for i := range res.Images {
		fmt.Fprintf(cmd.ErrOrStderr(), "[plot %d captured]\n", i+1)
	}
	if !res.Status.OK() {
		return fmt.Errorf("%w: %s", errExecution, res.Status)
	}
	return nil
}
