// Package executor compiles and runs source files and records what a person
// at a terminal would have seen.
//
// # Overview
//
// A [Request] names a source file and the [language.Recipe] that runs it.
// [Executor.Run] compiles when the recipe needs it, starts the program with
// its standard streams on OS pipes and drives it until it exits or its time
// limit passes. Host programs run as child processes in their own process
// group; WebAssembly modules run in-process on wazero.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	recipe, _ := language.DefaultRegistry().Lookup("hello.py")
//	res, err := exec.Run(ctx, executor.Request{SourcePath: "hello.py", Recipe: recipe})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Status, res.Transcript)
//
// # Interactive Programs
//
// While a program runs, a poll loop watches its output. When it has been
// silent for the quiescence window and is not observed computing or
// sleeping, it is taken to be waiting for input and the [InputProvider] is
// asked for one line. The line is written to the program's stdin and
// recorded in the transcript after the prompt that preceded it:
//
//	res, _ := exec.Run(ctx, executor.Request{
//	    SourcePath: "sum.c",
//	    Recipe:     recipe,
//	    Input:      input.NewQueue("3", "4"),
//	})
//
// A program that keeps asking after the provider is exhausted is stopped
// and reported as a runtime error wrapping [ErrInsufficientInput]. Time
// spent waiting on the provider does not count against the time limit.
//
// # Results
//
// Program failures never surface as the error return of Run; they are
// classified in [Result.Status] and wrapped in [Result.Error] so callers can
// use errors.Is with the Err* sentinels.
package executor
