// Package code2doc turns a set of source files into a Word report showing
// each file's code and what it printed when run.
//
// # Overview
//
// Every file is looked up in a recipe registry by extension. Executable
// files are compiled if needed and run with a time limit; programs that
// stop to read input are detected and answered from a provider, and the
// transcript interleaves output with the answers as a terminal would show
// them. HTML and CSS files are rendered in headless Chrome instead and
// included as screenshots.
//
// # Basic Usage
//
//	reg := language.DefaultRegistry()
//	exec, _ := executor.New(executor.WithDiskCache())
//	defer exec.Close()
//
//	// One file
//	recipe, _ := reg.Lookup("sum.c")
//	res, _ := exec.Run(ctx, executor.Request{
//	    SourcePath: "sum.c",
//	    Recipe:     recipe,
//	    Input:      input.NewQueue("3", "4"),
//	})
//	fmt.Print(res.Transcript.String())
//
//	// A whole report
//	rep, _ := report.New(reg, exec).Build(ctx, files, report.Metadata{
//	    Name: "Ada", Course: "CS101", Assignment: "Lab 3",
//	})
//	path, _ := rep.Save(".")
//
// # Layout
//
// Blocks are measured with [layout.Metrics] and packed into pages by
// [layout.Paginate], which never splits a block and keeps a file's heading,
// code and output together when they fit.
//
// See the [executor], [language], [input], [layout], [report], [screenshot]
// and [publish] packages for detailed API documentation.
package code2doc
