// Command code2doc builds Word reports from source files: their code, what
// they print when run, and screenshots of web pages.
package main

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	Execute()
}
