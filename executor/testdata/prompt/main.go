//go:build wasip1

// Interactive fixture for the WebAssembly backend.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o prompt.wasm .
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	in := bufio.NewReader(os.Stdin)

	fmt.Print("Enter a number: ")
	line, err := in.ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "no input")
		os.Exit(2)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		fmt.Fprintln(os.Stderr, "not a number")
		os.Exit(3)
	}
	fmt.Printf("Value: %%d means %d\n", n*2)
}
