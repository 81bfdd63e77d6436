// Package layout splits a report's blocks into pages without ever dividing
// a block, and estimates how tall each block will render.
package layout

import "fmt"

// Kind says what a block renders as.
type Kind int

const (
	// Heading is a title line, such as a file name.
	Heading Kind = iota
	// Code is source text in a monospace box.
	Code
	// Output is a program transcript or diagnostics in a monospace box.
	Output
	// Screenshot is a rendered web page image.
	Screenshot
	// Image is a picture produced by a program, such as a plot.
	Image
	// Metadata is a two-column table.
	Metadata
)

func (k Kind) String() string {
	switch k {
	case Heading:
		return "heading"
	case Code:
		return "code"
	case Output:
		return "output"
	case Screenshot:
		return "screenshot"
	case Image:
		return "image"
	case Metadata:
		return "metadata"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Row is one line of a metadata table.
type Row struct {
	Key   string
	Value string
}

// Block is an indivisible unit of report content.
type Block struct {
	Kind Kind

	// Label is the caption shown above the content ("Code", "Output",
	// "Compilation Error", ...). Heading blocks use Text instead.
	Label string
	Text  string
	// Level is the heading level; 0 is the document title.
	Level int

	// PNG holds image data for Screenshot and Image blocks, with its
	// pixel dimensions.
	PNG         []byte
	PixelWidth  int
	PixelHeight int

	Rows []Row

	Height      float64
	Group       int
	BreakBefore bool

	// Source names the input file the block belongs to.
	Source string
}

// Page is an ordered run of blocks. Blocks are shared with the input, not
// copied.
type Page struct {
	Blocks []*Block
	Height float64
}
