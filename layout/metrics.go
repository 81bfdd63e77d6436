package layout

import (
	"strings"
	"unicode/utf8"
)

// Metrics converts block content to rendered height in points. The
// estimates match how the report writer lays out text: monospace runs that
// wrap at the content width.
type Metrics struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	// Monospace text.
	FontSize   float64
	LineHeight float64
	CharWidth  float64
	TabWidth   int

	HeadingHeight float64
	LabelHeight   float64
	RowHeight     float64
	// BoxPadding is the vertical padding inside code and output boxes.
	BoxPadding float64
	// Spacing follows every block.
	Spacing float64

	// PixelsPerPoint converts image pixels to points.
	PixelsPerPoint float64
}

// DefaultMetrics is US Letter with half-inch margins and 10.5pt Courier.
func DefaultMetrics() Metrics {
	return Metrics{
		PageWidth:      612,
		PageHeight:     792,
		Margin:         36,
		FontSize:       10.5,
		LineHeight:     12.6,
		CharWidth:      6.3,
		TabWidth:       4,
		HeadingHeight:  30,
		LabelHeight:    18,
		RowHeight:      20,
		BoxPadding:     8,
		Spacing:        8,
		PixelsPerPoint: 4.0 / 3.0,
	}
}

// Budget is the usable height of a page.
func (m Metrics) Budget() float64 {
	return m.PageHeight - 2*m.Margin
}

// ContentWidth is the usable width of a page.
func (m Metrics) ContentWidth() float64 {
	return m.PageWidth - 2*m.Margin
}

// Columns is the number of monospace characters that fit on a line.
func (m Metrics) Columns() int {
	if m.CharWidth <= 0 {
		return 1
	}
	return max(1, int(m.ContentWidth()/m.CharWidth))
}

// Lines counts rendered lines of text after wrapping.
func (m Metrics) Lines(text string) int {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return 1
	}
	cols := m.Columns()
	total := 0
	for _, line := range strings.Split(text, "\n") {
		n := m.width(line)
		total += max(1, (n+cols-1)/cols)
	}
	return total
}

// width is the display width of line in columns, with tabs expanded.
func (m Metrics) width(line string) int {
	if !strings.Contains(line, "\t") {
		return utf8.RuneCountInString(line)
	}
	tab := max(1, m.TabWidth)
	col := 0
	for _, r := range line {
		if r == '\t' {
			col += tab - col%tab
			continue
		}
		col++
	}
	return col
}

// ImageSize returns the rendered size in points of an image, scaled down to
// fit the content width and, together with a label, the page height.
func (m Metrics) ImageSize(pixelWidth, pixelHeight int) (width, height float64) {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return 0, 0
	}
	ppp := m.PixelsPerPoint
	if ppp <= 0 {
		ppp = 1
	}
	width = float64(pixelWidth) / ppp
	height = float64(pixelHeight) / ppp

	if maxW := m.ContentWidth(); width > maxW {
		height = height * maxW / width
		width = maxW
	}
	if maxH := m.Budget() - m.LabelHeight - m.Spacing; maxH > 0 && height > maxH {
		width = width * maxH / height
		height = maxH
	}
	return width, height
}

// Measure returns the rendered height of b.
func (m Metrics) Measure(b *Block) float64 {
	var h float64
	if b.Label != "" && b.Kind != Heading {
		h += m.LabelHeight
	}
	switch b.Kind {
	case Heading:
		h += m.HeadingHeight
	case Code, Output:
		h += 2*m.BoxPadding + float64(m.Lines(b.Text))*m.LineHeight
	case Screenshot, Image:
		_, ih := m.ImageSize(b.PixelWidth, b.PixelHeight)
		h += ih
		if b.Text != "" {
			h += float64(m.Lines(b.Text)) * m.LineHeight
		}
	case Metadata:
		h += float64(len(b.Rows)) * m.RowHeight
	}
	return h + m.Spacing
}

// MeasureAll sets Height on every block.
func (m Metrics) MeasureAll(blocks []*Block) {
	for _, b := range blocks {
		b.Height = m.Measure(b)
	}
}
