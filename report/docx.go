package report

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/code2doc/layout"
)

const (
	emuPerPoint  = 12700
	twipPerPoint = 20
	monoFont     = "Courier New"
	codeShade    = "F5F5F5"
	outputShade  = "EFEFEF"
	errorShade   = "FDECEA"
)

// Write encodes the report as a .docx package.
func (r *Report) Write(w io.Writer) error {
	d := &docx{metrics: r.Metrics}
	body := d.body(r)

	zw := zip.NewWriter(w)
	files := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"docProps/core.xml", coreXML(r.Title(), r.Metadata.Name)},
		{"word/styles.xml", []byte(stylesXML)},
		{"word/_rels/document.xml.rels", d.relsXML()},
		{"word/document.xml", body},
	}
	for i, img := range d.images {
		files = append(files, struct {
			name string
			data []byte
		}{"word/media/" + imageName(i), img})
	}

	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := fw.Write(f.data); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return zw.Close()
}

// Save writes the report into dir, creating it if needed, and returns the
// file's path.
func (r *Report) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, r.Metadata.FileName())

	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// docx accumulates document.xml and the media it references.
type docx struct {
	metrics layout.Metrics
	buf     bytes.Buffer
	images  [][]byte
}

func imageName(i int) string { return fmt.Sprintf("image%d.png", i+1) }
func imageRel(i int) string  { return fmt.Sprintf("rIdImage%d", i+1) }

func (d *docx) body(r *Report) []byte {
	d.buf.WriteString(xml.Header)
	d.buf.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"><w:body>`)

	for i, page := range r.Pages {
		if i > 0 {
			d.buf.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		for _, b := range page.Blocks {
			d.block(b)
		}
	}

	m := d.metrics
	fmt.Fprintf(&d.buf, `<w:sectPr><w:pgSz w:w="%d" w:h="%d"/>`+
		`<w:pgMar w:top="%[3]d" w:right="%[3]d" w:bottom="%[3]d" w:left="%[3]d" w:header="0" w:footer="0" w:gutter="0"/></w:sectPr>`,
		twips(m.PageWidth), twips(m.PageHeight), twips(m.Margin))
	d.buf.WriteString(`</w:body></w:document>`)
	return d.buf.Bytes()
}

func (d *docx) block(b *layout.Block) {
	switch b.Kind {
	case layout.Heading:
		style := "Title"
		if b.Level > 0 {
			style = fmt.Sprintf("Heading%d", b.Level)
		}
		d.paragraph(style, b.Text)
	case layout.Code:
		d.caption(b.Label)
		d.box(b.Text, codeShade)
	case layout.Output:
		d.caption(b.Label)
		shade := outputShade
		if b.Label != LabelOutput {
			shade = errorShade
		}
		d.box(b.Text, shade)
	case layout.Screenshot, layout.Image:
		d.caption(b.Label)
		d.picture(b)
		if b.Text != "" {
			d.paragraph("", b.Text)
		}
	case layout.Metadata:
		d.caption(b.Label)
		d.table(b.Rows)
	}
}

func (d *docx) caption(label string) {
	if label != "" {
		d.paragraph("Caption", label+":")
	}
}

func (d *docx) paragraph(style, text string) {
	d.buf.WriteString(`<w:p>`)
	if style != "" {
		fmt.Fprintf(&d.buf, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	d.buf.WriteString(`<w:r>`)
	d.text(text)
	d.buf.WriteString(`</w:r></w:p>`)
}

// box writes text in a one-cell shaded table, one monospace run per line.
func (d *docx) box(text, shade string) {
	d.buf.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/>` + tableBorders + `</w:tblPr><w:tr><w:tc>`)
	fmt.Fprintf(&d.buf, `<w:tcPr><w:shd w:val="clear" w:color="auto" w:fill="%s"/></w:tcPr>`, shade)
	d.buf.WriteString(`<w:p><w:pPr><w:spacing w:before="0" w:after="0"/></w:pPr><w:r>`)
	fmt.Fprintf(&d.buf, `<w:rPr><w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s" w:cs="%[1]s"/><w:sz w:val="%[2]d"/></w:rPr>`,
		monoFont, int(d.metrics.FontSize*2))

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			d.buf.WriteString(`<w:br/>`)
		}
		d.text(line)
	}
	d.buf.WriteString(`</w:r></w:p></w:tc></w:tr></w:tbl>`)
}

// text writes a run's text, turning tabs into tab elements.
func (d *docx) text(s string) {
	for i, part := range strings.Split(s, "\t") {
		if i > 0 {
			d.buf.WriteString(`<w:tab/>`)
		}
		if part == "" {
			continue
		}
		d.buf.WriteString(`<w:t xml:space="preserve">`)
		xml.EscapeText(&d.buf, []byte(part))
		d.buf.WriteString(`</w:t>`)
	}
}

func (d *docx) table(rows []layout.Row) {
	d.buf.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/>` + tableBorders + `</w:tblPr>`)
	for _, row := range rows {
		d.buf.WriteString(`<w:tr>`)
		for i, cell := range []string{row.Key, row.Value} {
			d.buf.WriteString(`<w:tc><w:p><w:r>`)
			if i == 0 {
				d.buf.WriteString(`<w:rPr><w:b/></w:rPr>`)
			}
			d.text(cell)
			d.buf.WriteString(`</w:r></w:p></w:tc>`)
		}
		d.buf.WriteString(`</w:tr>`)
	}
	d.buf.WriteString(`</w:tbl>`)
}

func (d *docx) picture(b *layout.Block) {
	if len(b.PNG) == 0 {
		return
	}
	idx := len(d.images)
	d.images = append(d.images, b.PNG)
	id := idx + 1

	w, h := d.metrics.ImageSize(b.PixelWidth, b.PixelHeight)
	cx, cy := int64(w*emuPerPoint), int64(h*emuPerPoint)

	d.buf.WriteString(`<w:p><w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`)
	fmt.Fprintf(&d.buf, `<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`, cx, cy, id, id)
	d.buf.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic>`)
	fmt.Fprintf(&d.buf, `<pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`, id, imageName(idx))
	fmt.Fprintf(&d.buf, `<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, imageRel(idx))
	fmt.Fprintf(&d.buf, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`, cx, cy)
	d.buf.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`)
}

func (d *docx) relsXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	buf.WriteString(`<Relationship Id="rIdStyles" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	for i := range d.images {
		fmt.Fprintf(&buf, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`,
			imageRel(i), imageName(i))
	}
	buf.WriteString(`</Relationships>`)
	return buf.Bytes()
}

func coreXML(title, author string) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	buf.WriteString(`<dc:title>`)
	xml.EscapeText(&buf, []byte(title))
	buf.WriteString(`</dc:title><dc:creator>`)
	xml.EscapeText(&buf, []byte(author))
	buf.WriteString(`</dc:creator>`)
	fmt.Fprintf(&buf, `<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`, time.Now().UTC().Format(time.RFC3339))
	buf.WriteString(`</cp:coreProperties>`)
	return buf.Bytes()
}

func twips(pt float64) int { return int(pt * twipPerPoint) }

const tableBorders = `<w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`<w:left w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`<w:right w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="A0A0A0"/>` +
	`</w:tblBorders>`

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rIdDocument" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rIdCore" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const stylesXML = xml.Header + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="120"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:jc w:val="center"/><w:spacing w:after="240"/></w:pPr><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Caption"><w:name w:val="caption"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="120" w:after="60"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>` +
	`</w:styles>`
