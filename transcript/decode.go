package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported output encodings.
const (
	EncodingUTF8    = "utf8"
	EncodingCP1252  = "cp1252"
	EncodingUTF16LE = "utf16le"
	EncodingUTF16BE = "utf16be"
	EncodingAuto    = "auto"
)

// ValidateEncoding reports whether name is a supported encoding.
func ValidateEncoding(name string) error {
	if isAuto(name) {
		return nil
	}
	_, err := resolveEncoding(name)
	return err
}

func isAuto(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), EncodingAuto)
}

func resolveEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EncodingUTF8, "utf-8", "":
		return nil, nil
	case EncodingCP1252, "windows-1252", "latin1", "iso-8859-1":
		return charmap.Windows1252, nil
	case EncodingUTF16LE, "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case EncodingUTF16BE, "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (supported: utf8, cp1252, utf16le, utf16be, auto)", name)
	}
}

func detectBOM(data []byte) encoding.Encoding {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF:
		return unicode.UTF8BOM
	}
	return nil
}

// NewDecodingReader wraps r so that it yields UTF-8. utf8 (or empty) returns
// r unchanged; auto sniffs a byte-order mark from the first bytes.
func NewDecodingReader(r io.Reader, enc string) (io.Reader, error) {
	if isAuto(enc) {
		return newAutoDetectReader(r), nil
	}
	e, err := resolveEncoding(enc)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return r, nil
	}
	return transform.NewReader(r, e.NewDecoder()), nil
}

// autoDetectReader sniffs a BOM from whatever the first underlying Read
// returns. It never waits for more bytes than that read delivered, so a
// one-byte prompt on a live pipe is not held back.
type autoDetectReader struct {
	src io.Reader
	r   io.Reader
}

func newAutoDetectReader(r io.Reader) io.Reader {
	return &autoDetectReader{src: r}
}

func (a *autoDetectReader) Read(p []byte) (int, error) {
	if a.r == nil {
		buf := make([]byte, 4)
		n, err := a.src.Read(buf)
		peek := buf[:n]
		if n == 0 && err != nil {
			return 0, err
		}
		combined := io.MultiReader(bytes.NewReader(peek), a.src)
		if e := detectBOM(peek); e != nil {
			a.r = transform.NewReader(combined, e.NewDecoder())
		} else {
			a.r = combined
		}
	}
	return a.r.Read(p)
}
