// Package textsource turns uploaded report files into normalized UTF-8 text.
package textsource

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes int64 = 10 << 20

var (
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrEmptyDocument    = errors.New("document is empty")
	ErrUnreadablePDF    = errors.New("pdf has no extractable text")
)

var (
	pdfMagic = []byte("%PDF-")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Extractor reads documents up to MaxBytes long.
type Extractor struct {
	MaxBytes int64
}

// New returns an Extractor; a non-positive limit selects DefaultMaxBytes.
func New(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{MaxBytes: maxBytes}
}

// Extract returns the text of data. PDFs are detected by extension or by
// their magic bytes; everything else is treated as text, decoded as
// Windows-1252 when it is not valid UTF-8.
func (x *Extractor) Extract(filename string, data []byte) (string, error) {
	if int64(len(data)) > x.MaxBytes {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrDocumentTooLarge, len(data), x.MaxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyDocument
	}

	var text string
	var err error
	if IsPDF(filename, data) {
		text, err = pdfText(data)
	} else {
		text, err = plainText(data)
	}
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}

// Extract uses an Extractor with the default limit.
func Extract(filename string, data []byte) (string, error) {
	return New(DefaultMaxBytes).Extract(filename, data)
}

// IsPDF reports whether the document should go through the PDF reader.
func IsPDF(filename string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, pdfMagic)
}

// Normalize composes accents (NFC) and converts CRLF and lone CR line
// endings to LF. Label matching downstream is byte-exact, so a decomposed
// "ê" would otherwise miss "Referência".
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode windows-1252: %w", err)
	}
	return string(decoded), nil
}

func pdfText(data []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadablePDF, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}

	fonts := make(map[string]*pdf.Font)
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadablePDF, i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrUnreadablePDF
	}
	return sb.String(), nil
}
