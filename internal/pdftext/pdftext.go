// Package pdftext pulls plain text out of uploaded PDF files. Extraction is
// best effort: a structured parse is tried first, then a scan for printable
// byte runs, which salvages something from documents the parser rejects.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// MaxPDFBytes caps accepted uploads.
const MaxPDFBytes = 50 * 1024 * 1024

// ExtractionError reports a malformed or unparseable PDF. An empty result
// from a well-formed PDF is not an error; it means "no extractable text".
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("pdf extraction failed: %v", e.Err) }

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract returns the text content of a PDF. The result may be empty when
// the document has no text layer (scanned images).
func Extract(blob []byte) (string, error) {
	if len(blob) > MaxPDFBytes {
		return "", &ExtractionError{Err: fmt.Errorf("pdf too large: %d bytes", len(blob))}
	}

	text, err := readPages(blob)
	if err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	if err != nil {
		// Parser rejected the file; salvage printable runs before giving up.
		fallback := printableRuns(blob)
		if strings.TrimSpace(fallback) == "" {
			return "", &ExtractionError{Err: err}
		}
		return fallback, nil
	}
	return "", nil
}

// readPages walks the document page by page. The parser panics on some
// malformed files instead of returning an error, so the panic is converted
// here and the caller falls through to the salvage path.
func readPages(blob []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Some pages fail to parse; keep whatever the rest yields.
			continue
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// printableRuns collects runs of printable bytes at least 24 chars long.
func printableRuns(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= 24 {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	joined := strings.Join(runs, "\n")
	joined = strings.ReplaceAll(joined, "\x00", "")
	return strings.TrimSpace(joined)
}
