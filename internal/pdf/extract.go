// Package pdf extracts plain text from uploaded PDF documents.
//
// Parsing is delegated to github.com/ledongthuc/pdf, a pure Go reader that
// works on in-memory data through io.ReaderAt.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is a fully buffered upload.
type Document struct {
	Name string
	Data []byte
}

// ExtractionError reports a single document that could not be read. The rest
// of the batch is unaffected.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("Error reading PDF %s: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Result struct {
	Text   string
	Pages  int
	Errors []*ExtractionError
}

// Extract concatenates the text of every page of every document, in order and
// without separators, and trims the result.
func Extract(docs []Document) Result {
	var (
		text strings.Builder
		res  Result
	)
	for _, doc := range docs {
		docText, pages, err := extractDocument(doc)
		if err != nil {
			res.Errors = append(res.Errors, &ExtractionError{Name: doc.Name, Err: err})
			continue
		}
		text.WriteString(docText)
		res.Pages += pages
	}
	res.Text = strings.TrimSpace(text.String())
	return res
}

// extractDocument reads one PDF. The parser panics on some malformed input,
// which is turned into an error for that document only.
func extractDocument(doc Document) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only pages and the like contribute nothing.
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String(), n, nil
}

// IsPDFName reports whether name carries a .pdf extension.
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}
