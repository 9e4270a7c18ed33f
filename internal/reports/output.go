package reports

import (
	"fmt"
	"strings"
)

// OutputFormat is a downloadable document format.
type OutputFormat string

const (
	OutputXLSX OutputFormat = "xlsx"
	OutputPDF  OutputFormat = "pdf"
)

// ParseOutputFormat resolves a format name, case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputXLSX:
		return OutputXLSX, nil
	case OutputPDF:
		return OutputPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType is the MIME type served for the format.
func (f OutputFormat) ContentType() string {
	switch f {
	case OutputXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case OutputPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Artifact is a finished document.
type Artifact struct {
	Name        string       `json:"name"`
	Format      OutputFormat `json:"format"`
	ContentType string       `json:"contentType"`
	Data        []byte       `json:"data"`
}

// Renderer turns a Document into document bytes. Implementations must build
// a fresh document instance on every call.
type Renderer interface {
	Format() OutputFormat
	Render(doc Document) ([]byte, error)
}
