// Package export renders the résumé as PDF and DOCX.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat is returned for formats other than pdf and docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)

// ParseFormat accepts "pdf" and "docx", case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case FormatPDF, "PDF":
		return FormatPDF, nil
	case FormatDOCX, "DOCX":
		return FormatDOCX, nil
	}
	return "", ErrUnsupportedFormat
}
