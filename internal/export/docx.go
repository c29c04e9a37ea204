package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// exportDOCX pipes the résumé HTML through pandoc and returns the document it
// writes to stdout.
func exportDOCX(ctx context.Context, pandoc, html, title string) (*Result, error) {
	bin, err := exec.LookPath(pandoc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found on PATH", ErrDOCXDependencyMissing, pandoc)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--from=html", "--to=docx", "--standalone",
		"--metadata=title="+title, "--output=-")
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("convert resume to docx: %s", msg)
		}
		return nil, fmt.Errorf("convert resume to docx: %w", err)
	}
	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
