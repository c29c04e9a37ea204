package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const pdfTimeout = 30 * time.Second

var chromiumNames = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// exportPDF prints html with headless Chrome, either a remote browser at
// chromeURL or a local chromium.
func exportPDF(ctx context.Context, chromeURL, html, title string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	allocCtx, cancelAlloc, err := browserAllocator(ctx, chromeURL)
	if err != nil {
		return nil, err
	}
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		loadHTML(html),
		chromedp.WaitReady("body"),
		printPDF(&pdf),
	); err != nil {
		return nil, fmt.Errorf("print resume pdf: %w", err)
	}
	return &Result{
		Data:     pdf,
		Filename: sanitizeFilename(title) + ".pdf",
		MimeType: "application/pdf",
	}, nil
}

func browserAllocator(ctx context.Context, chromeURL string) (context.Context, context.CancelFunc, error) {
	if chromeURL != "" {
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, chromeURL)
		return allocCtx, cancel, nil
	}
	bin, err := findChromium()
	if err != nil {
		return nil, nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return allocCtx, cancel, nil
}

// loadHTML replaces the blank page's document with html.
func loadHTML(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("frame tree: %w", err)
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// printPDF prints US Letter unless the stylesheet sets @page size.
func printPDF(out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(8.5).
			WithPaperHeight(11).
			WithPreferCSSPageSize(true).
			Do(ctx)
		*out = data
		return err
	})
}

func findChromium() (string, error) {
	for _, name := range chromiumNames {
		if bin, err := exec.LookPath(name); err == nil {
			return bin, nil
		}
	}
	return "", fmt.Errorf("%w: no chromium binary on PATH", ErrPDFDependencyMissing)
}

// sanitizeFilename keeps ASCII letters, digits, dashes and underscores; spaces
// become dashes. The result is at most 50 bytes and never empty.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r > unicode.MaxASCII:
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		return "resume"
	}
	return name
}
