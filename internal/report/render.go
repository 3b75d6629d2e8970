package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const reportCSS = "body{font-family:-apple-system,'Segoe UI',Helvetica,Arial,sans-serif;color:#1c1917;margin:0;padding:0.6rem;} " +
	".report{max-width:900px;margin:0 auto;} " +
	"h1{font-size:1.5rem;border-bottom:2px solid #1e3a8a;padding-bottom:0.3rem;} " +
	"h2{font-size:1.15rem;margin-top:1.4rem;} " +
	"table{width:100%;border-collapse:collapse;font-size:0.85rem;} " +
	"th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;} " +
	"td:last-child,th:last-child{text-align:right;} " +
	"thead th{background:#f1f5f9;font-weight:700;} " +
	"@media print{ @page{size:auto;margin:12mm;} body{padding:0;} }"

// Renderer turns a markdown report into HTML and, through headless Chromium,
// into PDF.
type Renderer struct {
	ChromePath string
	Timeout    time.Duration
}

func NewRenderer() *Renderer {
	return &Renderer{ChromePath: detectChromePath(), Timeout: 30 * time.Second}
}

func (r *Renderer) HTML(title, markdown string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		"<section class='report'>" + content.String() + "</section>" +
		"</body></html>", nil
}

func (r *Renderer) PDF(ctx context.Context, htmlDoc string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, closeBrowser := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer closeBrowser()
	ctx, closeTab := chromedp.NewContext(ctx)
	defer closeTab()

	var out []byte
	src := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	printPage := chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := letterPrintParams().Do(ctx)
		out = buf
		return err
	})
	if err := chromedp.Run(ctx, chromedp.Navigate(src), chromedp.WaitReady("body", chromedp.ByQuery), printPage); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return out, nil
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.ChromePath))
	}
	return opts
}

// letterPrintParams prints US Letter with a page counter in the footer.
func letterPrintParams() *page.PrintToPDFParams {
	footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
		`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(`<span></span>`).
		WithFooterTemplate(footer).
		WithPaperWidth(8.5).
		WithPaperHeight(11).
		WithMarginTop(0.5).
		WithMarginBottom(0.7).
		WithMarginLeft(0.5).
		WithMarginRight(0.5)
}

// WriteFile renders markdown into path, picking the format from the
// extension: .md, .html/.htm or .pdf.
func (r *Renderer) WriteFile(ctx context.Context, path, title, markdown string) error {
	var blob []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		blob = []byte(markdown)
	case ".html", ".htm":
		doc, err := r.HTML(title, markdown)
		if err != nil {
			return err
		}
		blob = []byte(doc)
	case ".pdf":
		doc, err := r.HTML(title, markdown)
		if err != nil {
			return err
		}
		if blob, err = r.PDF(ctx, doc); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported report format %q (want .md, .html or .pdf)", ext)
	}
	return writeAtomic(path, blob)
}

func writeAtomic(path string, blob []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func detectChromePath() string {
	if p := strings.TrimSpace(os.Getenv("CHROME_PATH")); p != "" {
		return p
	}
	for _, name := range []string{"chromium-browser", "chromium", "google-chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
