// Package pdftext turns a daily incident summary PDF into a flat stream of
// text lines, one line per table cell, pages concatenated in order.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	maxPDFBytes = 20 * 1024 * 1024

	MethodReader    = "pdf-reader"
	MethodPdftotext = "pdftotext"
)

var layoutColumnGap = regexp.MustCompile(`\s{2,}`)

type Result struct {
	Lines  []string
	Pages  int
	Method string
}

// Extractor reads PDFs with the pure Go reader and falls back to pdftotext.
// PdftotextPath defaults to $PDFTOTEXT_PATH, then "pdftotext".
type Extractor struct {
	PdftotextPath string
}

// Lines returns only the line stream.
func (e Extractor) Lines(ctx context.Context, path string) ([]string, error) {
	res, err := e.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return res.Lines, nil
}

func (e Extractor) Extract(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.Size() > maxPDFBytes {
		return Result{}, fmt.Errorf("pdf too large: %d bytes", info.Size())
	}

	res, readerErr := readWithLibrary(path)
	if readerErr == nil && len(res.Lines) > 0 {
		return res, nil
	}

	res, cliErr := e.readWithPdftotext(ctx, path)
	if cliErr == nil && len(res.Lines) > 0 {
		return res, nil
	}

	if readerErr == nil && cliErr == nil {
		return Result{}, errors.New("no extractable text found")
	}
	return Result{}, errors.Join(readerErr, cliErr)
}

func readWithLibrary(path string) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("pdf reader: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	res.Method = MethodReader
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		res.Pages++
		res.Lines = append(res.Lines, cellLines(page.Content().Text)...)
	}
	return res, nil
}

func (e Extractor) readWithPdftotext(ctx context.Context, path string) (Result, error) {
	cmdPath := strings.TrimSpace(e.PdftotextPath)
	if cmdPath == "" {
		cmdPath = strings.TrimSpace(os.Getenv("PDFTOTEXT_PATH"))
	}
	if cmdPath == "" {
		cmdPath = "pdftotext"
	}
	out, err := exec.CommandContext(ctx, cmdPath, "-layout", "-enc", "UTF-8", path, "-").Output()
	if err != nil {
		return Result{}, fmt.Errorf("pdftotext: %w", err)
	}
	text := string(out)
	return Result{
		Lines:  layoutCells(text),
		Pages:  1 + strings.Count(strings.TrimRight(text, "\f"), "\f"),
		Method: MethodPdftotext,
	}, nil
}

// layoutCells splits pdftotext -layout output into cells. Columns are
// separated by runs of two or more spaces.
func layoutCells(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\f", "\n"), "\n") {
		for _, cell := range layoutColumnGap.Split(line, -1) {
			if c := strings.TrimSpace(cell); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

const rowTolerance = 1.5

// cellLines groups positioned glyph runs into rows (top to bottom) and
// splits each row into cells where the horizontal gap is wider than a
// word space.
func cellLines(texts []pdf.Text) []string {
	var out []string
	for _, row := range groupRows(texts) {
		var b strings.Builder
		flush := func() {
			if s := strings.TrimSpace(b.String()); s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
		for i, t := range row {
			if i > 0 {
				prev := row[i-1]
				gap := t.X - (prev.X + prev.W)
				size := math.Max(prev.FontSize, 1)
				switch {
				case gap > size*1.5:
					flush()
				case gap > size*0.15 && !strings.HasSuffix(b.String(), " ") && t.S != " ":
					b.WriteByte(' ')
				}
			}
			b.WriteString(t.S)
		}
		flush()
	}
	return out
}

func groupRows(texts []pdf.Text) [][]pdf.Text {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S != "" {
			glyphs = append(glyphs, t)
		}
	}
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var rows [][]pdf.Text
	for _, g := range glyphs {
		n := len(rows)
		if n > 0 && math.Abs(rows[n-1][0].Y-g.Y) <= rowTolerance {
			rows[n-1] = append(rows[n-1], g)
			continue
		}
		rows = append(rows, []pdf.Text{g})
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}
