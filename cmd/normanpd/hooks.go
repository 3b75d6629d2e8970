package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joelkehle/normanpd/internal/incident"
	"github.com/joelkehle/normanpd/internal/pipeline"
	"github.com/joelkehle/normanpd/internal/report"
	"github.com/joelkehle/normanpd/internal/store"
)

// runNotes passes the narrative from its hook to the report hook.
type runNotes struct {
	narrative string
}

type xlsxHook struct {
	store store.API
	path  string
}

func (h *xlsxHook) Name() string { return "xlsx" }

func (h *xlsxHook) AfterRun(ctx context.Context, res pipeline.Result) error {
	records, err := h.store.List(ctx, store.Filter{})
	if err != nil {
		return err
	}
	return report.ExportXLSX(h.path, records, res.Breakdown)
}

type summarizer interface {
	Summarize(ctx context.Context, source string, total int, counts []incident.CategoryCount) (string, error)
}

type narrativeHook struct {
	summarizer summarizer
	notes      *runNotes
	out        io.Writer
	printToOut bool
}

func (h *narrativeHook) Name() string { return "narrative" }

func (h *narrativeHook) AfterRun(ctx context.Context, res pipeline.Result) error {
	text, err := h.summarizer.Summarize(ctx, res.SourceURL, res.Total, res.Breakdown)
	if err != nil {
		return err
	}
	h.notes.narrative = text
	if h.printToOut {
		_, err = fmt.Fprintf(h.out, "\n%s\n", text)
	}
	return err
}

type reportHook struct {
	renderer *report.Renderer
	path     string
	notes    *runNotes
}

func (h *reportHook) Name() string { return "report" }

func (h *reportHook) AfterRun(ctx context.Context, res pipeline.Result) error {
	md := report.BuildMarkdown(report.Summary{
		RunID:       res.RunID,
		SourceURL:   res.SourceURL,
		GeneratedAt: time.Now(),
		Parsed:      res.Parsed,
		Inserted:    res.Inserted,
		Total:       res.Total,
		Breakdown:   res.Breakdown,
		Narrative:   h.notes.narrative,
	})
	return h.renderer.WriteFile(ctx, h.path, "Norman PD Daily Incident Summary", md)
}
