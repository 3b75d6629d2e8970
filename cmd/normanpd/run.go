package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/normanpd/internal/fetch"
	"github.com/joelkehle/normanpd/internal/narrative"
	"github.com/joelkehle/normanpd/internal/pdftext"
	"github.com/joelkehle/normanpd/internal/pipeline"
	"github.com/joelkehle/normanpd/internal/report"
	"github.com/joelkehle/normanpd/internal/store"
	"github.com/joelkehle/normanpd/internal/telemetry"
)

type runOptions struct {
	incidents  string
	appendMode bool
	dryRun     bool
	xlsxPath   string
	reportPath string
	summarize  bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.incidents, "incidents", "", "incident summary url")
	f.BoolVar(&o.appendMode, "append", false, "keep incidents from earlier runs instead of resetting the table")
	f.BoolVar(&o.dryRun, "dry-run", false, "parse and report without touching the database")
	f.StringVar(&o.xlsxPath, "xlsx", "", "also export the stored incidents to this .xlsx file")
	f.StringVar(&o.reportPath, "report", "", "also render a report to this .md, .html or .pdf file")
	f.BoolVar(&o.summarize, "summarize", false, "ask Claude for a short narrative of the breakdown")
	_ = cmd.MarkFlagRequired("incidents")
}

func (a *app) runImport(cmd *cobra.Command, o *runOptions) error {
	ctx := cmd.Context()

	shutdown, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    a.cfg.Telemetry.OTLPEndpoint,
		ServiceName: a.cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			a.logger.Warn("tracing.shutdown.failed", "err", err)
		}
	}()

	var st store.API
	if o.dryRun {
		st = store.NewMemoryStore()
	} else {
		sqlStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		st = sqlStore
	}
	defer st.Close()

	hooks, err := a.buildHooks(o, st)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	runner := pipeline.NewRunner(
		&fetch.Downloader{
			Client:    fetch.NewHTTPClient(a.cfg.Fetch.Timeout),
			UserAgent: a.cfg.Fetch.UserAgent,
			Dir:       a.cfg.Fetch.WorkDir,
		},
		pdftext.Extractor{PdftotextPath: a.cfg.Extract.PdftotextPath},
		st,
		cmd.OutOrStdout(),
		pipeline.WithLogger(a.logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithHeaderMarker(a.cfg.Extract.HeaderMarker),
		pipeline.WithAppend(o.appendMode),
		pipeline.WithHooks(hooks...),
	)

	_, runErr := runner.Run(ctx, o.incidents)
	if path := a.cfg.Telemetry.MetricsTextfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("metrics.textfile.failed", "path", path, "err", err)
		}
	}
	return runErr
}

// buildHooks orders the optional steps so the report can include the
// narrative.
func (a *app) buildHooks(o *runOptions, st store.API) ([]pipeline.Hook, error) {
	notes := &runNotes{}
	var hooks []pipeline.Hook
	if o.xlsxPath != "" {
		hooks = append(hooks, &xlsxHook{store: st, path: o.xlsxPath})
	}
	if o.summarize {
		s, err := narrative.NewSummarizer(a.cfg.LLM.APIKey, a.cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("--summarize: %w", err)
		}
		hooks = append(hooks, &narrativeHook{summarizer: s, notes: notes, out: a.errOut, printToOut: o.reportPath == ""})
	}
	if o.reportPath != "" {
		hooks = append(hooks, &reportHook{renderer: report.NewRenderer(), path: o.reportPath, notes: notes})
	}
	return hooks, nil
}
