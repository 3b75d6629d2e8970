// Package pipeline runs one import: download the daily summary, extract its
// text, parse records, store them and print the category breakdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelkehle/normanpd/internal/incident"
	"github.com/joelkehle/normanpd/internal/report"
	"github.com/joelkehle/normanpd/internal/store"
	"github.com/joelkehle/normanpd/internal/telemetry"
)

const tracerName = "github.com/joelkehle/normanpd/internal/pipeline"

type Fetcher interface {
	Download(ctx context.Context, url string) (path string, size int64, err error)
}

type TextExtractor interface {
	Lines(ctx context.Context, path string) ([]string, error)
}

// Hook runs after the breakdown has been printed. A failing hook does not
// stop the hooks after it.
type Hook interface {
	Name() string
	AfterRun(ctx context.Context, res Result) error
}

type Result struct {
	RunID     string
	SourceURL string
	Lines     int
	Parsed    int
	Inserted  int
	Breakdown []incident.CategoryCount
	Total     int
	Stats     incident.Stats
}

type Runner struct {
	fetcher   Fetcher
	extractor TextExtractor
	store     store.API
	out       io.Writer

	logger     *slog.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	parser     incident.Parser
	appendMode bool
	hooks      []Hook
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(r *Runner) { r.metrics = m } }

func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

func WithHeaderMarker(marker string) Option {
	return func(r *Runner) { r.parser.HeaderMarker = marker }
}

// WithAppend keeps rows from earlier runs instead of resetting the table.
func WithAppend(on bool) Option { return func(r *Runner) { r.appendMode = on } }

func WithHooks(hooks ...Hook) Option {
	return func(r *Runner) { r.hooks = append(r.hooks, hooks...) }
}

func NewRunner(f Fetcher, x TextExtractor, st store.API, out io.Writer, opts ...Option) *Runner {
	r := &Runner{fetcher: f, extractor: x, store: st, out: out}
	for _, opt := range opts {
		opt(r)
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewMetrics()
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Run imports the document at url. The store is prepared before anything is
// downloaded so an unusable database fails fast. The downloaded file is
// removed whatever happens afterwards.
func (r *Runner) Run(ctx context.Context, url string) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), SourceURL: url}
	logger := r.logger.With("run_id", res.RunID)

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("normanpd.run_id", res.RunID),
		attribute.String("normanpd.source_url", url),
	))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			r.metrics.LastSuccess.SetToCurrentTime()
		}
		r.metrics.Runs.WithLabelValues(outcome).Inc()
		span.End()
	}()

	if err := r.prepareStore(ctx); err != nil {
		logger.Error("pipeline.store_init.failed", "append", r.appendMode, "err", err)
		return res, NewStoreInitError(err)
	}

	path, err := r.fetch(ctx, url, logger)
	if err != nil {
		return res, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("pipeline.cleanup.failed", "path", path, "err", rmErr)
		}
	}()

	lines, err := r.extract(ctx, path, logger)
	if err != nil {
		return res, err
	}
	res.Lines = len(lines)

	records := r.parse(ctx, lines, &res, logger)

	if err := r.insert(ctx, records, &res, logger); err != nil {
		return res, err
	}

	if err := r.summarize(ctx, &res); err != nil {
		return res, err
	}
	if err := report.WriteStatus(r.out, res.Breakdown); err != nil {
		return res, NewReportError("write breakdown", err)
	}
	logger.Info("pipeline.done", "parsed", res.Parsed, "inserted", res.Inserted, "total", res.Total, "categories", len(res.Breakdown))

	var hookErrs []error
	for _, h := range r.hooks {
		if herr := r.runHook(ctx, h, res); herr != nil {
			logger.Warn("pipeline.hook.failed", "hook", h.Name(), "err", herr)
			hookErrs = append(hookErrs, fmt.Errorf("%s: %w", h.Name(), herr))
		}
	}
	if len(hookErrs) > 0 {
		return res, NewReportError("post-run steps failed", errors.Join(hookErrs...))
	}
	return res, nil
}

func (r *Runner) prepareStore(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.store_init")
	defer span.End()
	if r.appendMode {
		return r.store.Create(ctx)
	}
	return r.store.Reset(ctx)
}

func (r *Runner) fetch(ctx context.Context, url string, logger *slog.Logger) (string, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()
	defer r.metrics.ObserveStage("fetch", start)

	path, n, err := r.fetcher.Download(ctx, url)
	if err != nil {
		span.RecordError(err)
		logger.Error("pipeline.fetch.failed", "url", url, "err", err)
		return "", NewFetchError(url, err)
	}
	r.metrics.FetchBytes.Add(float64(n))
	span.SetAttributes(attribute.Int64("normanpd.fetch_bytes", n))
	logger.Info("pipeline.fetch.ok", "bytes", n, "elapsed_ms", time.Since(start).Milliseconds())
	return path, nil
}

func (r *Runner) extract(ctx context.Context, path string, logger *slog.Logger) ([]string, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	defer r.metrics.ObserveStage("extract", start)

	lines, err := r.extractor.Lines(ctx, path)
	if err != nil {
		span.RecordError(err)
		logger.Error("pipeline.extract.failed", "err", err)
		return nil, NewExtractError(path, err)
	}
	r.metrics.LinesExtracted.Add(float64(len(lines)))
	span.SetAttributes(attribute.Int("normanpd.lines", len(lines)))
	logger.Info("pipeline.extract.ok", "lines", len(lines))
	return lines, nil
}

func (r *Runner) parse(ctx context.Context, lines []string, res *Result, logger *slog.Logger) []incident.Record {
	start := time.Now()
	_, span := r.tracer.Start(ctx, "pipeline.parse")
	defer span.End()
	defer r.metrics.ObserveStage("parse", start)

	records, stats := r.parser.ParseWithStats(lines)
	res.Parsed = len(records)
	res.Stats = stats
	r.metrics.RecordsParsed.Add(float64(len(records)))
	r.metrics.WindowQuirks.WithLabelValues("ramp").Add(float64(stats.Ramp))
	r.metrics.WindowQuirks.WithLabelValues("sentinel").Add(float64(stats.Sentinel))
	span.SetAttributes(attribute.Int("normanpd.records", len(records)))
	if stats.HeaderAt < 0 && len(lines) > 0 {
		logger.Warn("pipeline.parse.no_header", "lines", len(lines))
	}
	logger.Info("pipeline.parse.ok", "records", len(records), "ramp", stats.Ramp, "sentinel", stats.Sentinel)
	return records
}

func (r *Runner) insert(ctx context.Context, records []incident.Record, res *Result, logger *slog.Logger) error {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.store")
	defer span.End()
	defer r.metrics.ObserveStage("store", start)

	n, err := r.store.InsertMany(ctx, records)
	res.Inserted = n
	r.metrics.RecordsInserted.Add(float64(n))
	if err != nil {
		span.RecordError(err)
		logger.Error("pipeline.store.failed", "inserted", n, "err", err)
		return NewStoreError("insert incidents", err)
	}
	r.metrics.RecordsSkipped.Add(float64(len(records) - n))
	span.SetAttributes(attribute.Int("normanpd.inserted", n))
	logger.Info("pipeline.store.ok", "inserted", n, "duplicates", len(records)-n)
	return nil
}

func (r *Runner) summarize(ctx context.Context, res *Result) error {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.report")
	defer span.End()
	defer r.metrics.ObserveStage("report", start)

	breakdown, err := r.store.AggregateByCategory(ctx)
	if err != nil {
		return NewStoreError("aggregate by category", err)
	}
	total, err := r.store.Count(ctx)
	if err != nil {
		return NewStoreError("count incidents", err)
	}
	res.Breakdown = breakdown
	res.Total = total
	return nil
}

func (r *Runner) runHook(ctx context.Context, h Hook, res Result) error {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "pipeline.hook", trace.WithAttributes(attribute.String("normanpd.hook", h.Name())))
	defer span.End()
	defer r.metrics.ObserveStage("hook_"+h.Name(), start)

	if err := h.AfterRun(ctx, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
