package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/joelkehle/normanpd/internal/fetch"
	"github.com/joelkehle/normanpd/internal/incident"
	"github.com/joelkehle/normanpd/internal/store"
	"github.com/joelkehle/normanpd/internal/telemetry"
)

var dailyLines = []string{
	"NORMAN POLICE DEPARTMENT",
	"Daily Incident Summary (Public)",
	"Date / Time", "Incident Number", "Location", "Nature", "Incident ORI",
	"1/1/2024 0:04", "2024-00000001", "2000 W BROOKS ST", "Traffic Stop", "OK0140200",
	"1/1/2024 0:10", "2024-00000002", "1400 BRIGGS ST", "Traffic Stop", "OK0140200",
	"1/1/2024 0:30", "2024-00000003", "2800 N INTERSTATE DR", "RAMP", "Motorist Assist", "OK0140200",
	"1/1/2024 1:02", "2024-00000004", "36TH AVE NW / W ROCK CREEK RD", "1/1/2024 1:05", "2024-00000005",
	"1/1/2024 1:20", "2024-00000001", "DUPLICATE", "Alarm", "OK0140200",
}

type fakeExtractor struct {
	lines   []string
	err     error
	seen    string
	existed bool
}

func (f *fakeExtractor) Lines(_ context.Context, path string) ([]string, error) {
	f.seen = path
	_, statErr := os.Stat(path)
	f.existed = statErr == nil
	return f.lines, f.err
}

type failingResetStore struct {
	*store.MemoryStore
}

func (failingResetStore) Reset(context.Context) error { return errors.New("read-only filesystem") }

type recordingHook struct {
	name string
	err  error
	got  []Result
}

func (h *recordingHook) Name() string { return h.name }

func (h *recordingHook) AfterRun(_ context.Context, res Result) error {
	h.got = append(h.got, res)
	return h.err
}

func newPDFServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/daily.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSQLiteStore(t *testing.T) *store.SQLStore {
	t.Helper()
	st, err := store.Open(context.Background(), store.Config{DSN: filepath.Join(t.TempDir(), "resources", "normanpd.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunEndToEndWithSQLite(t *testing.T) {
	srv := newPDFServer(t)
	st := newSQLiteStore(t)
	ex := &fakeExtractor{lines: dailyLines}
	metrics := telemetry.NewMetrics()
	var out bytes.Buffer

	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, ex, st, &out, WithMetrics(metrics))
	res, err := r.Run(context.Background(), srv.URL+"/daily.pdf")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The truncated 1:02 row swallows the next start, so it gets the sentinel
	// category and the 1:05 window is read shifted. The repeated case number
	// at 1:20 is skipped.
	if res.Parsed != 6 {
		t.Fatalf("parsed=%d want 6", res.Parsed)
	}
	if res.Inserted != 5 || res.Total != 5 {
		t.Fatalf("inserted=%d total=%d want 5/5", res.Inserted, res.Total)
	}
	if res.RunID == "" || res.Lines != len(dailyLines) {
		t.Fatalf("unexpected result: %+v", res)
	}

	wantOut := "Traffic Stop|2\n2024-00000001|1\nMotorist Assist|1\n|1\n"
	if got := out.String(); got != wantOut {
		t.Fatalf("stdout=%q want %q", got, wantOut)
	}

	if !ex.existed {
		t.Fatal("extractor should see the downloaded file")
	}
	if _, err := os.Stat(ex.seen); !os.IsNotExist(err) {
		t.Fatalf("transient file should be removed, stat err=%v", err)
	}

	if got := testutil.ToFloat64(metrics.RecordsInserted); got != 5 {
		t.Fatalf("records_inserted=%v", got)
	}
	if got := testutil.ToFloat64(metrics.RecordsSkipped); got != 1 {
		t.Fatalf("records_duplicate=%v", got)
	}
	if got := testutil.ToFloat64(metrics.Runs.WithLabelValues("success")); got != 1 {
		t.Fatalf("runs success=%v", got)
	}
	if got := testutil.ToFloat64(metrics.WindowQuirks.WithLabelValues("ramp")); got != 1 {
		t.Fatalf("ramp quirks=%v", got)
	}
}

func TestRunResetsPreviousRowsUnlessAppending(t *testing.T) {
	srv := newPDFServer(t)
	st := store.NewMemoryStore()
	ctx := context.Background()
	if _, err := st.InsertMany(ctx, []incident.Record{{CaseNumber: "old", Category: "Old"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	dl := &fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}

	appendRunner := NewRunner(dl, &fakeExtractor{lines: dailyLines}, st, &bytes.Buffer{}, WithAppend(true))
	res, err := appendRunner.Run(ctx, srv.URL+"/daily.pdf")
	if err != nil {
		t.Fatalf("append run: %v", err)
	}
	if res.Total != 6 {
		t.Fatalf("append total=%d want 6", res.Total)
	}

	resetRunner := NewRunner(dl, &fakeExtractor{lines: dailyLines}, st, &bytes.Buffer{})
	res, err = resetRunner.Run(ctx, srv.URL+"/daily.pdf")
	if err != nil {
		t.Fatalf("reset run: %v", err)
	}
	if res.Total != 5 {
		t.Fatalf("reset total=%d want 5", res.Total)
	}
}

func TestRunFetchErrorOnNon2xx(t *testing.T) {
	srv := newPDFServer(t)
	ex := &fakeExtractor{lines: dailyLines}
	metrics := telemetry.NewMetrics()
	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, ex, store.NewMemoryStore(), &bytes.Buffer{}, WithMetrics(metrics))

	_, err := r.Run(context.Background(), srv.URL+"/missing.pdf")
	if !IsCode(err, CodeFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var se *fetch.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if ex.seen != "" {
		t.Fatal("extractor must not run after a failed fetch")
	}
	if got := testutil.ToFloat64(metrics.Runs.WithLabelValues("failure")); got != 1 {
		t.Fatalf("runs failure=%v", got)
	}
}

func TestRunStoreInitErrorAbortsBeforeFetch(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()
	ex := &fakeExtractor{lines: dailyLines}
	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, ex, failingResetStore{store.NewMemoryStore()}, &bytes.Buffer{})

	_, err := r.Run(context.Background(), srv.URL)
	if !IsCode(err, CodeStoreInit) {
		t.Fatalf("expected store_init error, got %v", err)
	}
	if hits != 0 || ex.seen != "" {
		t.Fatalf("nothing should be fetched or parsed: hits=%d seen=%q", hits, ex.seen)
	}
}

func TestRunExtractErrorRemovesDownload(t *testing.T) {
	srv := newPDFServer(t)
	ex := &fakeExtractor{err: errors.New("no text layer")}
	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, ex, store.NewMemoryStore(), &bytes.Buffer{})

	_, err := r.Run(context.Background(), srv.URL+"/daily.pdf")
	if !IsCode(err, CodeExtract) {
		t.Fatalf("expected extract error, got %v", err)
	}
	if _, statErr := os.Stat(ex.seen); !os.IsNotExist(statErr) {
		t.Fatalf("download should be removed after extract failure: %v", statErr)
	}
}

func TestRunEmptyDocumentPrintsNothing(t *testing.T) {
	srv := newPDFServer(t)
	var out bytes.Buffer
	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, &fakeExtractor{}, store.NewMemoryStore(), &out)
	res, err := r.Run(context.Background(), srv.URL+"/daily.pdf")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Parsed != 0 || out.Len() != 0 {
		t.Fatalf("expected empty run, got %+v out=%q", res, out.String())
	}
}

func TestRunHooksSeeResultAndFailuresAreReported(t *testing.T) {
	srv := newPDFServer(t)
	var out bytes.Buffer
	failing := &recordingHook{name: "xlsx", err: errors.New("disk full")}
	ok := &recordingHook{name: "report"}
	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, &fakeExtractor{lines: dailyLines}, store.NewMemoryStore(), &out, WithHooks(failing, ok))

	res, err := r.Run(context.Background(), srv.URL+"/daily.pdf")
	if !IsCode(err, CodeReport) {
		t.Fatalf("expected report error, got %v", err)
	}
	if !strings.Contains(err.Error(), "xlsx: disk full") {
		t.Fatalf("hook name missing from error: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("breakdown must be printed before hooks run")
	}
	if len(ok.got) != 1 || ok.got[0].RunID != res.RunID || ok.got[0].Total != 5 {
		t.Fatalf("later hook should still run with the result: %+v", ok.got)
	}
}

func TestRunRecordsSpans(t *testing.T) {
	srv := newPDFServer(t)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	r := NewRunner(&fetch.Downloader{Client: srv.Client(), Dir: t.TempDir()}, &fakeExtractor{lines: dailyLines}, store.NewMemoryStore(), &bytes.Buffer{}, WithTracer(tp.Tracer("test")))
	if _, err := r.Run(context.Background(), srv.URL+"/daily.pdf"); err != nil {
		t.Fatalf("run: %v", err)
	}

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"pipeline.run", "pipeline.store_init", "pipeline.fetch", "pipeline.extract", "pipeline.parse", "pipeline.store", "pipeline.report"} {
		if !names[want] {
			t.Fatalf("missing span %q in %v", want, names)
		}
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewStoreError("insert incidents", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable")
	}
	if err.Error() != "store: insert incidents: boom" {
		t.Fatalf("message=%q", err.Error())
	}
	if IsCode(cause, CodeStore) {
		t.Fatal("plain error should not match a code")
	}
}
