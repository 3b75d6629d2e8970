package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/normanpd/internal/incident"
)

type fakeMessager struct {
	resp   *anthropic.Message
	err    error
	params anthropic.MessageNewParams
	calls  int
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.calls++
	f.params = params
	return f.resp, f.err
}

func textMessage(parts ...string) *anthropic.Message {
	msg := &anthropic.Message{}
	for _, p := range parts {
		msg.Content = append(msg.Content, anthropic.ContentBlockUnion{Type: "text", Text: p})
	}
	return msg
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("https://example.test/a.pdf", 5, []incident.CategoryCount{
		{Category: "Traffic Stop", Count: 4},
		{Category: incident.SentinelCategory, Count: 1},
	})
	for _, want := range []string{
		"Source document: https://example.test/a.pdf",
		"Incidents in database: 5",
		"Traffic Stop|4\n",
		"(unassigned)|1\n",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestSummarizeJoinsTextBlocks(t *testing.T) {
	fake := &fakeMessager{resp: textMessage("Quiet day. ", "Mostly traffic stops.")}
	s := NewSummarizerWithMessager(fake, "")
	out, err := s.Summarize(context.Background(), "", 4, []incident.CategoryCount{{Category: "Traffic Stop", Count: 4}})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if out != "Quiet day. Mostly traffic stops." {
		t.Fatalf("out=%q", out)
	}
	if fake.calls != 1 {
		t.Fatalf("calls=%d", fake.calls)
	}
	if string(fake.params.Model) != DefaultModel {
		t.Fatalf("model=%q", fake.params.Model)
	}
}

func TestSummarizeEmptyResponse(t *testing.T) {
	s := NewSummarizerWithMessager(&fakeMessager{resp: textMessage("   ")}, "m")
	if _, err := s.Summarize(context.Background(), "", 0, nil); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestSummarizeTransportError(t *testing.T) {
	boom := errors.New("status 503")
	s := NewSummarizerWithMessager(&fakeMessager{err: boom}, "m")
	if _, err := s.Summarize(context.Background(), "", 0, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewSummarizerRequiresKey(t *testing.T) {
	if _, err := NewSummarizer("  ", ""); err == nil {
		t.Fatal("expected missing key error")
	}
}
