// Package narrative asks Claude for a short plain-English overview of a
// day's incident breakdown.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/normanpd/internal/incident"
)

const (
	DefaultModel = "claude-sonnet-4-5"

	systemPrompt = "You summarize police daily incident logs for a city data desk. Be factual, neutral and brief. Only use the numbers you are given; never speculate about individuals or causes."
	maxTokens    = 600
)

var ErrEmptyResponse = errors.New("narrative: empty response")

type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Summarizer struct {
	messages Messager
	model    string
}

func NewSummarizer(apiKey, model string) (*Summarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewSummarizerWithMessager(&c.Messages, model), nil
}

func NewSummarizerWithMessager(m Messager, model string) *Summarizer {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Summarizer{messages: m, model: model}
}

func (s *Summarizer) ModelName() string { return s.model }

func (s *Summarizer) Summarize(ctx context.Context, source string, total int, counts []incident.CategoryCount) (string, error) {
	resp, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(source, total, counts)))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("narrative request: %w", err)
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}

// BuildPrompt lists the breakdown one category per line, busiest first.
func BuildPrompt(source string, total int, counts []incident.CategoryCount) string {
	var b strings.Builder
	b.WriteString("Write two or three short paragraphs describing today's Norman Police Department incident activity.\n")
	b.WriteString("Mention the most common incident natures and anything unusual in the mix.\n\n")
	if source != "" {
		fmt.Fprintf(&b, "Source document: %s\n", source)
	}
	fmt.Fprintf(&b, "Incidents in database: %d\n\n", total)
	b.WriteString("Incidents by nature (nature|count):\n")
	for _, c := range counts {
		name := incident.DisplayCategory(c.Category)
		if name == "" {
			name = "(unassigned)"
		}
		fmt.Fprintf(&b, "%s|%d\n", name, c.Count)
	}
	return b.String()
}
