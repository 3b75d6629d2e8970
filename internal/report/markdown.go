package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/normanpd/internal/incident"
)

// Summary is everything a rendered report shows about one import.
type Summary struct {
	RunID       string
	SourceURL   string
	GeneratedAt time.Time
	Parsed      int
	Inserted    int
	Total       int
	Breakdown   []incident.CategoryCount
	Narrative   string
}

func BuildMarkdown(s Summary) string {
	var b strings.Builder
	b.WriteString("# Norman PD Daily Incident Summary\n\n")
	if s.SourceURL != "" {
		fmt.Fprintf(&b, "- **Source:** %s\n", s.SourceURL)
	}
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- **Generated:** %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "- **Run:** `%s`\n", s.RunID)
	}
	fmt.Fprintf(&b, "- **Records parsed:** %d\n", s.Parsed)
	fmt.Fprintf(&b, "- **Records inserted:** %d\n", s.Inserted)
	fmt.Fprintf(&b, "- **Incidents in database:** %d\n\n", s.Total)

	if strings.TrimSpace(s.Narrative) != "" {
		b.WriteString("## Overview\n\n")
		b.WriteString(strings.TrimSpace(s.Narrative))
		b.WriteString("\n\n")
	}

	b.WriteString("## Incidents by Nature\n\n")
	if len(s.Breakdown) == 0 {
		b.WriteString("_No incidents recorded._\n")
		return b.String()
	}
	b.WriteString("| Nature | Count |\n|---|---:|\n")
	for _, c := range s.Breakdown {
		name := incident.DisplayCategory(c.Category)
		if name == "" {
			name = "_(unassigned)_"
		}
		fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(name), c.Count)
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
