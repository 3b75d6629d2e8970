// Package report formats the category breakdown for the console and writes
// the optional markdown, HTML, PDF and XLSX artifacts.
package report

import (
	"fmt"
	"io"

	"github.com/joelkehle/normanpd/internal/incident"
)

// WriteStatus prints one "<category>|<count>" line per entry in the order
// given. The unassigned category prints as an empty string.
func WriteStatus(w io.Writer, counts []incident.CategoryCount) error {
	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "%s|%d\n", incident.DisplayCategory(c.Category), c.Count); err != nil {
			return err
		}
	}
	return nil
}

func WriteTotal(w io.Writer, total int) error {
	_, err := fmt.Fprintf(w, "Total incidents in database: %d\n", total)
	return err
}
