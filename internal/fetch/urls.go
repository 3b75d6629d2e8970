package fetch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"
)

const (
	dateLayout         = "2006-01-02"
	dailySummaryFormat = "https://www.normanok.gov/sites/default/files/documents/%s/%s_daily_incident_summary.pdf"
)

// DailySummaryURL is the published location of the summary for day.
func DailySummaryURL(day time.Time) string {
	return fmt.Sprintf(dailySummaryFormat, day.Format("2006-01"), day.Format(dateLayout))
}

// RandomDailyURLs picks n distinct days in [start, end) and returns their
// summary URLs in date order. n is capped at the number of days available.
func RandomDailyURLs(start, end string, n int, rng *rand.Rand) ([]string, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	days := int(e.Sub(s).Hours() / 24)
	if days <= 0 {
		return nil, errors.New("end date must be after start date")
	}
	if n > days {
		n = days
	}
	if n <= 0 {
		return nil, nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	offsets := rng.Perm(days)[:n]
	sort.Ints(offsets)
	out := make([]string, 0, n)
	for _, off := range offsets {
		out = append(out, DailySummaryURL(s.AddDate(0, 0, off)))
	}
	return out, nil
}
