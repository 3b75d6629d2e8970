package incident

import "sort"

const (
	// SentinelCategory is stored when the category slot of a window holds
	// something that looks like another timestamp.
	SentinelCategory = "NULLVALUE"

	// RampToken is the location qualifier that pushes the category down one line.
	RampToken = "RAMP"
)

// Record is one row of the daily incident summary.
type Record struct {
	Timestamp  string `json:"timestamp"`
	CaseNumber string `json:"case_number"`
	Location   string `json:"location"`
	Category   string `json:"category"`
	AgencyCode string `json:"agency_code,omitempty"`
}

// CategoryCount is one line of the breakdown report.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// IsSentinel reports whether category is the unassigned-category marker.
func IsSentinel(category string) bool {
	return category == SentinelCategory
}

// DisplayCategory renders the sentinel as an empty string.
func DisplayCategory(category string) string {
	if IsSentinel(category) {
		return ""
	}
	return category
}

// SortCategoryCounts orders by count descending, then category ascending.
func SortCategoryCounts(counts []CategoryCount) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Category < counts[j].Category
	})
}

// CountByCategory aggregates records in memory with the same ordering the
// store uses.
func CountByCategory(records []Record) []CategoryCount {
	idx := map[string]int{}
	var out []CategoryCount
	for _, r := range records {
		i, ok := idx[r.Category]
		if !ok {
			idx[r.Category] = len(out)
			out = append(out, CategoryCount{Category: r.Category, Count: 1})
			continue
		}
		out[i].Count++
	}
	SortCategoryCounts(out)
	return out
}
