package incident

import "strings"

// DefaultHeaderMarker is the column header phrase that opens the incident table.
const DefaultHeaderMarker = "Date / Time"

const (
	dateSeparator = "/"
	timeSeparator = ":"
	windowSize    = 5
)

type parseState int

const (
	seekingHeader parseState = iota
	scanningForStart
	emitRecord
)

func (s parseState) String() string {
	switch s {
	case seekingHeader:
		return "seeking-header"
	case scanningForStart:
		return "scanning-for-start"
	case emitRecord:
		return "emit-record"
	default:
		return "unknown"
	}
}

// Stats describes what the parser saw. Windows that were dropped or
// misaligned show up here and never as errors.
type Stats struct {
	Lines    int
	HeaderAt int
	Starts   int
	Ramp     int
	Sentinel int
}

// Parser turns the flattened text lines of a daily incident summary into
// records. The zero value uses DefaultHeaderMarker.
type Parser struct {
	HeaderMarker string
}

func (p Parser) marker() string {
	if p.HeaderMarker == "" {
		return DefaultHeaderMarker
	}
	return p.HeaderMarker
}

// ParseLines parses with the default header marker.
func ParseLines(lines []string) []Record {
	return Parser{}.Parse(lines)
}

// Parse returns the records found in lines, dropping the Stats.
func (p Parser) Parse(lines []string) []Record {
	out, _ := p.ParseWithStats(lines)
	return out
}

// ParseWithStats walks the line stream once. Everything up to and including
// the first header line is skipped; when there is no header line nothing is.
// A record start is any later line holding both a date and a time separator
// with four more lines after it.
func (p Parser) ParseWithStats(lines []string) ([]Record, Stats) {
	marker := p.marker()
	stats := Stats{Lines: len(lines), HeaderAt: indexOfMarker(lines, marker)}

	state := seekingHeader
	if stats.HeaderAt < 0 {
		state = scanningForStart
	}

	var out []Record
	i := 0
	for i < len(lines) {
		switch state {
		case seekingHeader:
			if strings.Contains(lines[i], marker) {
				state = scanningForStart
			}
			i++
		case scanningForStart:
			if i+windowSize > len(lines) {
				return out, stats
			}
			if strings.Contains(lines[i], marker) || !IsRecordStart(lines[i]) {
				i++
				continue
			}
			state = emitRecord
		case emitRecord:
			rec, q := recordFromWindow(lines[i : i+windowSize])
			stats.Starts++
			switch q {
			case quirkRamp:
				stats.Ramp++
			case quirkSentinel:
				stats.Sentinel++
			}
			out = append(out, rec)
			state = scanningForStart
			i++
		}
	}
	return out, stats
}

// IsRecordStart reports whether line looks like a date/time cell.
func IsRecordStart(line string) bool {
	return strings.Contains(line, dateSeparator) && strings.Contains(line, timeSeparator)
}

func indexOfMarker(lines []string, marker string) int {
	for i, l := range lines {
		if strings.Contains(l, marker) {
			return i
		}
	}
	return -1
}

type windowQuirk int

const (
	quirkNone windowQuirk = iota
	quirkRamp
	quirkSentinel
)

// recordFromWindow reads a five line window positionally:
// timestamp, case number, location, category, agency code.
func recordFromWindow(w []string) (Record, windowQuirk) {
	rec := Record{
		Timestamp:  strings.TrimSpace(w[0]),
		CaseNumber: strings.TrimSpace(w[1]),
		Location:   strings.TrimSpace(w[2]),
	}
	slot := strings.TrimSpace(w[3])
	next := strings.TrimSpace(w[4])

	switch {
	case isMisalignedCategory(slot):
		rec.Category = SentinelCategory
		rec.AgencyCode = next
		return rec, quirkSentinel
	case isRampQualifier(slot):
		// The agency code would sit past the window; leave it unassigned.
		rec.Category = next
		return rec, quirkRamp
	default:
		rec.Category = slot
		rec.AgencyCode = next
		return rec, quirkNone
	}
}

func isRampQualifier(slot string) bool {
	return slot == RampToken
}

func isMisalignedCategory(slot string) bool {
	return strings.Contains(slot, timeSeparator)
}
