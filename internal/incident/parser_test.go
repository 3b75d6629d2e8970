package incident

import (
	"reflect"
	"testing"
)

func TestParseLinesEndToEndExample(t *testing.T) {
	lines := []string{"Date / Time", "01/01/2024 10:00", "2024-001", "123 Main St", "Traffic Stop", "OK012"}
	got := ParseLines(lines)
	want := []Record{{
		Timestamp:  "01/01/2024 10:00",
		CaseNumber: "2024-001",
		Location:   "123 Main St",
		Category:   "Traffic Stop",
		AgencyCode: "OK012",
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("records=%+v want %+v", got, want)
	}
}

func TestParseLinesEmptyWhenNoHeaderAndNoStarts(t *testing.T) {
	lines := []string{"NORMAN POLICE DEPARTMENT", "Daily Incident Summary", "no separators", "10:00 only time", "a/b only date", "x", "y"}
	if got := ParseLines(lines); len(got) != 0 {
		t.Fatalf("expected no records, got %+v", got)
	}
}

func TestParseLinesTrimsWellFormedWindow(t *testing.T) {
	lines := []string{"  2/1/2024 0:04 ", " 2024-00001234", "1200 W MAIN ST  ", "\tAlarm ", "OK0140200 "}
	got := ParseLines(lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	want := Record{Timestamp: "2/1/2024 0:04", CaseNumber: "2024-00001234", Location: "1200 W MAIN ST", Category: "Alarm", AgencyCode: "OK0140200"}
	if got[0] != want {
		t.Fatalf("record=%+v want %+v", got[0], want)
	}
}

func TestParseLinesSkipsEverythingBeforeHeader(t *testing.T) {
	lines := []string{
		"2/25/2024 11:23", "junk-1", "junk-2", "junk-3", "junk-4",
		"Date / Time",
		"2/1/2024 0:04", "2024-0001", "100 A ST", "Noise", "OK012",
	}
	got := ParseLines(lines)
	if len(got) != 1 || got[0].CaseNumber != "2024-0001" {
		t.Fatalf("expected only the record after the header, got %+v", got)
	}
}

func TestParseLinesHeaderOnLaterPageIsNotARecordStart(t *testing.T) {
	lines := []string{
		"Date / Time", "Incident Number", "Location", "Nature", "Incident ORI",
		"2/1/2024 0:04", "2024-0001", "100 A ST", "Noise", "OK012",
		"Date / Time: page 2", "Incident Number", "Location", "Nature", "Incident ORI",
		"2/1/2024 0:09", "2024-0002", "200 B ST", "Alarm", "OK012",
	}
	got := ParseLines(lines)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[1].CaseNumber != "2024-0002" {
		t.Fatalf("second record=%+v", got[1])
	}
}

func TestParseLinesDropsTrailingPartialWindow(t *testing.T) {
	lines := []string{"Date / Time", "2/1/2024 0:04", "2024-0001", "100 A ST", "Noise"}
	if got := ParseLines(lines); len(got) != 0 {
		t.Fatalf("expected partial window to be dropped, got %+v", got)
	}
}

func TestParseLinesRampQuirk(t *testing.T) {
	lines := []string{"Date / Time", "2/1/2024 1:15", "2024-0003", "I35 NB", " RAMP ", "Motorist Assist", "OK012"}
	got := ParseLines(lines)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %+v", got)
	}
	if got[0].Category != "Motorist Assist" {
		t.Fatalf("category=%q", got[0].Category)
	}
	if got[0].AgencyCode != "" {
		t.Fatalf("agency code should be unassigned, got %q", got[0].AgencyCode)
	}
}

func TestParseLinesRampMustMatchExactly(t *testing.T) {
	lines := []string{"2/1/2024 1:15", "2024-0003", "I35 NB", "RAMP EXIT", "OK012"}
	got := ParseLines(lines)
	if len(got) != 1 || got[0].Category != "RAMP EXIT" || got[0].AgencyCode != "OK012" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestParseLinesSentinelQuirk(t *testing.T) {
	lines := []string{"Date / Time", "2/1/2024 1:15", "2024-0004", "300 C ST", "2/1/2024 1:16", "OK012"}
	got := ParseLines(lines)
	if len(got) == 0 {
		t.Fatal("expected a record")
	}
	if got[0].Category != SentinelCategory {
		t.Fatalf("category=%q want sentinel", got[0].Category)
	}
	if got[0].AgencyCode != "OK012" {
		t.Fatalf("agency=%q", got[0].AgencyCode)
	}
}

func TestParseLinesOverlappingFalsePositivesAreKept(t *testing.T) {
	lines := []string{"2/1/2024 0:04", "2/1/2024 0:05", "a", "b", "c", "d"}
	got := ParseLines(lines)
	if len(got) != 2 {
		t.Fatalf("expected both overlapping windows, got %d", len(got))
	}
	if got[0].CaseNumber != "2/1/2024 0:05" {
		t.Fatalf("first record=%+v", got[0])
	}
}

func TestParseWithStatsCountsQuirks(t *testing.T) {
	lines := []string{
		"Date / Time",
		"2/1/2024 0:04", "2024-0001", "100 A ST", "RAMP", "Noise",
		"2/1/2024 0:05", "2024-0002", "200 B ST", "1:00", "OK012",
		"tail",
	}
	_, stats := Parser{}.ParseWithStats(lines)
	if stats.HeaderAt != 0 || stats.Lines != len(lines) {
		t.Fatalf("stats=%+v", stats)
	}
	if stats.Ramp != 1 || stats.Sentinel < 1 {
		t.Fatalf("quirk counts=%+v", stats)
	}
}

func TestParserCustomHeaderMarker(t *testing.T) {
	p := Parser{HeaderMarker: "BEGIN"}
	lines := []string{"2/1/2024 0:04", "x", "x", "x", "x", "BEGIN", "2/1/2024 0:05", "2024-9", "L", "C", "A"}
	got := p.Parse(lines)
	if len(got) != 1 || got[0].CaseNumber != "2024-9" {
		t.Fatalf("records=%+v", got)
	}
}

func TestIsRecordStart(t *testing.T) {
	cases := map[string]bool{
		"2/1/2024 0:04": true,
		"2024-0001":     false,
		"Date / Time":   false,
		"12:00":         false,
	}
	for in, want := range cases {
		if got := IsRecordStart(in); got != want {
			t.Fatalf("IsRecordStart(%q)=%v want %v", in, got, want)
		}
	}
}

func TestParseStateString(t *testing.T) {
	if seekingHeader.String() != "seeking-header" || emitRecord.String() != "emit-record" {
		t.Fatal("unexpected state names")
	}
}
