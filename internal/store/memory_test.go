package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/joelkehle/normanpd/internal/incident"
)

func TestMemoryStoreMatchesSQLSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := m.InsertMany(ctx, sampleRecords())
	if err != nil || n != 3 {
		t.Fatalf("insert n=%d err=%v", n, err)
	}
	n, _ = m.InsertMany(ctx, sampleRecords())
	if n != 0 {
		t.Fatalf("duplicate insert wrote %d", n)
	}

	got, err := m.AggregateByCategory(ctx)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	want := []incident.CategoryCount{{Category: "Nature A", Count: 2}, {Category: "Nature B", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}

	list, _ := m.List(ctx, Filter{Category: "Nature A"})
	if len(list) != 2 || list[0].CaseNumber != "12345" {
		t.Fatalf("list=%+v", list)
	}
	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if c, _ := m.Count(ctx); c != 0 {
		t.Fatalf("count after reset=%d", c)
	}
}

func TestMemoryStoreListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, _ = m.InsertMany(ctx, []incident.Record{{CaseNumber: "2024-9"}, {CaseNumber: "2024-1"}, {CaseNumber: "2024-9"}})
	_, _ = m.InsertMany(ctx, []incident.Record{{CaseNumber: "2024-5"}})
	list, _ := m.List(ctx, Filter{})
	if got, want := caseNumbers(list), []string{"2024-9", "2024-1", "2024-5"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order=%v want %v", got, want)
	}
	_ = m.Reset(ctx)
	if list, _ := m.List(ctx, Filter{}); len(list) != 0 {
		t.Fatalf("list after reset=%v", list)
	}
}
