package memory

import (
	"context"
	"testing"

	"tripsplit/internal/core"
	"tripsplit/internal/sheets"
)

func TestWriterReplacesTab(t *testing.T) {
	w := New()
	ctx := context.Background()
	r := sheets.TripReport{TripID: "abcdef123456", Name: "Split", Currency: core.DefaultCurrency}

	if err := w.WriteReport(ctx, r); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := w.Titles(); len(got) != 1 || got[0] != "Split abcdef12" {
		t.Fatalf("unexpected titles: %v", got)
	}

	r.Name = "Split & Hvar"
	if err := w.WriteReport(ctx, r); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := w.Titles(); len(got) != 1 || got[0] != "Split & Hvar abcdef12" {
		t.Fatalf("renamed trip should move tabs, got %v", got)
	}
	rows, ok := w.Tab("Split & Hvar abcdef12")
	if !ok || rows[0][1] != "Split & Hvar" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
