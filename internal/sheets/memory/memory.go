// Package memory keeps exported trip reports in process, keyed by tab title.
package memory

import (
	"context"
	"sort"
	"sync"

	"tripsplit/internal/sheets"
)

type Writer struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	byTrip map[string]string
}

var _ sheets.ReportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{tabs: map[string][][]any{}, byTrip: map[string]string{}}
}

// WriteReport replaces the trip's tab. A renamed trip moves to a new tab.
func (w *Writer) WriteReport(_ context.Context, r sheets.TripReport) error {
	title := sheets.SheetTitle(r)
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.byTrip[r.TripID]; ok && old != title {
		delete(w.tabs, old)
	}
	w.tabs[title] = sheets.Rows(r)
	w.byTrip[r.TripID] = title
	return nil
}

// Tab returns the rows last written under title.
func (w *Writer) Tab(title string) ([][]any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, ok := w.tabs[title]
	return rows, ok
}

// Titles lists the tabs in name order.
func (w *Writer) Titles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.tabs))
	for t := range w.tabs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
