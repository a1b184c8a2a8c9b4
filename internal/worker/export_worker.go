package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tripsplit/internal/amqp"
	"tripsplit/internal/core"
	"tripsplit/internal/log"
	"tripsplit/internal/services"
	"tripsplit/internal/sheets"
)

// TripSummarizer is the slice of services.TripService the worker needs.
// Events come from other processes, so summaries are always read fresh.
type TripSummarizer interface {
	FreshSummary(ctx context.Context, tripID string) (services.Summary, error)
	ListTrips(ctx context.Context) ([]core.Trip, error)
}

// ExportWorker mirrors trip summaries into a spreadsheet.
type ExportWorker struct {
	trips       TripSummarizer
	writer      sheets.ReportWriter
	logger      *log.Logger
	concurrency int
}

func NewExportWorker(trips TripSummarizer, writer sheets.ReportWriter, logger *log.Logger, concurrency int) *ExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExportWorker{
		trips:       trips,
		writer:      writer,
		logger:      logger.WithComponent(log.ComponentWorker),
		concurrency: concurrency,
	}
}

// HandleTripChanged re-exports the trip named in msg. Deleted trips are
// acknowledged without export; any other failure is returned so the
// message is requeued.
func (w *ExportWorker) HandleTripChanged(ctx context.Context, msg *amqp.TripChangedMessage) error {
	l := w.logger.WithTrip(msg.TripID)
	if msg.Reason == amqp.ReasonTripDeleted {
		l.InfoContext(ctx, "Trip deleted, nothing to export")
		return nil
	}

	err := w.ExportTrip(ctx, msg.TripID)
	if errors.Is(err, core.ErrTripNotFound) {
		l.WarnContext(ctx, "Trip vanished before export", log.FieldReason, msg.Reason)
		return nil
	}
	return err
}

// ExportTrip writes the current summary of one trip.
func (w *ExportWorker) ExportTrip(ctx context.Context, tripID string) error {
	sum, err := w.trips.FreshSummary(ctx, tripID)
	if err != nil {
		return fmt.Errorf("summarise trip %s: %w", tripID, err)
	}
	if err := w.writer.WriteReport(ctx, reportFrom(sum)); err != nil {
		return fmt.Errorf("write report for trip %s: %w", tripID, err)
	}
	w.logger.DebugContext(ctx, "Trip exported", log.FieldTripID, tripID, "settlements", len(sum.Settlements))
	return nil
}

// ExportAll re-exports every trip. It keeps going past individual failures
// and returns them joined.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	trips, err := w.trips.ListTrips(ctx)
	if err != nil {
		return fmt.Errorf("list trips: %w", err)
	}

	errs := make([]error, len(trips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, t := range trips {
		g.Go(func() error {
			errs[i] = w.ExportTrip(gctx, t.ID)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	w.logger.InfoContext(ctx, "Full export finished", "trips", len(trips), "failed", failed)
	return errors.Join(errs...)
}

// RunPeriodic calls ExportAll every interval until ctx is done.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ExportAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", log.FieldError, err)
			}
		}
	}
}

func reportFrom(s services.Summary) sheets.TripReport {
	return sheets.TripReport{
		TripID:      s.Trip.ID,
		Name:        s.Trip.Name,
		Currency:    s.Currency,
		Total:       s.Total,
		Share:       s.Share,
		Balances:    s.Balances,
		Settlements: s.Settlements,
		Expenses:    s.Expenses,
		Ignored:     s.Ignored,
		GeneratedAt: s.ComputedAt,
	}
}
