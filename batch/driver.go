// Package batch walks a list of work items one at a time, committing a
// checkpoint after every item so an interrupted run resumes where it stopped.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-apps/models"
)

// Outcome is the result of handling one item. Errors are recorded in the
// error log but do not stop the run.
type Outcome struct {
	Errors  models.ErrorLog
	Summary string
}

// Handler processes one work item. A returned error aborts the run without
// advancing the checkpoint past the item.
type Handler interface {
	Handle(ctx context.Context, item string) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item string) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, item string) (Outcome, error) {
	return f(ctx, item)
}

// Driver runs a Handler over work items with checkpointing and throttling.
type Driver struct {
	Name       string
	Checkpoint CheckpointStore
	ErrorLog   ErrorSink
	Throttle   Throttle
	Sleep      Sleeper
	Metrics    *Metrics
	Logger     *slog.Logger
}

// run holds the state of a single Run call.
type run struct {
	items  []string
	start  int
	report *models.RunReport
}

func (r *run) finish(completed bool) *models.RunReport {
	r.report.Completed = completed
	r.report.EndTime = time.Now()
	return r.report
}

// Run processes items from the stored checkpoint onwards. On completion the
// checkpoint is reset to zero. When ctx is cancelled the report so far is
// returned together with ctx.Err(); the checkpoint already covers every
// finished item.
func (d *Driver) Run(ctx context.Context, items []string, handler Handler) (*models.RunReport, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	start, err := d.Checkpoint.Load()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if start > len(items) {
		logger.Warn("checkpoint beyond item list, treating run as done",
			slog.String("run", d.Name),
			slog.Int("checkpoint", start),
			slog.Int("items", len(items)),
		)
		start = len(items)
	}

	report := &models.RunReport{
		Name:       d.Name,
		TotalItems: len(items),
		StartIndex: start,
		StartTime:  time.Now(),
	}
	r := &run{items: items, start: start, report: report}

	logger.Info("starting batch run",
		slog.String("run", d.Name),
		slog.Int("items", len(items)),
		slog.Int("start_index", start),
	)

	for i, item := range r.items[r.start:] {
		if err := ctx.Err(); err != nil {
			return r.finish(false), err
		}

		outcome, err := handler.Handle(ctx, item)
		if err != nil {
			return r.finish(false), fmt.Errorf("handle item %d (%s): %w", r.start+i, item, err)
		}

		r.report.Attempted++
		if len(outcome.Errors) > 0 {
			r.report.ItemsWithErrors++
			r.report.TotalErrors += len(outcome.Errors)
			d.Metrics.IncItem("with_errors")
			if d.ErrorLog != nil {
				if err := d.ErrorLog.Append(item, outcome.Errors); err != nil {
					return r.finish(false), fmt.Errorf("record errors for %s: %w", item, err)
				}
			}
		} else {
			d.Metrics.IncItem("ok")
		}

		cursor := r.start + i + 1
		if err := d.Checkpoint.Save(cursor); err != nil {
			return r.finish(false), fmt.Errorf("save checkpoint %d: %w", cursor, err)
		}
		d.Metrics.SetCheckpoint(cursor)

		summary := outcome.Summary
		if summary == "" {
			summary = item
		}
		logger.Info(fmt.Sprintf("[%d/%d] %s", cursor, len(r.items), summary),
			slog.String("run", d.Name),
			slog.Int("errors", len(outcome.Errors)),
		)

		tier := d.Throttle.TierFor(i)
		pause := d.Throttle.Duration(tier)
		if tier != TierShort {
			logger.Info("pausing between items",
				slog.String("tier", tier.String()),
				slog.Duration("duration", pause),
			)
		}
		d.Metrics.AddThrottle(tier, pause)
		if err := sleep(ctx, pause); err != nil {
			return r.finish(false), err
		}
	}

	if err := d.Checkpoint.Save(0); err != nil {
		return r.finish(false), fmt.Errorf("reset checkpoint: %w", err)
	}
	d.Metrics.SetCheckpoint(0)

	r.finish(true)
	logger.Info("batch run completed",
		slog.String("run", d.Name),
		slog.Int("attempted", report.Attempted),
		slog.Int("items_with_errors", report.ItemsWithErrors),
		slog.Int("total_errors", report.TotalErrors),
		slog.Duration("duration", report.Duration()),
	)
	return report, nil
}
