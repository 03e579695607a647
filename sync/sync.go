// Package sync implements the Sync Loop (spec.md §2, §4): for every
// configured calendar it drives the Calendar Fetcher, ICS Decoder, Instance
// Expander and Persistence Layer in sequence, on a periodic cadence.
//
// The per-calendar pipeline is grounded on original_source/src/calendar.rs's
// fetch_calendars -> parse_calendars_to_events flow, translated to this
// module's davclient/ics/expand/store packages.
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"calremind/expand"
	"calremind/ics"
	"calremind/internal/model"
)

// Fetcher issues a CalDAV query for cal and returns the raw iCalendar
// bodies; caldav.Fetcher.Fetch satisfies this.
type Fetcher func(ctx context.Context, cal model.Calendar, now time.Time) ([]string, error)

// Store is the subset of store.Store the Sync Loop needs.
type Store interface {
	GetCalendars(ctx context.Context) ([]model.Calendar, error)
	InsertEvents(ctx context.Context, calendarID int64, events []model.Event, instances []model.EventInstance) error
}

// Loop runs the periodic Sync Loop.
type Loop struct {
	fetch   Fetcher
	store   Store
	horizon time.Duration
	period  time.Duration
	logger  zerolog.Logger
}

// New builds a Loop. period is the Sync Loop's own cadence (spec.md §9's
// sync_period); horizon is the Instance Expander's materialisation window
// (spec.md §9's horizon_days, default 30 days).
func New(fetch Fetcher, store Store, horizon, period time.Duration, logger zerolog.Logger) *Loop {
	return &Loop{
		fetch:   fetch,
		store:   store,
		horizon: horizon,
		period:  period,
		logger:  logger.With().Str("component", "sync").Logger(),
	}
}

// Run drives the Sync Loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	l.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

// runOnce syncs every configured calendar once. A single calendar's
// failure is logged and does not stop the others (spec.md §5: "a CalDAV
// timeout fails that calendar's sync and leaves prior state untouched").
func (l *Loop) runOnce(ctx context.Context) {
	runID := uuid.New().String()
	logger := l.logger.With().Str("run_id", runID).Logger()

	calendars, err := l.store.GetCalendars(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("loading calendars")
		return
	}

	for _, cal := range calendars {
		if err := l.syncCalendar(ctx, logger, cal); err != nil {
			logger.Error().Err(err).Int64("calendar_id", cal.CalendarID).Msg("sync failed")
		}
	}
}

func (l *Loop) syncCalendar(ctx context.Context, logger zerolog.Logger, cal model.Calendar) error {
	now := time.Now()

	bodies, err := l.fetch(ctx, cal, now)
	if err != nil {
		return err
	}

	var events []model.Event
	var instances []model.EventInstance

	for _, body := range bodies {
		cals, err := ics.Decode(body)
		if err != nil {
			// One malformed calendar body does not fail the whole sync
			// (spec.md §4.1/§7): log and skip it.
			logger.Warn().Err(err).Int64("calendar_id", cal.CalendarID).Msg("skipping unparseable calendar body")
			continue
		}

		evs, insts := expand.Expand(cal.CalendarID, cals, now, l.horizon)
		events = append(events, evs...)
		instances = append(instances, insts...)
	}

	if err := l.store.InsertEvents(ctx, cal.CalendarID, events, instances); err != nil {
		return err
	}

	logger.Info().
		Int64("calendar_id", cal.CalendarID).
		Int("events", len(events)).
		Int("instances", len(instances)).
		Msg("synced calendar")
	return nil
}
