// Package scheduler implements the Reminder Scheduler (spec.md §4.5): a
// fire-time-ordered queue that is periodically reloaded from the
// Persistence Layer, dispatching due reminders to the Dispatch Sink and
// otherwise sleeping until the earlier of the next fire time or the next
// refresh deadline.
//
// The cooperative loop (a select between a one-shot Clock timer and
// ctx.Done) adapts the ticker/stop-channel loop of artpromedia-email's
// reminder_worker.go; the Clock seam that lets tests
// drive time deterministically follows the teacher's own
// dependency-injection style (an interface parameter to the constructor,
// as with webdav.HTTPClient in caldav.NewClient).
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"calremind/internal/model"
)

// Clock abstracts time so tests can control it; RealClock is the
// production implementation.
type Clock interface {
	Now() time.Time
	// NewTimer returns a channel that fires once d has elapsed, and a
	// stop function to release its resources early.
	NewTimer(d time.Duration) (<-chan time.Time, func() bool)
}

// RealClock is the production Clock, backed by time.Now and time.NewTimer.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Loader reloads the pending-reminder queue; store.Store.GetNextReminders
// satisfies this.
type Loader func(ctx context.Context, now time.Time) ([]model.ReminderInstance, error)

// Dispatcher hands a due reminder instance off for delivery;
// dispatch.Sink.Dispatch satisfies this. Dispatch failures are logged by
// the caller and never stop the scheduler (spec.md §4.6).
type Dispatcher func(ctx context.Context, instance model.ReminderInstance) error

// Scheduler runs the Reminder Loop of spec.md §4.5.
type Scheduler struct {
	load     Loader
	dispatch Dispatcher
	clock    Clock
	refresh  time.Duration
	logger   zerolog.Logger
}

// New builds a Scheduler. refresh is the cadence R of spec.md §4.5.
func New(load Loader, dispatch Dispatcher, clock Clock, refresh time.Duration, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		load:     load,
		dispatch: dispatch,
		clock:    clock,
		refresh:  refresh,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run executes the Reminder Loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		queue, err := s.load(ctx, s.clock.Now())
		if err != nil {
			s.logger.Error().Err(err).Msg("loading next reminders")
		} else {
			cancelled, refreshed := s.drain(ctx, queue)
			if cancelled {
				return ctx.Err()
			}
			if refreshed {
				// The refresh deadline already elapsed inside drain;
				// reload straight away.
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.sleep(ctx, s.refresh):
			// refresh deadline elapsed with an empty or fully-drained
			// queue; reload.
		}
	}
}

// drain pops and dispatches every reminder in queue whose fire time has
// arrived, waiting between dispatches as needed. cancelled reports that the
// caller should stop because ctx was cancelled; refreshed reports that the
// refresh deadline elapsed before the front item's fire time, so the queue
// must be reloaded.
func (s *Scheduler) drain(ctx context.Context, queue []model.ReminderInstance) (cancelled, refreshed bool) {
	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return true, false
		default:
		}

		front := queue[0]
		now := s.clock.Now()

		if !front.FireTime.After(now) {
			queue = queue[1:]
			if err := s.dispatch(ctx, front); err != nil {
				s.logger.Error().Err(err).
					Int64("reminder_id", front.ReminderID).
					Str("room_id", front.RoomID).
					Msg("dispatch failed")
			}
			continue
		}

		untilFire := front.FireTime.Sub(now)
		untilRefresh := s.refresh
		refreshFirst := untilRefresh < untilFire
		wait := untilFire
		if refreshFirst {
			wait = untilRefresh
		}

		select {
		case <-ctx.Done():
			return true, false
		case <-s.sleep(ctx, wait):
			if refreshFirst {
				// Refresh deadline elapsed first: abandon this queue and
				// go back to step 1 (spec.md §4.5 step 2).
				return false, true
			}
			// Otherwise the front item's fire time elapsed; loop back
			// around to pop and dispatch it.
		}
	}
	return false, false
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- s.clock.Now()
		return ch
	}
	c, _ := s.clock.NewTimer(d)
	return c
}
