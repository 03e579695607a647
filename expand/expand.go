// Package expand implements the Instance Expander (spec.md §4.3): for each
// VEVENT decoded by ics.Decode, it produces the Event row and the bounded,
// lazily-generated set of future instances within the horizon, including
// resolved non-declined mailto: attendees.
//
// The recurrence iteration is grounded on github.com/teambition/rrule-go
// (via go-ical's Component.RecurrenceSet, the same call the teacher's
// caldav/match.go uses for its own time-range matching), which exposes a
// lazy, potentially-infinite Iterator — exactly the shape spec.md §9 calls
// for so an unbounded FREQ=DAILY RRULE doesn't force unbounded work.
package expand

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"calremind/ics"
	"calremind/internal/model"
)

// DefaultHorizonDays is the default bounded future window instances are materialised
// within (spec.md §3 invariant 4, §9's horizon_days config option).
const DefaultHorizonDays = 30

// Expand walks every VCalendar decoded for calendarID and returns the
// Event rows (one per non-skipped UID) and the EventInstances within
// [now, now+horizon) (spec.md §3 invariants 3 and 4; half-open per §4.3).
//
// Full-day and floating events are skipped entirely from the instance
// stream but still produce an Event row (spec.md §3 invariant 5, §8
// property 2).
func Expand(calendarID int64, calendars []ics.VCalendar, now time.Time, horizon time.Duration) ([]model.Event, []model.EventInstance) {
	if horizon <= 0 {
		horizon = time.Duration(DefaultHorizonDays) * 24 * time.Hour
	}
	horizonEnd := now.Add(horizon)

	var events []model.Event
	var instances []model.EventInstance

	for _, cal := range calendars {
		overridesByUID := collectOverrides(cal)

		for _, uid := range cal.UIDs {
			base := cal.Events[uid]
			if base == nil || hasRecurrenceID(base) {
				// Override-only components (RECURRENCE-ID set) are not
				// base events; they're folded in via overridesByUID.
				continue
			}

			if ics.IsFullDayEvent(base) || ics.IsFloatingEvent(base) {
				events = append(events, eventRow(calendarID, uid, base))
				continue
			}

			events = append(events, eventRow(calendarID, uid, base))

			overrides := overridesByUID[uid]
			for _, occ := range occurrences(base, now, horizonEnd) {
				effective := base
				if ov, ok := overrides[occ.Unix()]; ok {
					effective = ov
				}

				instances = append(instances, model.EventInstance{
					CalendarID: calendarID,
					EventID:    uid,
					Date:       withFixedOffset(occ),
					Attendees:  attendeesOf(effective),
				})
			}
		}
	}

	return events, instances
}

func eventRow(calendarID int64, uid string, event *ical.Event) model.Event {
	return model.Event{
		CalendarID:  calendarID,
		EventID:     uid,
		Summary:     textProp(event, ical.PropSummary),
		Description: textProp(event, ical.PropDescription),
		Location:    textProp(event, ical.PropLocation),
	}
}

func textProp(event *ical.Event, name string) *string {
	prop := event.Props.Get(name)
	if prop == nil || prop.Value == "" {
		return nil
	}
	v := prop.Value
	return &v
}

func hasRecurrenceID(event *ical.Event) bool {
	return event.Props.Get(ical.PropRecurrenceID) != nil
}

// collectOverrides groups RECURRENCE-ID VEVENTs in cal by the base UID and
// the instant they override, so expand can take that single occurrence's
// ATTENDEE list from the override. Only the attendees are taken from it:
// the instance keeps the recurrence instant it overrides, so a moved
// DTSTART in the override is not applied.
func collectOverrides(cal ics.VCalendar) map[string]map[int64]*ical.Event {
	out := make(map[string]map[int64]*ical.Event)
	for _, child := range cal.Calendar.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		event := &ical.Event{Component: child}
		recurrenceIDProp := event.Props.Get(ical.PropRecurrenceID)
		if recurrenceIDProp == nil {
			continue
		}
		uidProp := event.Props.Get(ical.PropUID)
		if uidProp == nil {
			continue
		}
		recID, err := recurrenceIDProp.DateTime(time.UTC)
		if err != nil {
			continue
		}
		if out[uidProp.Value] == nil {
			out[uidProp.Value] = make(map[int64]*ical.Event)
		}
		out[uidProp.Value][recID.Unix()] = event
	}
	return out
}

// occurrences lazily walks event's recurrence set (or its single DTSTART,
// for non-recurring events), discarding instants strictly before now and
// stopping at the first instant not strictly before horizonEnd (spec.md
// §4.3 step 4). The iterator's own monotonic non-decreasing order is
// preserved; this function never sorts.
func occurrences(event *ical.Event, now, horizonEnd time.Time) []time.Time {
	var rset *rrule.Set
	var err error
	rset, err = event.Component.RecurrenceSet(time.UTC)
	if err != nil || rset == nil {
		start, err := event.DateTimeStart(time.UTC)
		if err != nil {
			return nil
		}
		if start.Before(now) || !start.Before(horizonEnd) {
			return nil
		}
		return []time.Time{start}
	}

	var out []time.Time
	next := rset.Iterator()
	for {
		t, ok := next()
		if !ok {
			break
		}
		if t.Before(now) {
			continue
		}
		if !t.Before(horizonEnd) {
			break
		}
		out = append(out, t)
	}
	return out
}

// attendeesOf scans event's ATTENDEE properties and keeps only mailto:
// attendees who have not declined (spec.md §4.3 step 5, §8 property 3).
func attendeesOf(event *ical.Event) []model.Attendee {
	var out []model.Attendee
	for _, prop := range event.Props.Values(ical.PropAttendee) {
		prop := prop
		email, ok := mailtoEmail(prop.Value)
		if !ok {
			continue
		}

		if status := prop.Params.Get(ical.ParamParticipationStatus); status == "DECLINED" {
			continue
		}

		var cn *string
		if name := prop.Params.Get(ical.ParamCN); name != "" {
			cn = &name
		}

		out = append(out, model.Attendee{Email: email, CommonName: cn})
	}
	return out
}

func mailtoEmail(uri string) (string, bool) {
	const prefix = "mailto:"
	if len(uri) <= len(prefix) || !strings.EqualFold(uri[:len(prefix)], prefix) {
		return "", false
	}
	return uri[len(prefix):], true
}

// withFixedOffset converts t to a time.Time in a fixed-offset zone
// matching the offset in effect at t, per spec.md §3's "the timestamp
// carries a fixed offset (the event's original zone)".
func withFixedOffset(t time.Time) time.Time {
	name, offset := t.Zone()
	if name == "" {
		name = fmt.Sprintf("UTC%+03d", offset/3600)
	}
	return t.In(time.FixedZone(name, offset))
}
