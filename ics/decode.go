// Package ics implements the ICS Decoder (spec.md §4.2): it parses a stream
// of possibly-concatenated iCalendar VCALENDAR components into structured
// VCalendar values, using github.com/emersion/go-ical the same way the
// teacher emersion/go-webdav's caldav package does
// (ical.NewDecoder(r).Decode()).
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"
)

// VCalendar is one decoded VCALENDAR component: its raw events indexed by
// UID, in the order they were read.
type VCalendar struct {
	Calendar *ical.Calendar
	// Events maps UID to the event's master VEvent wrapper. A calendar
	// body with duplicate master UIDs keeps the last one, matching map
	// semantics; this is not a concern spec.md calls out. Per-occurrence
	// RECURRENCE-ID overrides never populate this map — they carry the
	// same UID as their master but describe one modified instance, not
	// the event itself (expand.collectOverrides folds them back in by
	// timestamp from cal.Calendar.Children directly).
	Events map[string]*ical.Event
	// UIDs preserves decode order, since map iteration order is
	// undefined and the Instance Expander's output should not depend on
	// it beyond "doesn't sort" (spec.md §4.3).
	UIDs []string
}

// Decode parses body as one or more concatenated iCalendar VCALENDAR
// streams and returns each as a VCalendar. A body that isn't well-formed
// iCalendar is a parse error; the caller (the Sync Loop) is responsible for
// logging and skipping it without failing the rest of the sync, per
// spec.md §4.1/§7.
func Decode(body string) ([]VCalendar, error) {
	dec := ical.NewDecoder(bytes.NewReader([]byte(body)))

	var out []VCalendar
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ics: decoding calendar: %w", err)
		}

		out = append(out, newVCalendar(cal))
	}

	return out, nil
}

func newVCalendar(cal *ical.Calendar) VCalendar {
	v := VCalendar{
		Calendar: cal,
		Events:   make(map[string]*ical.Event),
	}

	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		event := &ical.Event{Component: child}
		uidProp := event.Props.Get(ical.PropUID)
		if uidProp == nil || uidProp.Value == "" {
			continue
		}
		// A RECURRENCE-ID component is a per-occurrence override, not the
		// event's master definition; it must never displace the master
		// in Events, or the whole UID looks override-only and gets
		// dropped downstream (spec.md §4.3 step 3).
		if event.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		uid := uidProp.Value
		if _, exists := v.Events[uid]; !exists {
			v.UIDs = append(v.UIDs, uid)
		}
		v.Events[uid] = event
	}

	return v
}

// IsFullDayEvent reports whether event's DTSTART/DTEND are date-only
// values (spec.md §4.2, §3 invariant 5).
func IsFullDayEvent(event *ical.Event) bool {
	prop := event.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return false
	}
	return prop.ValueType() == ical.ValueDate
}

// IsFloatingEvent reports whether event's DTSTART carries a datetime value
// with no attached time zone information (spec.md §4.2, §3 invariant 5).
func IsFloatingEvent(event *ical.Event) bool {
	prop := event.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return false
	}
	if prop.ValueType() == ical.ValueDate {
		return false
	}
	if _, ok := prop.Params["TZID"]; ok {
		return false
	}
	// A trailing "Z" means UTC, which is not floating.
	return !strings.HasSuffix(prop.Value, "Z")
}
