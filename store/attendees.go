package store

import (
	"encoding/json"
	"sort"

	"calremind/internal/model"
)

// attendeesToJSON/attendeesFromJSON serialise the per-instance attendee
// list for the next_dates.attendees column. original_source stores this as
// a native Postgres composite array; jsonb is the portable equivalent and
// keeps PGStore free of a generated composite-type binding.
func attendeesToJSON(attendees []model.Attendee) []byte {
	b, err := json.Marshal(attendees)
	if err != nil {
		// model.Attendee has no unmarshalable fields; this cannot fail.
		panic(err)
	}
	return b
}

func attendeesFromJSON(data []byte) ([]model.Attendee, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []model.Attendee
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortByFireTime(instances []model.ReminderInstance) {
	sort.SliceStable(instances, func(i, j int) bool {
		return instances[i].FireTime.Before(instances[j].FireTime)
	})
}
