// Package caldav implements the Calendar Fetcher (spec.md §4.1): it issues
// a CalDAV REPORT query against a calendar's URL and extracts the embedded
// iCalendar bodies from the XML multistatus response.
//
// It is adapted from the teacher emersion/go-webdav's caldav/client.go
// QueryCalendar, collapsed to the single query shape this service needs,
// and generalised to scan for calendar-data by local name regardless of
// nesting depth (emersion/go-webdav decodes a typed MultiStatus; we don't
// need the rest of that structure, only the calendar-data text nodes).
package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"calremind/internal/davclient"
	"calremind/internal/model"
)

// Fetcher issues CalDAV REPORT queries.
type Fetcher struct {
	client *davclient.Client
}

// NewFetcher returns a Fetcher using httpClient, or http.DefaultClient if
// httpClient is nil.
func NewFetcher(httpClient davclient.HTTPClient) *Fetcher {
	return &Fetcher{client: davclient.New(httpClient)}
}

// Fetch issues a calendar-query REPORT against cal's URL, filtered to
// VEVENTs starting at now or later, and returns the raw iCalendar body of
// every calendar-data element in the response, regardless of its nesting
// depth in the returned XML document.
//
// A non-2xx status or a network/XML failure fails the whole fetch. An
// individual calendar-data body that isn't well-formed iCalendar is not
// caught here: ics.Decode returns an error for it, and the Sync Loop
// (sync.Loop) logs and skips that body without failing the rest of the
// sync.
func (f *Fetcher) Fetch(ctx context.Context, cal model.Calendar, now time.Time) ([]string, error) {
	reqBody, err := encodeCalendarQuery(now)
	if err != nil {
		return nil, fmt.Errorf("caldav: encoding query: %w", err)
	}

	user, pass, hasAuth := cal.BasicAuth()
	respBody, err := f.client.Report(ctx, "REPORT", cal.URL, reqBody, user, pass, hasAuth)
	if err != nil {
		return nil, err
	}

	return extractCalendarData(respBody)
}

// extractCalendarData scans body for every XML element whose local name is
// "calendar-data" and returns its text content, regardless of depth or
// namespace prefix.
func extractCalendarData(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var bodies []string
	var buf bytes.Buffer
	depth := 0
	inCalendarData := -1

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("caldav: decoding response xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "calendar-data" && inCalendarData < 0 {
				inCalendarData = depth
				buf.Reset()
			}
		case xml.CharData:
			if inCalendarData >= 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			if inCalendarData == depth {
				bodies = append(bodies, buf.String())
				inCalendarData = -1
			}
			depth--
		}
	}

	return bodies, nil
}
