package caldav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calremind/internal/model"
)

const multistatusFixture = `<?xml version="1.0" encoding="utf-8" ?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/cal/1.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"abc"</D:getetag>
        <C:calendar-data>BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:event-1
SUMMARY:Weekly sync
DTSTART:20240101T090000Z
END:VEVENT
END:VCALENDAR
</C:calendar-data>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/cal/2.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"def"</D:getetag>
        <C:calendar-data>BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:event-2
SUMMARY:Standup
END:VEVENT
END:VCALENDAR
</C:calendar-data>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestFetchExtractsEveryCalendarDataElement(t *testing.T) {
	var gotMethod, gotAuthUser string
	var gotAuthOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuthUser, _, gotAuthOK = r.BasicAuth()
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(multistatusFixture))
	}))
	defer srv.Close()

	pass := "secret"
	user := "alice"
	cal := model.Calendar{
		CalendarID: 1,
		URL:        srv.URL,
		UserName:   &user,
		Password:   &pass,
	}

	f := NewFetcher(srv.Client())
	bodies, err := f.Fetch(context.Background(), cal, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "REPORT", gotMethod)
	assert.True(t, gotAuthOK)
	assert.Equal(t, "alice", gotAuthUser)

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "UID:event-1")
	assert.Contains(t, bodies[1], "UID:event-2")
}

func TestFetchFailsOnNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	cal := model.Calendar{CalendarID: 1, URL: srv.URL}
	f := NewFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), cal, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestExtractCalendarDataIgnoresDepth(t *testing.T) {
	doc := `<a><b><calendar-data>one</calendar-data></b><c:calendar-data xmlns:c="x">two</c:calendar-data></a>`
	bodies, err := extractCalendarData([]byte(doc))
	require.NoError(t, err)
	require.Len(t, bodies, 2)
	assert.Equal(t, "one", strings.TrimSpace(bodies[0]))
	assert.Equal(t, "two", strings.TrimSpace(bodies[1]))
}
