package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPSender is a minimal ChatSender that POSTs a JSON payload to a
// configurable webhook, one room_id substitution away from any chat
// transport that accepts "room + text" over HTTP. The actual chat
// transport (e.g. Matrix) is an external collaborator (spec.md §1's "Out
// of scope: ... the chat-send transport used to deliver reminders"); this
// is the narrowest concrete seam satisfying the ChatSender interface so
// the service can run end to end without one.
//
// It reuses the teacher's request/response shape from
// internal/davclient.Client: build request, execute, check status.
type HTTPSender struct {
	client     *http.Client
	webhookURL string
}

// NewHTTPSender returns a sender that POSTs to webhookURL.
func NewHTTPSender(client *http.Client, webhookURL string) *HTTPSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSender{client: client, webhookURL: webhookURL}
}

type webhookPayload struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, roomID, message string) error {
	body, err := json.Marshal(webhookPayload{RoomID: roomID, Message: message})
	if err != nil {
		return fmt.Errorf("dispatch: encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("dispatch: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

var _ ChatSender = (*HTTPSender)(nil)
