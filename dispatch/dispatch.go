// Package dispatch implements the Dispatch Sink (spec.md §4.6): it renders
// a ReminderInstance into a chat message (from the reminder's own template,
// or a default) and hands it to the external chat transport via ChatSender.
//
// The field set it renders — summary, location, description, and an
// attendee list with each email resolved through the user mapping — is
// grounded on original_source/src/database.rs's ReminderInstance, whose
// fields are already fully resolved at query time rather than requiring a
// second join at render time.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"calremind/internal/model"
)

// ChatSender is the external chat transport (spec.md §6: "a chat transport
// exposing send(room_id, message)").
type ChatSender interface {
	Send(ctx context.Context, roomID, message string) error
}

const defaultTemplateText = `{{.Summary}}{{if .Location}} @ {{.Location}}{{end}}` +
	`{{if .Description}}

{{.Description}}{{end}}` +
	`{{if .Attendees}}

Attendees: {{.Attendees}}{{end}}`

var defaultTemplate = template.Must(template.New("default").Parse(defaultTemplateText))

// renderData is the view exposed to a reminder's template.
type renderData struct {
	Summary       string
	Description   string
	Location      string
	MinutesBefore int64
	Attendees     string
}

// Sink formats and dispatches ReminderInstances.
type Sink struct {
	sender       ChatSender
	userMappings func(ctx context.Context) (map[string]string, error)
	logger       zerolog.Logger
}

// New builds a Sink. userMappings resolves the email -> chat id table on
// every dispatch so freshly-added mappings are picked up without a
// restart; store.Store.GetUserMappings satisfies this.
func New(sender ChatSender, userMappings func(ctx context.Context) (map[string]string, error), logger zerolog.Logger) *Sink {
	return &Sink{
		sender:       sender,
		userMappings: userMappings,
		logger:       logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch renders instance and sends it to instance.RoomID. A render or
// send failure is returned to the caller (spec.md §4.6: logged by the
// scheduler, never blocking it) rather than panicking.
func (s *Sink) Dispatch(ctx context.Context, instance model.ReminderInstance) error {
	mappings, err := s.userMappings(ctx)
	if err != nil {
		return fmt.Errorf("dispatch: loading user mappings: %w", err)
	}

	message, err := Render(instance, mappings)
	if err != nil {
		return fmt.Errorf("dispatch: rendering reminder %d: %w", instance.ReminderID, err)
	}

	if err := s.sender.Send(ctx, instance.RoomID, message); err != nil {
		return fmt.Errorf("dispatch: sending reminder %d to %s: %w", instance.ReminderID, instance.RoomID, err)
	}

	s.logger.Info().
		Int64("reminder_id", instance.ReminderID).
		Str("room_id", instance.RoomID).
		Msg("dispatched reminder")
	return nil
}

// Render formats instance using its own template, or the package default
// if it has none, resolving each attendee's email through mappings.
func Render(instance model.ReminderInstance, mappings map[string]string) (string, error) {
	tmpl := defaultTemplate
	if instance.Template != nil && strings.TrimSpace(*instance.Template) != "" {
		parsed, err := template.New("reminder").Parse(*instance.Template)
		if err != nil {
			return "", fmt.Errorf("parsing template: %w", err)
		}
		tmpl = parsed
	}

	data := renderData{
		MinutesBefore: instance.MinutesBefore,
		Attendees:     formatAttendees(instance.Attendees, mappings),
	}
	if instance.Summary != nil {
		data.Summary = *instance.Summary
	}
	if instance.Description != nil {
		data.Description = *instance.Description
	}
	if instance.Location != nil {
		data.Location = *instance.Location
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

func formatAttendees(attendees []model.Attendee, mappings map[string]string) string {
	parts := make([]string, 0, len(attendees))
	for _, a := range attendees {
		name := a.Email
		if a.CommonName != nil && *a.CommonName != "" {
			name = *a.CommonName
		}
		if chatID, ok := mappings[a.Email]; ok {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, chatID))
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}
