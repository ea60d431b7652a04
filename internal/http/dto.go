package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/meetgrid/internal/application"
)

const timestampMessage = "must be an RFC 3339 timestamp"

type sessionDTO struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type participantDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	CreatedAt string `json:"created_at"`
}

type sessionResponse struct {
	Session      sessionDTO       `json:"session"`
	Participants []participantDTO `json:"participants"`
}

type intervalDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type windowRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// publishRequest.Busy is a pointer so a missing or null list is rejected
// while an explicit empty list clears the participant's busy time.
type publishRequest struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Busy *[]intervalDTO `json:"busy"`
}

type slotDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Count int    `json:"count"`
}

type aggregatedResponse struct {
	Slots        []slotDTO `json:"slots"`
	Participants int       `json:"participants"`
}

type busyResponse struct {
	Busy []intervalDTO `json:"busy"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp returns the zero time for an empty value so that the
// service reports the field as required.
func parseTimestamp(field, value string, vErr *application.ValidationError) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		addFieldError(vErr, field, timestampMessage)
		return time.Time{}
	}
	return t
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	vErr.FieldErrors[field] = message
}

func parseWindow(from, to string, vErr *application.ValidationError) application.Window {
	return application.Window{
		Start: parseTimestamp("from", from, vErr),
		End:   parseTimestamp("to", to, vErr),
	}
}

func (req publishRequest) toBusy(vErr *application.ValidationError) []application.BusyInterval {
	if req.Busy == nil {
		addFieldError(vErr, "busy", "is required")
		return nil
	}
	busy := make([]application.BusyInterval, 0, len(*req.Busy))
	for i, interval := range *req.Busy {
		field := fmt.Sprintf("busy[%d]", i)
		start := parseTimestamp(field, interval.Start, vErr)
		end := parseTimestamp(field, interval.End, vErr)
		busy = append(busy, application.BusyInterval{Start: start, End: end})
	}
	return busy
}

func toSessionResponse(details application.SessionDetails) sessionResponse {
	participants := make([]participantDTO, 0, len(details.Participants))
	for _, p := range details.Participants {
		participants = append(participants, participantDTO{
			ID:          p.ID,
			Email:       p.Email,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
		})
	}
	return sessionResponse{
		Session:      sessionDTO{ID: details.Session.ID, CreatedAt: formatTime(details.Session.CreatedAt)},
		Participants: participants,
	}
}

func toAggregatedResponse(result application.AggregatedAvailability) aggregatedResponse {
	slots := make([]slotDTO, 0, len(result.Slots))
	for _, slot := range result.Slots {
		slots = append(slots, slotDTO{Start: formatTime(slot.Start), End: formatTime(slot.End), Count: slot.Count})
	}
	return aggregatedResponse{Slots: slots, Participants: result.ParticipantCount}
}

func toIntervalDTOs(busy []application.BusyInterval) []intervalDTO {
	out := make([]intervalDTO, 0, len(busy))
	for _, b := range busy {
		out = append(out, intervalDTO{Start: formatTime(b.Start), End: formatTime(b.End)})
	}
	return out
}
