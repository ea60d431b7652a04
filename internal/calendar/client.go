// Package calendar reads busy intervals from Google Calendar's freebusy API.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ReadOnlyScope is the OAuth scope required for freebusy queries.
const ReadOnlyScope = calendarapi.CalendarReadonlyScope

// PrimaryCalendar identifies the signed-in user's default calendar.
const PrimaryCalendar = "primary"

// ErrUnauthorized is returned when Google rejects the access token.
var ErrUnauthorized = errors.New("calendar: unauthorized")

// Interval is a half-open busy range reported by the provider.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Client queries freebusy information on behalf of one user per call.
type Client struct {
	calendarID string
	options    []option.ClientOption
}

// NewClient returns a client reading the primary calendar. The options are
// applied to every underlying service, e.g. option.WithEndpoint in tests.
func NewClient(opts ...option.ClientOption) *Client {
	return &Client{calendarID: PrimaryCalendar, options: opts}
}

// WithCalendarID returns a copy of the client reading another calendar.
func (c *Client) WithCalendarID(id string) *Client {
	clone := *c
	clone.calendarID = id
	return &clone
}

// QueryFreeBusy returns the busy intervals between start and end using the
// provided token. The token is used as is and never refreshed here.
func (c *Client) QueryFreeBusy(ctx context.Context, token *oauth2.Token, start, end time.Time) ([]Interval, error) {
	if token == nil || token.AccessToken == "" {
		return nil, ErrUnauthorized
	}

	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, c.options...)
	svc, err := calendarapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	query := &calendarapi.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*calendarapi.FreeBusyRequestItem{{Id: c.calendarID}},
	}

	result, err := svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}

	cal, ok := result.Calendars[c.calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar: no freebusy data for %q", c.calendarID)
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			if e.Reason == "authError" {
				return nil, ErrUnauthorized
			}
			reasons = append(reasons, e.Reason)
		}
		return nil, fmt.Errorf("calendar: %s: %s", c.calendarID, strings.Join(reasons, ", "))
	}

	busy := make([]Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		s, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy start %q: %w", period.Start, err)
		}
		e, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: parse busy end %q: %w", period.End, err)
		}
		busy = append(busy, Interval{Start: s, End: e})
	}
	return busy, nil
}

// authReasons are the 403 reasons that mean the grant itself is refused.
// Other 403s, such as quota and rate limits, are provider failures.
var authReasons = map[string]bool{
	"authError":               true,
	"insufficientPermissions": true,
	"forbidden":               true,
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case http.StatusForbidden:
			for _, item := range apiErr.Errors {
				if authReasons[item.Reason] {
					return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
				}
			}
		}
	}
	return fmt.Errorf("failed to query freebusy: %w", err)
}
