package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/calendar"
)

// FreeBusyQuerier is the calendar client operation used for fetching.
type FreeBusyQuerier interface {
	QueryFreeBusy(ctx context.Context, token *oauth2.Token, start, end time.Time) ([]calendar.Interval, error)
}

// CalendarFetcher reads busy intervals from Google Calendar for the
// application layer.
type CalendarFetcher struct {
	client FreeBusyQuerier
}

// NewCalendarFetcher wraps client.
func NewCalendarFetcher(client FreeBusyQuerier) *CalendarFetcher {
	return &CalendarFetcher{client: client}
}

var _ application.BusyFetcher = (*CalendarFetcher)(nil)

// FetchBusy queries the participant's calendar. A rejected token yields
// application.ErrNotAuthenticated.
func (f *CalendarFetcher) FetchBusy(ctx context.Context, credential application.Credential, window application.Window) ([]application.BusyInterval, error) {
	token := &oauth2.Token{
		AccessToken: credential.AccessToken,
		TokenType:   credential.TokenType,
		Expiry:      credential.Expiry,
	}

	intervals, err := f.client.QueryFreeBusy(ctx, token, window.Start, window.End)
	if err != nil {
		if errors.Is(err, calendar.ErrUnauthorized) {
			return nil, fmt.Errorf("%w: %v", application.ErrNotAuthenticated, err)
		}
		return nil, err
	}

	busy := make([]application.BusyInterval, 0, len(intervals))
	for _, interval := range intervals {
		busy = append(busy, application.BusyInterval{Start: interval.Start, End: interval.End})
	}
	return busy, nil
}
