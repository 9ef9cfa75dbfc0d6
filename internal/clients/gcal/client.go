// Package gcal reads upcoming events from a Google Calendar using a
// service-account key file.
package gcal

import (
	"context"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type Config struct {
	CredentialsFile string
	CalendarID      string // "primary" unless overridden
}

type Client struct {
	cfg Config
	svc *calendar.Service
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("gcal: init service: %w", err)
	}
	return &Client{cfg: cfg, svc: svc}, nil
}

// Event is the slice of a calendar entry the proximity integration needs.
type Event struct {
	Summary  string
	Location string
	Start    time.Time
}

// NextEventWithLocation returns the soonest upcoming event that carries a
// location string, or nil when none of the next few events has one.
func (c *Client) NextEventWithLocation(ctx context.Context) (*Event, error) {
	resp, err := c.svc.Events.List(c.cfg.CalendarID).
		MaxResults(5).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(time.Now().Format(time.RFC3339)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: list events: %w", err)
	}

	for _, item := range resp.Items {
		if item == nil || item.Location == "" {
			continue
		}
		return &Event{
			Summary:  item.Summary,
			Location: item.Location,
			Start:    eventStart(item),
		}, nil
	}
	return nil, nil
}

func eventStart(item *calendar.Event) time.Time {
	if item.Start == nil {
		return time.Time{}
	}
	if item.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
			return t
		}
	}
	if item.Start.Date != "" {
		if t, err := time.Parse("2006-01-02", item.Start.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
