// Package calendar reads events from the external calendar collaborator and
// converts them into synthetic display tasks. It is strictly a read source;
// nothing flows back.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/models"
)

// DefaultBaseURL targets the Google Calendar v3 API.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

// EventTime is either a precise timestamp (DateTime) or an all-day date
// (Date); exactly one is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Event is one calendar event record.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

type eventsResponse struct {
	Items []Event `json:"items"`
}

// Source supplies events for a calendar over a date range.
type Source interface {
	Events(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)
}

// Client is an oauth2-authenticated HTTP calendar source.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient builds a calendar client around the given token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 15 * time.Second
	return &Client{http: httpClient, baseURL: baseURL, logger: logger}
}

// Events fetches the events of one calendar between from and to.
func (c *Client) Events(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	var body eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}

	c.logger.Debug("fetched_calendar_events",
		zap.String("calendar_id", calendarID),
		zap.Int("count", len(body.Items)),
	)
	return body.Items, nil
}

// SyntheticTasks converts events into display-only tasks for the given day.
// The tasks are flagged IsCalendarEvent so the scheduler excludes them from
// every mutation entry point and never persists them. All-day events span
// the whole scheduling window.
func SyntheticTasks(events []Event, ownerID, date string) []*models.Task {
	var out []*models.Task
	for _, ev := range events {
		start, duration, ok := eventWindow(ev, date)
		if !ok {
			continue
		}
		title := ev.Summary
		if title == "" {
			title = "(untitled event)"
		}
		out = append(out, &models.Task{
			ID:              "cal-" + ev.ID,
			OwnerID:         ownerID,
			Title:           title,
			TimeboxDate:     date,
			StartTime:       start,
			DurationMinutes: duration,
			Status:          models.TaskStatusPending,
			IsCalendarEvent: true,
			CalendarEventID: ev.ID,
		})
	}
	return out
}

// eventWindow resolves an event's start clock time and duration in minutes
// on the given day. All-day events cover the day; events on other days are
// skipped.
func eventWindow(ev Event, date string) (string, int, bool) {
	if ev.Start.Date != "" {
		if ev.Start.Date != date {
			return "", 0, false
		}
		return "00:00", 24 * 60, true
	}

	start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	if err != nil {
		return "", 0, false
	}
	if start.Format(models.DateLayout) != date {
		return "", 0, false
	}

	duration := 60
	if end, err := time.Parse(time.RFC3339, ev.End.DateTime); err == nil && end.After(start) {
		duration = int(end.Sub(start).Minutes())
	}
	return start.Format("15:04"), duration, true
}
