package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventInput represents the input for creating a calendar event.
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// EventSummary represents a created calendar event.
type EventSummary struct {
	ID       string
	Summary  string
	HTMLLink string
	Status   string
	Start    time.Time
	End      time.Time
}

// TimeRange represents a half-open time range [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether r and other share any instant.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// AnyOverlap reports whether r overlaps any of ranges.
func (r TimeRange) AnyOverlap(ranges []TimeRange) bool {
	for _, b := range ranges {
		if r.Overlaps(b) {
			return true
		}
	}
	return false
}

// toEventSummary converts a Google Calendar event to EventSummary
func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:       event.Id,
		Summary:  event.Summary,
		HTMLLink: event.HtmlLink,
		Status:   event.Status,
	}
	if event.Start != nil && event.Start.DateTime != "" {
		summary.Start, _ = time.Parse(time.RFC3339, event.Start.DateTime)
	}
	if event.End != nil && event.End.DateTime != "" {
		summary.End, _ = time.Parse(time.RFC3339, event.End.DateTime)
	}
	return summary
}
