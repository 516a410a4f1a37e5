package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/telecal/internal/google"
	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
)

// ErrInvalidRange is returned when an event or query ends before it starts.
var ErrInvalidRange = errors.New("end must be after start")

// Config configures the Calendar client.
type Config struct {
	// CalendarID is the target calendar (default: "primary").
	CalendarID string

	// Location is the time zone events are created in (default: UTC).
	Location *time.Location

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Client wraps the Google Calendar service on behalf of chat users. Each call
// builds a service from the user's stored credential.
type Client struct {
	tokens google.TokenProvider
	cfg    Config
	opts   []option.ClientOption
	logger *slog.Logger
}

// NewClient creates a Calendar client. opts are appended to every service
// construction, which lets tests point the client at a fake endpoint.
func NewClient(tokens google.TokenProvider, cfg Config, opts ...option.ClientOption) *Client {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		tokens: tokens,
		cfg:    cfg,
		opts:   opts,
		logger: logging.WithService(logger, instrumentation.ServiceCalendar),
	}
}

// HasToken reports whether userID has a stored credential.
func (c *Client) HasToken(ctx context.Context, userID string) (bool, error) {
	return c.tokens.HasToken(ctx, userID)
}

func (c *Client) service(ctx context.Context, userID string) (*calendar.Service, error) {
	ts, err := c.tokens.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}

	opts := make([]option.ClientOption, 0, len(c.opts)+1)
	opts = append(opts, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	opts = append(opts, c.opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

func (c *Client) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, op)
	return ctx, func(err error) {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.cfg.Metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, op, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}
}

// CreateEvent inserts an event titled title into the configured calendar and
// returns its id. A missing credential or failed refresh yields an error
// wrapping google.ErrUnauthorized; an API rejection yields a
// *google.ProviderError.
func (c *Client) CreateEvent(ctx context.Context, userID, title string, start, end time.Time) (string, error) {
	created, err := c.Insert(ctx, userID, EventInput{Summary: title, Start: start, End: end})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// Insert creates the event described by input.
func (c *Client) Insert(ctx context.Context, userID string, input EventInput) (summary *EventSummary, err error) {
	if !input.End.After(input.Start) {
		return nil, ErrInvalidRange
	}

	ctx, done := c.observe(ctx, instrumentation.OperationInsert)
	defer func() { done(err) }()

	svc, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	tz := c.cfg.Location.String()
	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.In(c.cfg.Location).Format(time.RFC3339),
			TimeZone: tz,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.In(c.cfg.Location).Format(time.RFC3339),
			TimeZone: tz,
		},
	}

	created, err := svc.Events.Insert(c.cfg.CalendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, google.WrapAPIError(instrumentation.ServiceCalendar, instrumentation.OperationInsert, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String(instrumentation.SpanAttrResourceID, created.Id))
	c.logger.Debug("event created",
		logging.UserHash(userID),
		slog.String("event_id", created.Id))

	s := toEventSummary(created)
	return &s, nil
}

// BusyRanges returns the busy intervals of the configured calendar between
// from and to.
func (c *Client) BusyRanges(ctx context.Context, userID string, from, to time.Time) (ranges []TimeRange, err error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}

	ctx, done := c.observe(ctx, instrumentation.OperationFreeBusy)
	defer func() { done(err) }()

	svc, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := &calendar.FreeBusyRequest{
		TimeMin:  from.Format(time.RFC3339),
		TimeMax:  to.Format(time.RFC3339),
		TimeZone: c.cfg.Location.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: c.cfg.CalendarID}},
	}

	result, err := svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, google.WrapAPIError(instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy, err)
	}

	for calID, cal := range result.Calendars {
		if len(cal.Errors) > 0 {
			return nil, &google.ProviderError{
				Service: instrumentation.ServiceCalendar,
				Op:      instrumentation.OperationFreeBusy,
				Err:     fmt.Errorf("calendar %s: %s", calID, cal.Errors[0].Reason),
			}
		}
		for _, busy := range cal.Busy {
			start, errStart := time.Parse(time.RFC3339, busy.Start)
			end, errEnd := time.Parse(time.RFC3339, busy.End)
			if errStart != nil || errEnd != nil {
				continue
			}
			ranges = append(ranges, TimeRange{Start: start, End: end})
		}
	}
	return ranges, nil
}
