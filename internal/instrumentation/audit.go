package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/telecal/internal/logging"
)

// BookingRecord captures one booking confirmation for the audit log.
type BookingRecord struct {
	UserID     string
	ChatID     int64
	Start      time.Time
	Title      string
	EventID    string
	BookingRef string
	Result     string
	Error      string
	TraceID    string
}

// NewBookingRecord starts a record for userID.
func NewBookingRecord(ctx context.Context, userID string, chatID int64) *BookingRecord {
	return &BookingRecord{
		UserID:  userID,
		ChatID:  chatID,
		TraceID: GetTraceID(ctx),
	}
}

// Complete sets the outcome. A non-nil err is recorded as text.
func (r *BookingRecord) Complete(result string, err error) *BookingRecord {
	r.Result = result
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (r *BookingRecord) attrs(includeUserID bool) []any {
	attrs := []any{
		logging.Chat(r.ChatID),
		slog.String("result", r.Result),
	}
	if includeUserID {
		attrs = append(attrs, slog.String("user_id", r.UserID))
	} else {
		attrs = append(attrs, logging.UserHash(r.UserID))
	}
	if !r.Start.IsZero() {
		attrs = append(attrs, slog.Time("start", r.Start))
	}
	if r.Title != "" {
		attrs = append(attrs, slog.String("title", r.Title))
	}
	if r.EventID != "" {
		attrs = append(attrs, slog.String("event_id", r.EventID))
	}
	if r.BookingRef != "" {
		attrs = append(attrs, slog.String("booking_ref", r.BookingRef))
	}
	if r.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", r.TraceID))
	}
	if r.Error != "" {
		attrs = append(attrs, slog.String("error", r.Error))
	}
	return attrs
}

// AuditLogger writes one structured line per booking confirmation.
type AuditLogger struct {
	logger *slog.Logger
	config AuditConfig
}

// NewAuditLogger creates an AuditLogger. A nil logger uses slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger.With("component", "audit"), config: config}
}

// LogBooking logs r. Created bookings log at info, everything else at warn.
// Safe on a nil AuditLogger.
func (a *AuditLogger) LogBooking(r *BookingRecord) {
	if a == nil || !a.config.Enabled {
		return
	}
	if r.Result == BookingCreated || r.Result == BookingDeclined {
		a.logger.Info("booking_audit", r.attrs(a.config.IncludeUserID)...)
		return
	}
	a.logger.Warn("booking_audit", r.attrs(a.config.IncludeUserID)...)
}
