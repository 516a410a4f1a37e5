package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/telecal/internal/calendar"
	"github.com/teemow/telecal/internal/config"
	"github.com/teemow/telecal/internal/google"
	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
)

const (
	msgAuthorize     = "To book a meeting, allow access to your Google Calendar:\n%s\n\nSend /start again when you are done."
	msgReauthorize   = "Your Google authorization is no longer valid."
	msgAuthorized    = "Google Calendar access granted. Send /start to pick a date."
	msgPickDate      = "Pick a date:"
	msgPickTime      = "Pick a time on %s:"
	msgNoSlots       = "No free slots on %s. Go back and pick another day."
	msgSlotTaken     = "That time is no longer available. Pick another time on %s:"
	msgConfirm       = "Book %q on %s at %s?"
	msgBooked        = "Booked %q on %s at %s."
	msgBookingFailed = "Could not create the event. Try again?"
	msgLogFailed     = "The meeting is booked, but it could not be added to the booking log."
	msgDeclined      = "Booking cancelled. Send /start to begin again."
	msgCancelled     = "Cancelled. Send /start to begin again."
	msgNothingToStop = "Nothing to cancel. Send /start to book a meeting."
	msgTryLater      = "Something went wrong. Please try again later."
	msgHelp          = "/start - book a meeting in your Google Calendar\n/cancel - abandon the current booking\n/help - show this message"

	dateDisplayLayout = "Mon, 02 Jan 2006"
)

// Messenger sends requests to the chat platform. *tgbotapi.BotAPI
// satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Calendar books events on behalf of chat users. *calendar.Client
// satisfies it.
type Calendar interface {
	HasToken(ctx context.Context, userID string) (bool, error)
	CreateEvent(ctx context.Context, userID, title string, start, end time.Time) (string, error)
	BusyRanges(ctx context.Context, userID string, from, to time.Time) ([]calendar.TimeRange, error)
}

// BookingLog records confirmed bookings. *sheets.Client satisfies it.
type BookingLog interface {
	AppendRow(ctx context.Context, values []string) error
}

// Config holds the dependencies and booking defaults of a Controller.
type Config struct {
	Messenger Messenger
	Calendar  Calendar

	// BookingLog is optional; nil disables booking logging.
	BookingLog BookingLog

	// AuthorizeURL returns the authorization link for a chat user.
	AuthorizeURL func(userID string) string

	Title    string
	Duration time.Duration
	Slots    []string
	Location *time.Location

	// Now defaults to time.Now.
	Now func() time.Time

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Controller runs the booking conversation for every chat. Updates are
// handled one at a time by Run; NotifyAuthorized may be called concurrently.
type Controller struct {
	messenger    Messenger
	cal          Calendar
	bookingLog   BookingLog
	authorizeURL func(string) string

	title    string
	duration time.Duration
	slots    []string
	loc      *time.Location
	now      func() time.Time

	sessions *sessions
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
}

// New creates a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if cfg.Calendar == nil {
		return nil, fmt.Errorf("calendar is required")
	}
	if cfg.AuthorizeURL == nil {
		return nil, fmt.Errorf("authorize URL builder is required")
	}
	if cfg.Title == "" {
		cfg.Title = "Meeting"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Hour
	}
	if len(cfg.Slots) == 0 {
		cfg.Slots = config.DefaultSlots()
	}
	for _, slot := range cfg.Slots {
		if _, err := time.Parse(slotLayout, slot); err != nil {
			return nil, fmt.Errorf("invalid slot %q: want HH:MM", slot)
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		messenger:    cfg.Messenger,
		cal:          cfg.Calendar,
		bookingLog:   cfg.BookingLog,
		authorizeURL: cfg.AuthorizeURL,
		title:        cfg.Title,
		duration:     cfg.Duration,
		slots:        cfg.Slots,
		loc:          cfg.Location,
		now:          cfg.Now,
		sessions:     newSessions(cfg.Metrics),
		logger:       logger.With("component", "bot"),
		metrics:      cfg.Metrics,
		audit:        cfg.Audit,
	}, nil
}

// Commands returns the command menu advertised to chat clients.
func Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Book a meeting"},
		{Command: "cancel", Description: "Abandon the current booking"},
		{Command: "help", Description: "Show help"},
	}
}

// Session returns a copy of the conversation state of chatID.
func (c *Controller) Session(chatID int64) (Session, bool) {
	return c.sessions.get(chatID)
}

// State returns the conversation state of chatID; chats without a session
// are in StateStart.
func (c *Controller) State(chatID int64) State {
	sess, ok := c.sessions.get(chatID)
	if !ok {
		return StateStart
	}
	return sess.State
}

// Run handles updates in arrival order until ctx is done or updates is
// closed.
func (c *Controller) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes a single update. Failures are reported to the chat
// and logged; they never stop the caller's loop.
func (c *Controller) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	kind, action := classify(update)
	start := time.Now()
	ctx, span := instrumentation.StartUpdateSpan(ctx, kind, action)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling update %d: %v", update.UpdateID, r)
		}
		if err != nil {
			c.logger.Warn("update failed",
				slog.Int("update_id", update.UpdateID),
				slog.String("kind", kind),
				slog.String("action", action),
				logging.Err(err))
		}
		if chat := update.FromChat(); chat != nil {
			span.SetAttributes(attribute.String(instrumentation.SpanAttrState, c.State(chat.ID).String()))
		}
		c.metrics.RecordChatUpdate(ctx, kind, action, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	switch {
	case update.CallbackQuery != nil:
		err = c.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		err = c.handleCommand(ctx, update.Message)
	}
}

func classify(update tgbotapi.Update) (kind, action string) {
	switch {
	case update.CallbackQuery != nil:
		return instrumentation.UpdateCallback, instrumentation.CallbackLabel(update.CallbackQuery.Data)
	case update.Message != nil && update.Message.IsCommand():
		return instrumentation.UpdateCommand, instrumentation.CommandLabel(update.Message.Command())
	case update.Message != nil:
		return instrumentation.UpdateMessage, "text"
	default:
		return instrumentation.UpdateOther, "none"
	}
}

func (c *Controller) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil || msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID
	userID := strconv.FormatInt(msg.From.ID, 10)

	switch msg.Command() {
	case "start":
		return c.start(ctx, chatID, userID)
	case "cancel":
		text := msgNothingToStop
		if sess, ok := c.sessions.get(chatID); ok && sess.State.active() {
			text = msgCancelled
		}
		c.sessions.delete(ctx, chatID)
		return c.reply(chatID, text)
	case "help":
		return c.reply(chatID, msgHelp)
	default:
		return nil
	}
}

// start checks the store for a credential every time, so a user in
// StateAwaitingAuth resumes once the browser flow has completed.
func (c *Controller) start(ctx context.Context, chatID int64, userID string) error {
	ok, err := c.cal.HasToken(ctx, userID)
	if err != nil {
		_ = c.reply(chatID, msgTryLater)
		return fmt.Errorf("failed to check credential: %w", err)
	}
	if !ok {
		return c.requestAuth(ctx, chatID, userID)
	}

	today := c.today()
	month := firstOfMonth(today)
	msg := tgbotapi.NewMessage(chatID, msgPickDate)
	msg.ReplyMarkup = calendarKeyboard(month, today)
	sent, err := c.messenger.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send calendar: %w", err)
	}

	c.sessions.put(ctx, chatID, Session{
		State:     StateAwaitingDate,
		UserID:    userID,
		Month:     month,
		MessageID: sent.MessageID,
	})
	c.logger.Debug("conversation started", logging.Chat(chatID), logging.UserHash(userID))
	return nil
}

func (c *Controller) requestAuth(ctx context.Context, chatID int64, userID string) error {
	link := c.authorizeURL(userID)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(msgAuthorize, link))
	// Telegram rejects URL buttons pointing at non-public hosts; the link in
	// the text works either way.
	if strings.HasPrefix(link, "https://") {
		msg.ReplyMarkup = authKeyboard(link)
	}
	if _, err := c.messenger.Send(msg); err != nil {
		return fmt.Errorf("failed to send authorization link: %w", err)
	}

	c.sessions.put(ctx, chatID, Session{State: StateAwaitingAuth, UserID: userID})
	c.logger.Info("authorization requested", logging.Chat(chatID), logging.UserHash(userID))
	return nil
}

func (c *Controller) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	defer c.answer(cq.ID)

	if cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	cb, err := ParseCallback(cq.Data, c.loc)
	if err != nil {
		c.logger.Debug("ignoring callback", logging.Chat(chatID), logging.Err(err))
		return nil
	}

	sess, ok := c.sessions.get(chatID)
	if !ok {
		return nil
	}
	if cq.From != nil && strconv.FormatInt(cq.From.ID, 10) != sess.UserID {
		return nil
	}
	// Only the keyboard of the current conversation message is live.
	if sess.MessageID != 0 && messageID != sess.MessageID {
		return nil
	}

	switch {
	case sess.State == StateAwaitingDate && cb.Action == ActionNavigate:
		sess.Month = firstOfMonth(cb.Month)
		sess.MessageID = messageID
		c.sessions.put(ctx, chatID, sess)
		markup := calendarKeyboard(sess.Month, c.today())
		return c.edit(chatID, messageID, msgPickDate, &markup)

	case sess.State == StateAwaitingDate && cb.Action == ActionSelectDay:
		if cb.Day.Before(c.today()) {
			return nil
		}
		return c.selectDay(ctx, chatID, messageID, sess, cb.Day)

	case sess.State == StateAwaitingTime && cb.Action == ActionSelectSlot:
		if !slices.Contains(c.slots, cb.Slot) {
			return nil
		}
		if !slices.Contains(c.freeSlots(ctx, sess.UserID, sess.Date), cb.Slot) {
			return c.offerSlots(ctx, chatID, messageID, sess, sess.Date, msgSlotTaken)
		}
		sess.Slot = cb.Slot
		sess.State = StateAwaitingConfirm
		sess.MessageID = messageID
		c.sessions.put(ctx, chatID, sess)
		markup := confirmKeyboard()
		return c.edit(chatID, messageID,
			fmt.Sprintf(msgConfirm, c.title, sess.Date.Format(dateDisplayLayout), sess.Slot), &markup)

	case sess.State == StateAwaitingTime && cb.Action == ActionBack:
		sess.State = StateAwaitingDate
		sess.Month = firstOfMonth(sess.Date)
		sess.MessageID = messageID
		c.sessions.put(ctx, chatID, sess)
		markup := calendarKeyboard(sess.Month, c.today())
		return c.edit(chatID, messageID, msgPickDate, &markup)

	case sess.State == StateAwaitingConfirm && cb.Action == ActionConfirm:
		return c.book(ctx, chatID, messageID, sess)

	case sess.State == StateAwaitingConfirm && cb.Action == ActionDecline:
		sess.State = StateDone
		c.sessions.put(ctx, chatID, sess)
		c.finishBooking(ctx, instrumentation.NewBookingRecord(ctx, sess.UserID, chatID).
			Complete(instrumentation.BookingDeclined, nil))
		return c.edit(chatID, messageID, msgDeclined, nil)
	}

	return nil
}

func (c *Controller) selectDay(ctx context.Context, chatID int64, messageID int, sess Session, day time.Time) error {
	return c.offerSlots(ctx, chatID, messageID, sess, day, msgPickTime)
}

// offerSlots moves sess to StateAwaitingTime on day and shows its free slots
// under prompt, which takes the formatted date.
func (c *Controller) offerSlots(ctx context.Context, chatID int64, messageID int, sess Session, day time.Time, prompt string) error {
	free := c.freeSlots(ctx, sess.UserID, day)

	sess.State = StateAwaitingTime
	sess.Date = day
	sess.Slot = ""
	sess.MessageID = messageID
	c.sessions.put(ctx, chatID, sess)

	text := fmt.Sprintf(prompt, day.Format(dateDisplayLayout))
	if len(free) == 0 {
		text = fmt.Sprintf(msgNoSlots, day.Format(dateDisplayLayout))
	}
	markup := slotKeyboard(free)
	return c.edit(chatID, messageID, text, &markup)
}

// freeSlots returns the configured slots on day that have not started yet
// and do not overlap a busy range. When free/busy cannot be read every
// future slot is offered.
func (c *Controller) freeSlots(ctx context.Context, userID string, day time.Time) []string {
	busy, err := c.cal.BusyRanges(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		c.logger.Warn("free/busy unavailable, offering all slots", logging.UserHash(userID), logging.Err(err))
		busy = nil
	}

	now := c.now()
	free := make([]string, 0, len(c.slots))
	for _, slot := range c.slots {
		start, err := slotTime(day, slot)
		if err != nil || !start.After(now) {
			continue
		}
		if (calendar.TimeRange{Start: start, End: start.Add(c.duration)}).AnyOverlap(busy) {
			continue
		}
		free = append(free, slot)
	}
	return free
}

func (c *Controller) book(ctx context.Context, chatID int64, messageID int, sess Session) (err error) {
	ctx, span := instrumentation.StartSpan(ctx, "bot.book",
		attribute.String(instrumentation.SpanAttrState, sess.State.String()))
	defer func() { instrumentation.EndSpan(span, err) }()

	start, err := slotTime(sess.Date, sess.Slot)
	if err != nil {
		return err
	}
	if !start.After(c.now()) {
		c.logger.Info("slot passed before confirmation", logging.Chat(chatID), slog.String("slot", sess.Slot))
		return c.offerSlots(ctx, chatID, messageID, sess, sess.Date, msgSlotTaken)
	}
	end := start.Add(c.duration)

	record := instrumentation.NewBookingRecord(ctx, sess.UserID, chatID)
	record.Start = start
	record.Title = c.title
	record.BookingRef = uuid.NewString()

	eventID, err := c.cal.CreateEvent(ctx, sess.UserID, c.title, start, end)
	if errors.Is(err, google.ErrUnauthorized) {
		c.finishBooking(ctx, record.Complete(instrumentation.BookingUnauthorized, err))
		_ = c.edit(chatID, messageID, msgReauthorize, nil)
		if authErr := c.requestAuth(ctx, chatID, sess.UserID); authErr != nil {
			return errors.Join(err, authErr)
		}
		return err
	}
	if err != nil {
		c.finishBooking(ctx, record.Complete(instrumentation.BookingFailed, err))
		markup := confirmKeyboard()
		_ = c.edit(chatID, messageID, msgBookingFailed, &markup)
		return fmt.Errorf("failed to create event: %w", err)
	}

	record.EventID = eventID
	sess.State = StateDone
	c.sessions.put(ctx, chatID, sess)

	date := start.Format(dayLayout)
	editErr := c.edit(chatID, messageID,
		fmt.Sprintf(msgBooked, c.title, start.Format(dateDisplayLayout), sess.Slot), nil)

	var logErr error
	if c.bookingLog != nil {
		row := []string{date, sess.Slot, c.title, sess.UserID, eventID, record.BookingRef}
		if logErr = c.bookingLog.AppendRow(ctx, row); logErr != nil {
			c.logger.Warn("failed to log booking",
				logging.Chat(chatID),
				slog.String("booking_ref", record.BookingRef),
				logging.Err(logErr))
			_ = c.reply(chatID, msgLogFailed)
		}
	}

	c.finishBooking(ctx, record.Complete(instrumentation.BookingCreated, logErr))
	return editErr
}

func (c *Controller) finishBooking(ctx context.Context, record *instrumentation.BookingRecord) {
	c.audit.LogBooking(record)
	c.metrics.RecordBooking(ctx, record.Result)
}

// NotifyAuthorized tells chats waiting for userID's authorization that the
// credential has been stored. The conversation itself resumes on /start.
func (c *Controller) NotifyAuthorized(_ context.Context, userID string) error {
	var errs []error
	for _, chatID := range c.sessions.awaitingAuth(userID) {
		if err := c.reply(chatID, msgAuthorized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) reply(chatID int64, text string) error {
	if _, err := c.messenger.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (c *Controller) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ReplyMarkup = markup
	if _, err := c.messenger.Request(cfg); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// answer stops the client's loading indicator on the pressed button.
func (c *Controller) answer(callbackID string) {
	if _, err := c.messenger.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		c.logger.Debug("failed to answer callback", logging.Err(err))
	}
}

func (c *Controller) today() time.Time {
	return midnight(c.now(), c.loc)
}

// slotTime combines day with an "HH:MM" slot in day's location.
func slotTime(day time.Time, slot string) (time.Time, error) {
	t, err := time.Parse(slotLayout, slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
