package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/teemow/telecal/internal/calendar"
	"github.com/teemow/telecal/internal/config"
)

// fakeMessenger records everything the controller sends to Telegram.
type fakeMessenger struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: 100 + f.nextID}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

func (f *fakeMessenger) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeMessenger) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()
	edits := f.edits()
	require.NotEmpty(t, edits)
	return edits[len(edits)-1]
}

func (f *fakeMessenger) answeredCallbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		if _, ok := c.(tgbotapi.CallbackConfig); ok {
			n++
		}
	}
	return n
}

type createCall struct {
	userID     string
	title      string
	start, end time.Time
}

// fakeCalendar stands in for the Google Calendar client.
type fakeCalendar struct {
	mu        sync.Mutex
	tokens    map[string]bool
	busy      []calendar.TimeRange
	busyErr   error
	createErr error
	created   []createCall
}

func (f *fakeCalendar) HasToken(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, userID, title string, start, end time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, createCall{userID: userID, title: title, start: start, end: end})
	if f.createErr != nil {
		return "", f.createErr
	}
	return "evt-1", nil
}

func (f *fakeCalendar) BusyRanges(_ context.Context, _ string, _, _ time.Time) ([]calendar.TimeRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy, f.busyErr
}

func (f *fakeCalendar) calls() []createCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]createCall(nil), f.created...)
}

func (f *fakeCalendar) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

type fakeBookingLog struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

func (f *fakeBookingLog) AppendRow(_ context.Context, values []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, values)
	return nil
}

// testNow is Monday 2024-06-10 08:00 UTC.
var testNow = time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)

type harness struct {
	ctrl      *Controller
	messenger *fakeMessenger
	cal       *fakeCalendar
	log       *fakeBookingLog
	now       time.Time
}

func newHarness(t *testing.T, authorized ...string) *harness {
	t.Helper()
	h := &harness{
		messenger: &fakeMessenger{},
		cal:       &fakeCalendar{tokens: map[string]bool{}},
		log:       &fakeBookingLog{},
		now:       testNow,
	}
	for _, u := range authorized {
		h.cal.tokens[u] = true
	}

	appCfg := config.Config{PublicURL: "https://bot.example.com"}
	ctrl, err := New(Config{
		Messenger:    h.messenger,
		Calendar:     h.cal,
		BookingLog:   h.log,
		AuthorizeURL: appCfg.AuthorizeURL,
		Now:          func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) send(update tgbotapi.Update) {
	h.ctrl.HandleUpdate(context.Background(), update)
}

func commandUpdate(userID int64, cmd string) tgbotapi.Update {
	text := "/" + cmd
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

// callbackUpdate presses a button on the first message sent by the bot.
func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return callbackOn(userID, 101, data)
}

func callbackOn(userID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
		Data: data,
	}}
}

// callbackData lists the callback payloads of markup, skipping no-op cells.
func callbackData(markup *tgbotapi.InlineKeyboardMarkup) []string {
	if markup == nil {
		return nil
	}
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil && *b.CallbackData != dataNoop {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}
