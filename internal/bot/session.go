package bot

import (
	"context"
	"sync"
	"time"

	"github.com/teemow/telecal/internal/instrumentation"
)

// State is the position of one chat in the booking conversation.
type State int

const (
	StateStart State = iota
	StateAwaitingAuth
	StateAwaitingDate
	StateAwaitingTime
	StateAwaitingConfirm
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateAwaitingDate:
		return "awaiting_date"
	case StateAwaitingTime:
		return "awaiting_time"
	case StateAwaitingConfirm:
		return "awaiting_confirm"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// active reports whether the conversation is mid-flow.
func (s State) active() bool {
	return s != StateStart && s != StateDone
}

// Session is the conversation state of one chat.
type Session struct {
	State  State
	UserID string

	// Month is the first day of the month shown by the calendar keyboard.
	Month time.Time

	// Date and Slot are the selections made so far.
	Date time.Time
	Slot string

	// MessageID is the message carrying the current inline keyboard.
	MessageID int
}

// sessions holds Session values by chat id. Values are copied in and out so
// callers never share a Session across goroutines.
type sessions struct {
	mu      sync.Mutex
	byChat  map[int64]Session
	metrics *instrumentation.Metrics
}

func newSessions(metrics *instrumentation.Metrics) *sessions {
	return &sessions{byChat: make(map[int64]Session), metrics: metrics}
}

func (s *sessions) get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byChat[chatID]
	return sess, ok
}

func (s *sessions) put(ctx context.Context, chatID int64, sess Session) {
	s.mu.Lock()
	old, existed := s.byChat[chatID]
	s.byChat[chatID] = sess
	s.mu.Unlock()

	s.track(ctx, existed && old.State.active(), sess.State.active())
}

func (s *sessions) delete(ctx context.Context, chatID int64) bool {
	s.mu.Lock()
	old, existed := s.byChat[chatID]
	delete(s.byChat, chatID)
	s.mu.Unlock()

	s.track(ctx, existed && old.State.active(), false)
	return existed
}

// awaitingAuth returns the chats of userID that wait for authorization.
func (s *sessions) awaitingAuth(userID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chats []int64
	for chatID, sess := range s.byChat {
		if sess.UserID == userID && sess.State == StateAwaitingAuth {
			chats = append(chats, chatID)
		}
	}
	return chats
}

func (s *sessions) track(ctx context.Context, wasActive, isActive bool) {
	switch {
	case !wasActive && isActive:
		s.metrics.IncrementActiveSessions(ctx)
	case wasActive && !isActive:
		s.metrics.DecrementActiveSessions(ctx)
	}
}
