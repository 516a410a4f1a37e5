package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedCallback is returned for callback data the bot never produces.
var ErrMalformedCallback = errors.New("malformed callback data")

// Callback data layout. Telegram limits callback data to 64 bytes.
const (
	prefixNav  = "cal:nav:"
	prefixDay  = "cal:day:"
	prefixSlot = "slot:"

	dataNoop    = "cal:noop"
	dataBack    = "slot:back"
	dataConfirm = "confirm:yes"
	dataDecline = "confirm:no"

	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
	slotLayout  = "15:04"
)

// Action is what a callback asks the conversation to do.
type Action int

const (
	ActionNoop Action = iota
	ActionNavigate
	ActionSelectDay
	ActionSelectSlot
	ActionBack
	ActionConfirm
	ActionDecline
)

// Callback is parsed inline keyboard data.
type Callback struct {
	Action Action

	// Month is set for ActionNavigate (first day of the month).
	Month time.Time

	// Day is set for ActionSelectDay (midnight in the parse location).
	Day time.Time

	// Slot is set for ActionSelectSlot, in "HH:MM" form.
	Slot string
}

// ParseCallback decodes callback data. Dates are interpreted in loc.
func ParseCallback(data string, loc *time.Location) (Callback, error) {
	switch {
	case data == dataNoop:
		return Callback{Action: ActionNoop}, nil
	case data == dataBack:
		return Callback{Action: ActionBack}, nil
	case data == dataConfirm:
		return Callback{Action: ActionConfirm}, nil
	case data == dataDecline:
		return Callback{Action: ActionDecline}, nil
	case strings.HasPrefix(data, prefixNav):
		month, err := time.ParseInLocation(monthLayout, strings.TrimPrefix(data, prefixNav), loc)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
		}
		return Callback{Action: ActionNavigate, Month: month}, nil
	case strings.HasPrefix(data, prefixDay):
		day, err := time.ParseInLocation(dayLayout, strings.TrimPrefix(data, prefixDay), loc)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
		}
		return Callback{Action: ActionSelectDay, Day: day}, nil
	case strings.HasPrefix(data, prefixSlot):
		slot := strings.TrimPrefix(data, prefixSlot)
		if _, err := time.Parse(slotLayout, slot); err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
		}
		return Callback{Action: ActionSelectSlot, Slot: slot}, nil
	default:
		return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
	}
}

// NavData encodes a month navigation callback.
func NavData(month time.Time) string {
	return prefixNav + month.Format(monthLayout)
}

// DayData encodes a date selection callback.
func DayData(day time.Time) string {
	return prefixDay + day.Format(dayLayout)
}

// SlotData encodes a time slot selection callback.
func SlotData(slot string) string {
	return prefixSlot + slot
}
