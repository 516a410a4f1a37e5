package bot

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const slotsPerRow = 3

var weekdayLabels = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

func noopButton(label string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, dataNoop)
}

// firstOfMonth returns midnight on the first day of t's month in t's location.
func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// midnight truncates t to the start of its day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// calendarKeyboard renders month as a Monday-first grid with paging
// buttons. Days before today carry no-op callback data.
func calendarKeyboard(month, today time.Time) tgbotapi.InlineKeyboardMarkup {
	month = firstOfMonth(month)

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("‹", NavData(month.AddDate(0, -1, 0))),
			noopButton(month.Format("January 2006")),
			tgbotapi.NewInlineKeyboardButtonData("›", NavData(month.AddDate(0, 1, 0))),
		),
	}

	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, label := range weekdayLabels {
		header = append(header, noopButton(label))
	}
	rows = append(rows, header)

	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < (int(month.Weekday())+6)%7; i++ {
		week = append(week, noopButton(" "))
	}

	for day := month; day.Month() == month.Month(); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			week = append(week, noopButton("·"))
		} else {
			week = append(week, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(day.Day()), DayData(day)))
		}
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, noopButton(" "))
		}
		rows = append(rows, week)
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// slotKeyboard lists the bookable slots and a button back to the calendar.
func slotKeyboard(slots []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, slot := range slots {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(slot, SlotData(slot)))
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", dataBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Confirm", dataConfirm),
		tgbotapi.NewInlineKeyboardButtonData("Cancel", dataDecline),
	))
}

func authKeyboard(url string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("Authorize Google Calendar", url),
	))
}
