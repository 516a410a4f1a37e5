package instrumentation

import "strings"

// Label values derived from user input must come from a closed set, or the
// metrics backend pays for every distinct value.

// Update kinds for chat metrics.
const (
	UpdateCommand  = "command"
	UpdateCallback = "callback"
	UpdateMessage  = "message"
	UpdateOther    = "other"
)

// Operation types for Google API metrics.
const (
	OperationInsert   = "insert"
	OperationFreeBusy = "freebusy"
	OperationGet      = "get"
	OperationAddSheet = "add_sheet"
	OperationAppend   = "append"
)

var knownCommands = map[string]bool{"start": true, "cancel": true, "help": true}

// CommandLabel reduces a chat command to a bounded label.
//
//	CommandLabel("start")   // "start"
//	CommandLabel("xyz123")  // "unknown"
func CommandLabel(cmd string) string {
	if knownCommands[cmd] {
		return cmd
	}
	return "unknown"
}

// CallbackLabel reduces callback data to its action prefix.
//
//	CallbackLabel("cal:day:2024-05-01")  // "cal:day"
//	CallbackLabel("slot:10:00")          // "slot"
//	CallbackLabel("cal:noop")            // "cal:noop"
//	CallbackLabel("confirm:yes")         // "confirm"
//	CallbackLabel("garbage")             // "unknown"
func CallbackLabel(data string) string {
	switch {
	case data == "cal:noop":
		return "cal:noop"
	case strings.HasPrefix(data, "cal:nav:"):
		return "cal:nav"
	case strings.HasPrefix(data, "cal:day:"):
		return "cal:day"
	case strings.HasPrefix(data, "slot:"):
		return "slot"
	case strings.HasPrefix(data, "confirm:"):
		return "confirm"
	default:
		return "unknown"
	}
}

var knownPaths = map[string]bool{
	"/": true, "/authorize": true, "/oauth2callback": true,
	"/healthz": true, "/readyz": true, "/healthz/detailed": true,
}

// PathLabel maps request paths outside the served routes to "other".
func PathLabel(path string) string {
	if knownPaths[path] {
		return path
	}
	return "other"
}
