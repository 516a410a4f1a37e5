// Package bot implements the Telegram booking conversation.
//
// Each chat moves through a small state machine:
//
//	Start -> AwaitingAuth -> AwaitingDate -> AwaitingTime -> AwaitingConfirm -> Done
//
// /start checks the credential store; without a credential the user gets an
// authorization link and /start must be sent again after the browser flow.
// Dates and times are picked with inline keyboards whose callback data is
// parsed by ParseCallback. Callback data that does not fit the current state
// is ignored.
package bot
