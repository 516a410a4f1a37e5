// Package calendar creates Google Calendar events on behalf of chat users.
//
// Every call resolves the user's stored credential through a
// google.TokenProvider, so expired access tokens are refreshed transparently
// and the refreshed token is written back to the credential store.
//
// Example usage:
//
//	client := calendar.NewClient(tokens, calendar.Config{Location: loc})
//	eventID, err := client.CreateEvent(ctx, "42", "Meeting", start, start.Add(time.Hour))
//	if errors.Is(err, google.ErrUnauthorized) {
//	    // send a new authorization link
//	}
package calendar
