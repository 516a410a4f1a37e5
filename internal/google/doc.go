// Package google provides OAuth2 authentication and token management for Google APIs.
//
// It loads the web-flow client configuration from a client-secrets file,
// builds authorization URLs that carry the chat user id in the OAuth state
// parameter, converts exchanged tokens into stored credentials, and serves
// per-user token sources that refresh and re-persist tokens.
//
// It also defines the error taxonomy shared by the Calendar and Sheets
// wrappers: ErrUnauthorized and *ProviderError.
package google
