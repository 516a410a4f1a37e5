package google

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/telecal/internal/store"
)

// LoadOAuthConfig reads a client-secrets JSON file as downloaded from the
// Google Cloud console and returns the OAuth2 configuration for the web flow.
// A non-empty redirectURL overrides the first redirect URI in the file.
func LoadOAuthConfig(path, redirectURL string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secrets file: %w", err)
	}
	return OAuthConfigFromJSON(data, redirectURL, scopes)
}

// OAuthConfigFromJSON is LoadOAuthConfig for in-memory client secrets.
func OAuthConfigFromJSON(data []byte, redirectURL string, scopes []string) (*oauth2.Config, error) {
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secrets: %w", err)
	}
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return conf, nil
}

// AuthCodeURL returns the provider authorization URL for state. It asks for
// offline access so that a refresh token is issued, and for incremental
// authorization. state is passed through unmodified.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// CredentialFromToken builds the stored record for userID from a token
// returned by the code exchange.
func CredentialFromToken(conf *oauth2.Config, userID string, tok *oauth2.Token) store.Credential {
	return store.Credential{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     conf.Endpoint.TokenURL,
		ClientID:     conf.ClientID,
		ClientSecret: conf.ClientSecret,
		Scopes:       ScopesFromToken(tok, conf.Scopes),
		Expiry:       tok.Expiry,
	}
}

// TokenFromCredential converts a stored record back into an oauth2 token.
func TokenFromCredential(cred store.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
}

// ConfigFromCredential returns the OAuth2 configuration needed to refresh
// the token held in cred. Every record carries its own client and token
// endpoint, so a refresh does not depend on the process configuration.
func ConfigFromCredential(cred store.Credential) *oauth2.Config {
	tokenURL := cred.TokenURI
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   google.Endpoint.AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// ScopesFromToken returns the scopes granted in the token response, or
// fallback when the provider did not echo them.
func ScopesFromToken(tok *oauth2.Token, fallback []string) []string {
	if raw, ok := tok.Extra("scope").(string); ok {
		if scopes := strings.Fields(raw); len(scopes) > 0 {
			return scopes
		}
	}
	if len(fallback) == 0 {
		return nil
	}
	return append([]string(nil), fallback...)
}
