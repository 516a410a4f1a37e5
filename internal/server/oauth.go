package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/teemow/telecal/internal/google"
	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
	"github.com/teemow/telecal/internal/store"
)

const (
	msgMissingState = "missing correlation key"
	msgMissingCode  = "missing authorization code"
	msgAuthorized   = "Authorization complete. Return to the chat and send /start to book a meeting."
)

// Notifier tells a chat user that their authorization has been stored.
type Notifier interface {
	NotifyAuthorized(ctx context.Context, userID string) error
}

// OAuthHandlerConfig holds the dependencies of the OAuth web handler.
type OAuthHandlerConfig struct {
	// OAuth is the web-flow client configuration. Required.
	OAuth *oauth2.Config

	// Store persists exchanged credentials. Required.
	Store google.CredentialStore

	// Notifier is optional.
	Notifier Notifier

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// OAuthHandler serves the browser side of the authorization flow. The chat
// user id travels through the provider in the OAuth state parameter and keys
// the stored credential.
//
// The state is a correlation key, not a nonce: a callback whose state was
// never sent to /authorize is still accepted.
type OAuthHandler struct {
	conf     *oauth2.Config
	creds    google.CredentialStore
	notifier Notifier
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewOAuthHandler creates the handler.
func NewOAuthHandler(cfg OAuthHandlerConfig) (*OAuthHandler, error) {
	if cfg.OAuth == nil {
		return nil, fmt.Errorf("oauth config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthHandler{
		conf:     cfg.OAuth,
		creds:    cfg.Store,
		notifier: cfg.Notifier,
		logger:   logger.With("component", "oauth"),
		metrics:  cfg.Metrics,
	}, nil
}

// Register adds the handler's routes to mux.
func (h *OAuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /authorize", h.handleAuthorize)
	mux.HandleFunc("GET /oauth2callback", h.handleCallback)
}

func (h *OAuthHandler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "OK")
}

func (h *OAuthHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeText(w, http.StatusBadRequest, msgMissingState)
		return
	}

	h.logger.Debug("redirecting to provider", logging.UserHash(state))
	http.Redirect(w, r, google.AuthCodeURL(h.conf, state), http.StatusFound)
}

func (h *OAuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	userID := q.Get("state")
	if userID == "" {
		writeText(w, http.StatusBadRequest, msgMissingState)
		return
	}
	logger := h.logger.With(logging.UserHash(userID))

	if reason := q.Get("error"); reason != "" {
		h.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultDenied)
		logger.Info("authorization denied by user", slog.String("reason", reason))
		writeText(w, http.StatusBadRequest, "Authorization was not granted: "+reason)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, msgMissingCode)
		return
	}

	tok, err := h.conf.Exchange(ctx, code)
	if err != nil {
		h.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultFailure)
		logger.Warn("code exchange failed", logging.Err(err))
		writeText(w, http.StatusBadGateway, "failed to exchange authorization code")
		return
	}

	cred := google.CredentialFromToken(h.conf, userID, tok)
	if cred.RefreshToken == "" {
		// Google omits the refresh token when consent was already granted.
		prev, err := h.creds.Load(ctx, userID)
		switch {
		case err == nil:
			cred.RefreshToken = prev.RefreshToken
		case !errors.Is(err, store.ErrNotFound):
			logger.Warn("failed to load previous credential", logging.Err(err))
		}
	}

	if err := h.creds.Save(ctx, cred); err != nil {
		h.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultFailure)
		logger.Error("failed to save credential", logging.Err(err))
		writeText(w, http.StatusInternalServerError, "failed to store authorization")
		return
	}

	h.metrics.RecordOAuthExchange(ctx, instrumentation.OAuthResultSuccess)
	logger.Info("authorization stored",
		slog.Bool("has_refresh_token", cred.RefreshToken != ""),
		slog.Int("scopes", len(cred.Scopes)))

	if h.notifier != nil {
		if err := h.notifier.NotifyAuthorized(ctx, userID); err != nil {
			logger.Warn("failed to notify chat user", logging.Err(err))
		}
	}

	writeText(w, http.StatusOK, msgAuthorized)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
