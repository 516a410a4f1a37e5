package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/teemow/telecal/internal/instrumentation"
	"github.com/teemow/telecal/internal/logging"
	"github.com/teemow/telecal/internal/store"
)

// CredentialStore is the persistence the token provider needs.
type CredentialStore interface {
	Load(ctx context.Context, userID string) (store.Credential, error)
	Save(ctx context.Context, cred store.Credential) error
}

// TokenProvider is an interface for providing OAuth tokens for Google APIs
// on behalf of a chat user.
type TokenProvider interface {
	// TokenSource returns a token source for userID, or an error wrapping
	// ErrUnauthorized when no credential is stored.
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)

	// HasToken reports whether a credential is stored for userID.
	HasToken(ctx context.Context, userID string) (bool, error)
}

// StoreTokenProvider serves tokens from the credential store. Tokens are
// refreshed by the oauth2 library when expired; refreshed tokens are
// written back so the other process sees them too.
type StoreTokenProvider struct {
	store   CredentialStore
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewStoreTokenProvider creates a token provider backed by s.
func NewStoreTokenProvider(s CredentialStore, logger *slog.Logger, metrics *instrumentation.Metrics) *StoreTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreTokenProvider{store: s, logger: logger, metrics: metrics}
}

// HasToken reports whether a credential is stored for userID.
func (p *StoreTokenProvider) HasToken(ctx context.Context, userID string) (bool, error) {
	_, err := p.store.Load(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// TokenSource returns a refreshing, persisting token source for userID.
func (p *StoreTokenProvider) TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error) {
	cred, err := p.store.Load(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no credential stored for user", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}

	conf := ConfigFromCredential(cred)
	return &persistingTokenSource{
		ctx:      ctx,
		base:     conf.TokenSource(ctx, TokenFromCredential(cred)),
		cred:     cred,
		provider: p,
	}, nil
}

type persistingTokenSource struct {
	ctx      context.Context
	base     oauth2.TokenSource
	provider *StoreTokenProvider

	mu   sync.Mutex
	cred store.Credential
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		s.provider.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("%w: token refresh failed: %w", ErrUnauthorized, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.cred.AccessToken {
		return tok, nil
	}

	s.provider.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultSuccess)
	s.cred.AccessToken = tok.AccessToken
	s.cred.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		s.cred.RefreshToken = tok.RefreshToken
	}
	if err := s.provider.store.Save(s.ctx, s.cred); err != nil {
		// The refreshed token still works for this call.
		s.provider.logger.Warn("failed to persist refreshed token",
			logging.UserHash(s.cred.UserID),
			logging.Err(err))
	} else {
		s.provider.logger.Debug("persisted refreshed token",
			logging.UserHash(s.cred.UserID),
			slog.String("access_token", logging.SanitizeToken(tok.AccessToken)))
	}
	return tok, nil
}
