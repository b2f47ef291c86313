package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/mkarpov/inboxdeck/internal/secrets"
	"github.com/mkarpov/inboxdeck/pkg/models"
)

// TokenStore persists refreshed access tokens
type TokenStore interface {
	UpdateAccessToken(ctx context.Context, accountID int64, accessToken string) error
}

// Refresher obtains a currently-valid access token for an account before
// each sync. One provider round trip per call, no internal retries.
type Refresher struct {
	client *Client
	store  TokenStore
	cipher *secrets.Cipher
	logger *slog.Logger
}

// NewRefresher creates a token refresher
func NewRefresher(client *Client, store TokenStore, cipher *secrets.Cipher, logger *slog.Logger) *Refresher {
	return &Refresher{
		client: client,
		store:  store,
		cipher: cipher,
		logger: logger.With("component", "token_refresher"),
	}
}

// Refresh exchanges the account's refresh token for a valid access token.
// When the provider hands back a different access token than the one
// stored, the new value is persisted (encrypted) before returning.
// Returns ErrReauthRequired without contacting the provider when the
// account has no refresh token.
func (r *Refresher) Refresh(ctx context.Context, account *models.MailboxAccount) (string, error) {
	accessToken, err := r.cipher.Decrypt(account.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := r.cipher.Decrypt(account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", ErrReauthRequired
	}

	// Expiry in the past forces the token source to hit the provider
	// instead of trusting the stored token.
	stale := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	tok, err := r.client.oauthConfig().TokenSource(ctx, stale).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	if tok.AccessToken != accessToken {
		encrypted, err := r.cipher.Encrypt(tok.AccessToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refreshed token: %w", err)
		}
		if err := r.store.UpdateAccessToken(ctx, account.ID, encrypted); err != nil {
			return "", fmt.Errorf("failed to persist refreshed token: %w", err)
		}
		account.AccessToken = encrypted
		r.logger.Info("access token refreshed", "email", account.Email)
	}

	return tok.AccessToken, nil
}
