// Package oauth handles the Google OAuth2 authorization and token
// refresh flows for mailbox access.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ErrReauthRequired is returned when no refresh token is stored and the
// user must go through the authorization flow again
var ErrReauthRequired = errors.New("reauthorization required")

// ErrTokenRefresh is returned when the provider rejects a refresh attempt
var ErrTokenRefresh = errors.New("token refresh failed")

// Scopes requested during authorization: full IMAP access plus the
// profile email used to key the account.
var scopes = []string{
	"https://mail.google.com/",
	"https://www.googleapis.com/auth/userinfo.email",
}

// ClientConfig configuration for the OAuth client
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint // defaults to Google
}

// Client builds Google OAuth2 operations. It holds only immutable
// credentials: a fresh oauth2.Config value is constructed per call, so
// no client state is shared between concurrent requests.
type Client struct {
	config ClientConfig
}

// NewClient creates an OAuth client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = google.Endpoint
	}
	return &Client{config: cfg}
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		RedirectURL:  c.config.RedirectURL,
		Scopes:       scopes,
		Endpoint:     c.config.Endpoint,
	}
}

// AuthCodeURL returns the consent page URL. offline access and the
// consent prompt are forced so Google issues a refresh token.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token pair
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

// UserEmail resolves the email address the token was issued for
func (c *Client) UserEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	httpClient := c.oauthConfig().Client(ctx, tok)
	svc, err := goauth2.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get userinfo: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("userinfo response has no email")
	}
	return info.Email, nil
}
