// Package api exposes the HTTP surface consumed by the dashboard.
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkarpov/inboxdeck/internal/config"
	"github.com/mkarpov/inboxdeck/internal/mailbox"
	"github.com/mkarpov/inboxdeck/internal/oauth"
	"github.com/mkarpov/inboxdeck/internal/secrets"
	"github.com/mkarpov/inboxdeck/pkg/models"
)

// AccountStore persists accounts created by the authorization callback
type AccountStore interface {
	UpsertAccount(ctx context.Context, account *models.MailboxAccount) error
}

// Server is the HTTP API server
type Server struct {
	cfg      *config.Config
	svc      *mailbox.Service
	oauth    *oauth.Client
	accounts AccountStore
	cipher   *secrets.Cipher
	states   *stateStore
	logger   *slog.Logger
	engine   *gin.Engine
}

// NewServer creates the API server and registers all routes
func NewServer(cfg *config.Config, svc *mailbox.Service, oauthClient *oauth.Client, accounts AccountStore, cipher *secrets.Cipher, logger *slog.Logger) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		oauth:    oauthClient,
		accounts: accounts,
		cipher:   cipher,
		states:   newStateStore(10 * time.Minute),
		logger:   logger.With("component", "api"),
		engine:   gin.New(),
	}

	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/auth/google", s.handleAuthorize)
	s.engine.GET("/auth/google/callback", s.handleCallback)

	emails := s.engine.Group("/api/emails")
	emails.POST("/fetch", s.handleFetch)
	emails.GET("", s.handleList)

	return s
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() *gin.Engine {
	return s.engine
}

// stateStore holds pending OAuth state nonces. Entries expire after the
// TTL so an abandoned flow cannot be replayed later.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
	}
}

func (st *stateStore) Add(state string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	for s, created := range st.states {
		if now.Sub(created) > st.ttl {
			delete(st.states, s)
		}
	}
	st.states[state] = now
}

// Consume removes the state and reports whether it was pending
func (st *stateStore) Consume(state string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	created, ok := st.states[state]
	if !ok {
		return false
	}
	delete(st.states, state)
	return time.Since(created) <= st.ttl
}
