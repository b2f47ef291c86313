package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mkarpov/inboxdeck/internal/imap"
	"github.com/mkarpov/inboxdeck/internal/mailbox"
	"github.com/mkarpov/inboxdeck/internal/oauth"
	"github.com/mkarpov/inboxdeck/pkg/models"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAuthorize redirects the browser to the Google consent page
func (s *Server) handleAuthorize(c *gin.Context) {
	state := uuid.NewString()
	s.states.Add(state)
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(state))
}

// handleCallback finishes the authorization flow: validates the state,
// exchanges the code, resolves the profile email and stores the account
// with its encrypted token pair.
func (s *Server) handleCallback(c *gin.Context) {
	if !s.states.Consume(c.Query("state")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	tok, err := s.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		s.respondError(c, err)
		return
	}

	email, err := s.oauth.UserEmail(c.Request.Context(), tok)
	if err != nil {
		s.respondError(c, err)
		return
	}

	accessToken, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		s.respondError(c, err)
		return
	}
	refreshToken, err := s.cipher.Encrypt(tok.RefreshToken)
	if err != nil {
		s.respondError(c, err)
		return
	}

	account := &models.MailboxAccount{
		Email:        email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if err := s.accounts.UpsertAccount(c.Request.Context(), account); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("mailbox authorized", "email", email)
	c.JSON(http.StatusOK, gin.H{"email": email, "message": "mailbox authorized"})
}

// handleFetch runs one sync and returns the freshly fetched messages
func (s *Server) handleFetch(c *gin.Context) {
	address, ok := s.mailboxAddress(c)
	if !ok {
		return
	}

	result, err := s.svc.SyncMailbox(c.Request.Context(), address)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := gin.H{
		"count": len(result.Records),
		"data":  result.Records,
	}
	if result.CacheErr != nil {
		resp["cache_degraded"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// handleList serves a paginated page from the cache
func (s *Server) handleList(c *gin.Context) {
	address, ok := s.mailboxAddress(c)
	if !ok {
		return
	}

	opts := models.ListOptions{
		Search:    c.Query("search"),
		SortBy:    models.SortField(c.Query("sortBy")),
		SortOrder: models.SortOrder(c.Query("sortOrder")),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		opts.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		opts.Limit = limit
	}

	list, err := s.svc.ListMessages(c.Request.Context(), address, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// mailboxAddress validates the required email query parameter
func (s *Server) mailboxAddress(c *gin.Context) (string, bool) {
	address := c.Query("email")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email parameter"})
		return "", false
	}
	if _, err := mail.ParseAddress(address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return "", false
	}
	return address, true
}

// respondError maps service errors onto HTTP statuses. Outside of
// development mode the underlying detail is replaced with a generic
// message.
func (s *Server) respondError(c *gin.Context, err error) {
	var status int
	body := gin.H{}

	switch {
	case errors.Is(err, mailbox.ErrAccountNotFound):
		status = http.StatusNotFound
		body["error"] = "account not found"
	case errors.Is(err, oauth.ErrReauthRequired):
		status = http.StatusUnauthorized
		body["error"] = "reauthorization required"
		body["reauth_required"] = true
	case errors.Is(err, oauth.ErrTokenRefresh), errors.Is(err, imap.ErrMailAuth):
		status = http.StatusBadGateway
		body["error"] = "mailbox access failed"
	case errors.Is(err, imap.ErrMailConnect):
		status = http.StatusGatewayTimeout
		body["error"] = "mail server unreachable"
	default:
		status = http.StatusInternalServerError
		body["error"] = "internal error"
	}

	if s.cfg.IsDevelopment() {
		body["detail"] = err.Error()
	}

	s.logger.Error("request failed", "status", status, "error", err)
	c.JSON(status, body)
}
