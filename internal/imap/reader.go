// Package imap pulls inbox messages from Gmail over IMAP using XOAUTH2.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/mkarpov/inboxdeck/internal/parser"
)

// ErrMailConnect is returned on transport or session failures
var ErrMailConnect = errors.New("mail server connection failed")

// ErrMailAuth is returned when the server rejects XOAUTH2 authentication
var ErrMailAuth = errors.New("mail server rejected authentication")

const (
	// DefaultFetchLimit bounds one fetch when no limit is given
	DefaultFetchLimit = 50

	// maxPlainTextLen bounds the stored plain-text body
	maxPlainTextLen = 5000
	// maxHTMLLen bounds the stored HTML body
	maxHTMLLen = 10000
)

// Message is one inbox message normalized from its IMAP form
type Message struct {
	UID            uint32
	From           string
	Subject        string
	Date           time.Time
	BodyText       string
	BodyHTML       string
	HasAttachments bool
}

// ReaderConfig configuration for the mailbox reader
type ReaderConfig struct {
	Server      string // host:port
	DialTimeout time.Duration
	AuthTimeout time.Duration
}

// Reader fetches messages from a mailbox. Each call opens its own TLS
// connection and closes it before returning; nothing is shared between
// calls.
type Reader struct {
	config ReaderConfig
	html   *parser.HTMLParser
	logger *slog.Logger
}

// NewReader creates a mailbox reader
func NewReader(cfg ReaderConfig, logger *slog.Logger) *Reader {
	if cfg.Server == "" {
		cfg.Server = "imap.gmail.com:993"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.AuthTimeout == 0 {
		cfg.AuthTimeout = 30 * time.Second
	}
	return &Reader{
		config: cfg,
		html:   parser.NewHTMLParser(),
		logger: logger.With("component", "imap_reader"),
	}
}

// FetchMessages opens a fresh connection, authenticates as address with
// the given access token and returns up to limit inbox messages. The
// INBOX is opened read-only and bodies are fetched with BODY.PEEK, so
// server-side \Seen state is never touched. Messages that fail to parse
// are logged and dropped from the result.
func (r *Reader) FetchMessages(ctx context.Context, accessToken, address string, limit int) ([]*Message, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: r.config.DialTimeout},
		Config:    &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", r.config.Server)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrMailConnect, r.config.Server, err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: greeting: %v", ErrMailConnect, err)
	}
	defer c.Logout()

	c.Timeout = r.config.AuthTimeout
	if err := c.Authenticate(newXOAuth2(address, accessToken)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMailAuth, err)
	}
	c.Timeout = 0

	// Read-only select so the fetch cannot mutate flags
	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("%w: select INBOX: %v", ErrMailConnect, err)
	}

	uids, err := c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrMailConnect, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	uids = fetchWindow(uids, limit)

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*Message
	for msg := range messages {
		m, err := r.normalize(msg, section)
		if err != nil {
			r.logger.Warn("dropping unparseable message", "uid", msg.Uid, "error", err)
			continue
		}
		result = append(result, m)
	}

	if err := <-done; err != nil {
		return result, fmt.Errorf("%w: fetch: %v", ErrMailConnect, err)
	}
	return result, nil
}

// fetchWindow returns the first limit UIDs, applying DefaultFetchLimit
// when no positive limit is given.
func fetchWindow(uids []uint32, limit int) []uint32 {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	if len(uids) > limit {
		return uids[:limit]
	}
	return uids
}

// normalize converts an IMAP message into a Message. Missing header
// fields fall back to empty strings and the current time.
func (r *Reader) normalize(msg *imap.Message, section *imap.BodySectionName) (*Message, error) {
	m := &Message{
		UID:  msg.Uid,
		Date: time.Now(),
	}

	if msg.Envelope != nil {
		m.Subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			m.Date = msg.Envelope.Date
		}
		if len(msg.Envelope.From) > 0 {
			m.From = formatAddress(msg.Envelope.From[0])
		}
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.logger.Warn("failed to read part", "uid", msg.Uid, "error", err)
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			if strings.HasPrefix(ct, "text/plain") {
				m.BodyText = string(data)
			} else if strings.HasPrefix(ct, "text/html") {
				m.BodyHTML = string(data)
			}
		case *mail.AttachmentHeader:
			m.HasAttachments = true
		}
	}

	// Plain text preferred; fall back to stripped HTML
	if m.BodyText == "" && m.BodyHTML != "" {
		text, err := r.html.Parse(m.BodyHTML)
		if err != nil {
			r.logger.Warn("failed to strip html body", "uid", msg.Uid, "error", err)
		} else {
			m.BodyText = text
		}
	}

	m.BodyText = truncate(m.BodyText, maxPlainTextLen)
	m.BodyHTML = truncate(m.BodyHTML, maxHTMLLen)
	return m, nil
}

func formatAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", addr.PersonalName, addr.Address())
	}
	return addr.Address()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
