// Package mailbox composes token refresh, IMAP fetch and cache merge
// into the sync operation, and serves paginated reads from the cache.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mkarpov/inboxdeck/internal/database"
	"github.com/mkarpov/inboxdeck/internal/imap"
	"github.com/mkarpov/inboxdeck/pkg/models"
)

// ErrAccountNotFound is returned when no account exists for an address
var ErrAccountNotFound = errors.New("mailbox account not found")

// Store is the cache access the service needs, implemented by *database.DB
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (*models.MailboxAccount, error)
	CreateMessage(ctx context.Context, msg *models.MessageRecord) error
	ListMessages(ctx context.Context, accountID int64, opts models.ListOptions) ([]*models.MessageRecord, int64, error)
}

// TokenRefresher yields a valid access token for an account
type TokenRefresher interface {
	Refresh(ctx context.Context, account *models.MailboxAccount) (string, error)
}

// Reader pulls messages from the remote mailbox
type Reader interface {
	FetchMessages(ctx context.Context, accessToken, address string, limit int) ([]*imap.Message, error)
}

// Service runs mailbox syncs and cache queries
type Service struct {
	store      Store
	refresher  TokenRefresher
	reader     Reader
	fetchLimit int
	logger     *slog.Logger
}

// NewService creates a mailbox service
func NewService(store Store, refresher TokenRefresher, reader Reader, fetchLimit int, logger *slog.Logger) *Service {
	if fetchLimit <= 0 {
		fetchLimit = imap.DefaultFetchLimit
	}
	return &Service{
		store:      store,
		refresher:  refresher,
		reader:     reader,
		fetchLimit: fetchLimit,
		logger:     logger.With("component", "mailbox_service"),
	}
}

// MergeResult counts the outcome of one cache merge
type MergeResult struct {
	Inserted int
	Skipped  int
}

// SyncResult carries the fetched messages plus the merge outcome. CacheErr
// reports degraded persistence without invalidating the fetched data.
type SyncResult struct {
	Records  []*models.MessageRecord
	Merge    MergeResult
	CacheErr error
}

// SyncMailbox refreshes the account's token, pulls inbox messages and
// merges them into the cache. The freshly fetched list is returned even
// when the merge fails; only account lookup, token refresh and fetch
// errors abort the sync.
func (s *Service) SyncMailbox(ctx context.Context, address string) (*SyncResult, error) {
	account, err := s.store.GetAccountByEmail(ctx, address)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	token, err := s.refresher.Refresh(ctx, account)
	if err != nil {
		return nil, err
	}

	messages, err := s.reader.FetchMessages(ctx, token, account.Email, s.fetchLimit)
	if err != nil {
		return nil, err
	}

	records := make([]*models.MessageRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, &models.MessageRecord{
			AccountID:      account.ID,
			MessageUID:     m.UID,
			FromAddr:       m.From,
			Subject:        m.Subject,
			BodyText:       m.BodyText,
			BodyHTML:       m.BodyHTML,
			HasAttachments: m.HasAttachments,
			ReceivedAt:     m.Date,
		})
	}

	result := &SyncResult{Records: records}
	result.Merge, result.CacheErr = s.Merge(ctx, account.ID, records)
	if result.CacheErr != nil {
		s.logger.Warn("cache merge failed, returning fetched messages anyway",
			"email", address, "error", result.CacheErr)
	} else {
		s.logger.Info("mailbox synced",
			"email", address,
			"fetched", len(records),
			"inserted", result.Merge.Inserted,
			"skipped", result.Merge.Skipped)
	}
	return result, nil
}

// Merge inserts records the cache does not hold yet. Records already
// present (same account and UID) are left untouched and counted as
// skipped; existing rows are never updated.
func (s *Service) Merge(ctx context.Context, accountID int64, records []*models.MessageRecord) (MergeResult, error) {
	var res MergeResult
	for _, rec := range records {
		rec.AccountID = accountID
		err := s.store.CreateMessage(ctx, rec)
		switch {
		case errors.Is(err, database.ErrAlreadyExists):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("failed to merge message %d: %w", rec.MessageUID, err)
		default:
			res.Inserted++
		}
	}
	return res, nil
}

// ListMessages serves one page of cached messages for an address
func (s *Service) ListMessages(ctx context.Context, address string, opts models.ListOptions) (*models.MessageList, error) {
	account, err := s.store.GetAccountByEmail(ctx, address)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}

	opts.Normalize()
	messages, total, err := s.store.ListMessages(ctx, account.ID, opts)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*models.MessageRecord{}
	}

	return &models.MessageList{
		Emails:     messages,
		Pagination: models.NewPagination(opts, total),
	}, nil
}
