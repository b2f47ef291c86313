package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkarpov/inboxdeck/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

// UpsertAccount inserts an account or, when the email is already known,
// replaces its token pair. Called after every completed authorization
// flow. A re-authorization without a refresh token keeps the stored one,
// since the provider only hands the refresh token out on consent.
func (db *DB) UpsertAccount(ctx context.Context, account *models.MailboxAccount) error {
	query := `
		INSERT INTO mailbox_accounts (email, access_token, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE
				WHEN excluded.refresh_token != '' THEN excluded.refresh_token
				ELSE refresh_token
			END,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		account.Email,
		account.AccessToken,
		account.RefreshToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}

	// Reload to pick up the row id and timestamps regardless of
	// whether the statement inserted or updated.
	stored, err := db.GetAccountByEmail(ctx, account.Email)
	if err != nil {
		return err
	}
	*account = *stored
	return nil
}

// GetAccountByEmail returns the account owning the given mailbox address
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*models.MailboxAccount, error) {
	var account models.MailboxAccount
	query := `SELECT * FROM mailbox_accounts WHERE email = ?`
	err := db.GetContext(ctx, &account, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// UpdateAccessToken stores a freshly refreshed access token
func (db *DB) UpdateAccessToken(ctx context.Context, id int64, accessToken string) error {
	query := `UPDATE mailbox_accounts SET access_token = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, accessToken, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	return nil
}
