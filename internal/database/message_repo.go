package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mkarpov/inboxdeck/pkg/models"
)

// CreateMessage inserts a cached message snapshot. The UNIQUE(account_id,
// message_uid) constraint makes the insert a no-op for messages the cache
// already holds; that case is reported as ErrAlreadyExists so the caller
// can count it, and concurrent syncs racing on the same message cannot
// produce duplicates.
func (db *DB) CreateMessage(ctx context.Context, msg *models.MessageRecord) error {
	query := `
		INSERT OR IGNORE INTO message_records (account_id, message_uid, from_addr, subject, body_text, body_html, has_attachments, received_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		msg.AccountID,
		msg.MessageUID,
		msg.FromAddr,
		msg.Subject,
		msg.BodyText,
		msg.BodyHTML,
		msg.HasAttachments,
		msg.ReceivedAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	// Check if row was actually inserted (not ignored due to duplicate)
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// sortColumns maps exposed sort fields onto table columns. Anything not
// listed here never reaches the query string.
var sortColumns = map[models.SortField]string{
	models.SortByDate:    "received_at",
	models.SortByFrom:    "from_addr",
	models.SortBySubject: "subject",
}

// ListMessages returns one page of cached messages for an account along
// with the total row count for the same filter. Expects opts to be
// normalized.
func (db *DB) ListMessages(ctx context.Context, accountID int64, opts models.ListOptions) ([]*models.MessageRecord, int64, error) {
	where := `account_id = ?`
	args := []interface{}{accountID}
	if opts.Search != "" {
		where += ` AND (subject LIKE ? OR from_addr LIKE ? OR body_text LIKE ?)`
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM message_records WHERE ` + where
	if err := db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = "received_at"
	}
	order := "DESC"
	if opts.SortOrder == models.SortAsc {
		order = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT * FROM message_records WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		where, column, order,
	)
	args = append(args, opts.Limit, opts.Offset())

	var messages []*models.MessageRecord
	if err := db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, total, nil
}
