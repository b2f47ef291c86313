package models

import "time"

// MailboxAccount represents an authorized Gmail mailbox
type MailboxAccount struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	AccessToken  string    `db:"access_token" json:"-"`  // Encrypted OAuth2 access token
	RefreshToken string    `db:"refresh_token" json:"-"` // Encrypted OAuth2 refresh token, may be empty
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
