package models

import "time"

// MessageRecord is a cached snapshot of one inbox message.
// A record is written once per (account, UID) pair and never updated:
// the cache keeps whatever the first sync observed.
type MessageRecord struct {
	ID             int64     `db:"id" json:"id"`
	AccountID      int64     `db:"account_id" json:"-"`
	MessageUID     uint32    `db:"message_uid" json:"messageUid"` // IMAP UID assigned by the server
	FromAddr       string    `db:"from_addr" json:"from"`         // Sender display string
	Subject        string    `db:"subject" json:"subject"`
	BodyText       string    `db:"body_text" json:"bodyText"`
	BodyHTML       string    `db:"body_html" json:"bodyHtml"`
	HasAttachments bool      `db:"has_attachments" json:"hasAttachments"`
	ReceivedAt     time.Time `db:"received_at" json:"date"`
	CreatedAt      time.Time `db:"created_at" json:"-"`
}
