package database

const schema = `
CREATE TABLE IF NOT EXISTS mailbox_accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS message_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL REFERENCES mailbox_accounts(id) ON DELETE CASCADE,
    message_uid INTEGER NOT NULL,
    from_addr TEXT NOT NULL DEFAULT '',
    subject TEXT NOT NULL DEFAULT '',
    body_text TEXT NOT NULL DEFAULT '',
    body_html TEXT NOT NULL DEFAULT '',
    has_attachments BOOLEAN DEFAULT false,
    received_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(account_id, message_uid)
);

CREATE INDEX IF NOT EXISTS idx_messages_account ON message_records(account_id);
CREATE INDEX IF NOT EXISTS idx_messages_received ON message_records(account_id, received_at);
`
