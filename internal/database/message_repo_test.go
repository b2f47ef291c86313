package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mkarpov/inboxdeck/pkg/models"
)

func testAccount(t *testing.T, db *DB, email string) *models.MailboxAccount {
	t.Helper()
	account := &models.MailboxAccount{Email: email, AccessToken: "at"}
	if err := db.UpsertAccount(context.Background(), account); err != nil {
		t.Fatalf("creating account: %v", err)
	}
	return account
}

func TestCreateMessageIgnoresDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	account := testAccount(t, db, "a@x.com")

	msg := &models.MessageRecord{
		AccountID:  account.ID,
		MessageUID: 101,
		FromAddr:   "Bob <bob@y.com>",
		Subject:    "hello",
		BodyText:   "hi",
		ReceivedAt: time.Now(),
	}
	if err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("expected message id to be set")
	}

	// Same (account, UID) again: the original snapshot must win.
	dup := &models.MessageRecord{
		AccountID:  account.ID,
		MessageUID: 101,
		FromAddr:   "Mallory <mallory@y.com>",
		Subject:    "changed",
		ReceivedAt: time.Now(),
	}
	if err := db.CreateMessage(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	messages, total, err := db.ListMessages(ctx, account.ID, normalized(models.ListOptions{}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(messages) != 1 {
		t.Fatalf("expected exactly one stored row, got total=%d len=%d", total, len(messages))
	}
	if messages[0].Subject != "hello" {
		t.Errorf("existing record was modified: subject %q", messages[0].Subject)
	}
}

func TestConcurrentInsertsKeepOneRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	account := testAccount(t, db, "a@x.com")

	// Two overlapping syncs race on the same message; the constraint,
	// not read-before-write logic, must keep a single copy.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := &models.MessageRecord{
				AccountID:  account.ID,
				MessageUID: 55,
				Subject:    fmt.Sprintf("writer %d", i),
				ReceivedAt: time.Now(),
			}
			errs[i] = db.CreateMessage(ctx, msg)
		}(i)
	}
	wg.Wait()

	inserted, skipped := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, ErrAlreadyExists):
			skipped++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inserted != 1 || skipped != 1 {
		t.Errorf("expected one winner and one skip, got inserted=%d skipped=%d", inserted, skipped)
	}

	_, total, err := db.ListMessages(ctx, account.ID, normalized(models.ListOptions{}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 {
		t.Errorf("expected exactly one stored row, got %d", total)
	}
}

func TestCreateMessageSameUIDDifferentAccounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	first := testAccount(t, db, "a@x.com")
	second := testAccount(t, db, "b@x.com")

	for _, account := range []*models.MailboxAccount{first, second} {
		msg := &models.MessageRecord{
			AccountID:  account.ID,
			MessageUID: 7,
			ReceivedAt: time.Now(),
		}
		if err := db.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("insert for account %d: %v", account.ID, err)
		}
	}
}

func normalized(opts models.ListOptions) models.ListOptions {
	opts.Normalize()
	return opts
}

func seedMessages(t *testing.T, db *DB, accountID int64) {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seeds := []struct {
		uid     uint32
		from    string
		subject string
		body    string
		age     time.Duration
	}{
		{1, "alice@y.com", "invoice March", "please find attached", 48 * time.Hour},
		{2, "bob@y.com", "lunch?", "are you free today", 24 * time.Hour},
		{3, "carol@y.com", "re: invoice", "paid yesterday", 0},
	}
	for _, s := range seeds {
		msg := &models.MessageRecord{
			AccountID:  accountID,
			MessageUID: s.uid,
			FromAddr:   s.from,
			Subject:    s.subject,
			BodyText:   s.body,
			ReceivedAt: base.Add(-s.age),
		}
		if err := db.CreateMessage(context.Background(), msg); err != nil {
			t.Fatalf("seeding uid %d: %v", s.uid, err)
		}
	}
}

func TestListMessagesSortAndOrder(t *testing.T) {
	db := newTestDB(t)
	account := testAccount(t, db, "a@x.com")
	seedMessages(t, db, account.ID)

	tests := []struct {
		name  string
		opts  models.ListOptions
		first uint32
	}{
		{"date desc default", models.ListOptions{}, 3},
		{"date asc", models.ListOptions{SortBy: models.SortByDate, SortOrder: models.SortAsc}, 1},
		{"from asc", models.ListOptions{SortBy: models.SortByFrom, SortOrder: models.SortAsc}, 1},
		{"subject desc", models.ListOptions{SortBy: models.SortBySubject, SortOrder: models.SortDesc}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, total, err := db.ListMessages(context.Background(), account.ID, normalized(tt.opts))
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != 3 {
				t.Fatalf("expected total 3, got %d", total)
			}
			if messages[0].MessageUID != tt.first {
				t.Errorf("expected uid %d first, got %d", tt.first, messages[0].MessageUID)
			}
		})
	}
}

func TestListMessagesSearch(t *testing.T) {
	db := newTestDB(t)
	account := testAccount(t, db, "a@x.com")
	seedMessages(t, db, account.ID)

	messages, total, err := db.ListMessages(context.Background(), account.ID,
		normalized(models.ListOptions{Search: "invoice"}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(messages) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(messages))
	}

	// Search also covers sender and body text
	_, total, err = db.ListMessages(context.Background(), account.ID,
		normalized(models.ListOptions{Search: "bob@"}))
	if err != nil {
		t.Fatalf("list by sender: %v", err)
	}
	if total != 1 {
		t.Errorf("expected 1 sender match, got %d", total)
	}
}

func TestListMessagesPagination(t *testing.T) {
	db := newTestDB(t)
	account := testAccount(t, db, "a@x.com")

	for i := 1; i <= 5; i++ {
		msg := &models.MessageRecord{
			AccountID:  account.ID,
			MessageUID: uint32(i),
			Subject:    fmt.Sprintf("msg %d", i),
			ReceivedAt: time.Date(2024, 3, i, 0, 0, 0, 0, time.UTC),
		}
		if err := db.CreateMessage(context.Background(), msg); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	opts := normalized(models.ListOptions{Page: 2, Limit: 2, SortBy: models.SortByDate, SortOrder: models.SortAsc})
	messages, total, err := db.ListMessages(context.Background(), account.ID, opts)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(messages) != 2 {
		t.Fatalf("expected page of 2, got %d", len(messages))
	}
	if messages[0].MessageUID != 3 || messages[1].MessageUID != 4 {
		t.Errorf("expected uids 3,4 on page 2, got %d,%d", messages[0].MessageUID, messages[1].MessageUID)
	}
}

func TestListMessagesScopedToAccount(t *testing.T) {
	db := newTestDB(t)
	first := testAccount(t, db, "a@x.com")
	second := testAccount(t, db, "b@x.com")
	seedMessages(t, db, first.ID)

	_, total, err := db.ListMessages(context.Background(), second.ID, normalized(models.ListOptions{}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("expected no messages for other account, got %d", total)
	}
}
