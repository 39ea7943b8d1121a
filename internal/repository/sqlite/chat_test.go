package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/sakif/datachat/internal/model"
)

func createTestEntry(t *testing.T, db *DB, userID, datasetID, question string) *model.ChatEntry {
	t.Helper()
	entry := &model.ChatEntry{
		UserID:    userID,
		DatasetID: datasetID,
		Question:  question,
		Answer:    "answer to " + question,
	}
	if err := db.CreateChatEntry(context.Background(), entry); err != nil {
		t.Fatalf("failed to create test entry: %v", err)
	}
	return entry
}

func TestListRecent_LimitAndOrder(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	ds := createTestDataset(t, db, alice.ID, "sales.csv", []string{"a"})

	// Six sequential exchanges; only the five most recent may come back.
	for i := 1; i <= 6; i++ {
		createTestEntry(t, db, alice.ID, ds.ID, fmt.Sprintf("question %d", i))
	}

	entries, err := db.ListRecent(context.Background(), alice.ID, "", 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}

	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	if entries[0].Question != "question 6" {
		t.Errorf("entries[0].Question = %q, want %q (newest first)", entries[0].Question, "question 6")
	}
	if entries[4].Question != "question 2" {
		t.Errorf("entries[4].Question = %q, want %q", entries[4].Question, "question 2")
	}
}

func TestListRecent_JoinsDatasetName(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	ds := createTestDataset(t, db, alice.ID, "sales.csv", []string{"a"})
	createTestEntry(t, db, alice.ID, ds.ID, "how many rows?")

	entries, err := db.ListRecent(context.Background(), alice.ID, "", 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].DatasetName != "sales.csv" {
		t.Errorf("DatasetName = %q, want sales.csv", entries[0].DatasetName)
	}
}

func TestListRecent_DatasetFilter(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	sales := createTestDataset(t, db, alice.ID, "sales.csv", []string{"a"})
	people := createTestDataset(t, db, alice.ID, "people.csv", []string{"b"})

	createTestEntry(t, db, alice.ID, sales.ID, "about sales")
	createTestEntry(t, db, alice.ID, people.ID, "about people")

	entries, err := db.ListRecent(context.Background(), alice.ID, sales.ID, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Question != "about sales" {
		t.Errorf("filtered entries = %+v, want only the sales question", entries)
	}
}

func TestListRecent_IsolatedByOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	aliceDS := createTestDataset(t, db, alice.ID, "private.csv", []string{"x"})

	createTestEntry(t, db, alice.ID, aliceDS.ID, "alice's question")

	entries, err := db.ListRecent(context.Background(), bob.ID, "", 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("bob sees %d of alice's entries, want 0", len(entries))
	}

	// Even naming alice's dataset ID explicitly leaks nothing
	entries, err = db.ListRecent(context.Background(), bob.ID, aliceDS.ID, 5)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("bob sees %d entries via alice's dataset ID, want 0", len(entries))
	}
}
