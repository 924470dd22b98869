package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewStore(filepath.Join(t.TempDir(), "journal.db"), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Seq: 1, ChatID: "c1", Category: "PS", QuestionID: "ps-1", Outcome: OutcomeReplied},
		{Seq: 2, ChatID: "c1", Outcome: OutcomeHelp},
		{Seq: 3, ChatID: "c2", Category: "DS", Outcome: OutcomeFailed, Error: "no questions in category"},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("record seq=%d: %v", e.Seq, err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	// Newest first.
	if got[0].Seq != 3 || got[2].Seq != 1 {
		t.Fatalf("expected newest-first order, got seqs %d %d %d", got[0].Seq, got[1].Seq, got[2].Seq)
	}
	if got[0].Outcome != OutcomeFailed || got[0].Error == "" {
		t.Fatalf("failure entry not preserved: %+v", got[0])
	}
	if got[2].QuestionID != "ps-1" || got[2].Category != "PS" {
		t.Fatalf("reply entry not preserved: %+v", got[2])
	}
}

func TestRecent_Limit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		if err := store.Record(ctx, Entry{Seq: i, ChatID: "c", Outcome: OutcomeReplied}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Seq != 5 || got[1].Seq != 4 {
		t.Fatalf("expected seqs [5 4], got [%d %d]", got[0].Seq, got[1].Seq)
	}
}

func TestRecent_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}
