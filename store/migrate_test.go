package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const legacyDonationHeader = "Timestamp,Username,Bits,Message,SpinTriggered"

func writeStoreFile(t *testing.T, s *Store, name, content string) string {
	t.Helper()
	path := filepath.Join(s.Dir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestMigrationAddsCompletedColumn(t *testing.T) {
	s := newTestStore(t)
	path := writeStoreFile(t, s, donationFile, legacyDonationHeader+"\n"+
		`2025-01-01T10:00:00.000Z,"alice",1500,"gg",YES`+"\n"+
		`2025-01-02T10:00:00.000Z,"bob",200,"hey",NO`+"\n")

	donations, _, err := s.Donations()
	if err != nil {
		t.Fatalf("Donations: %v", err)
	}
	if len(donations) != 2 {
		t.Fatalf("got %d donations, want 2", len(donations))
	}
	for _, d := range donations {
		if d.SpinCompletedCount != 0 {
			t.Errorf("%s: completed = %d, want 0", d.Timestamp, d.SpinCompletedCount)
		}
	}

	// The file on disk now carries the new header permanently.
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != donationHeader {
		t.Errorf("header after migration = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",0") {
		t.Errorf("row not extended: %q", lines[1])
	}
}

func TestMigrationIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	path := writeStoreFile(t, s, donationFile, legacyDonationHeader+"\n"+
		`2025-01-01T10:00:00.000Z,"alice",1500,"gg",YES`+"\n")

	if _, _, err := s.Donations(); err != nil {
		t.Fatalf("first read: %v", err)
	}
	first, _ := os.ReadFile(path)
	if _, _, err := s.Donations(); err != nil {
		t.Fatalf("second read: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("second read rewrote an already-migrated file")
	}
}

func TestMigrationPreservesRowsWithTrailingField(t *testing.T) {
	// A legacy header with a mix of old rows and rows that already carry the
	// extra trailing column must only extend the short rows.
	s := newTestStore(t)
	path := writeStoreFile(t, s, donationFile, legacyDonationHeader+"\n"+
		`2025-01-01T10:00:00.000Z,"alice",1500,"gg",YES`+"\n"+
		`2025-01-02T10:00:00.000Z,"bob",3000,"hello",YES,2`+"\n")

	donations, _, err := s.Donations()
	if err != nil {
		t.Fatalf("Donations: %v", err)
	}
	if donations[0].SpinCompletedCount != 0 {
		t.Errorf("old row completed = %d, want 0", donations[0].SpinCompletedCount)
	}
	if donations[1].SpinCompletedCount != 2 {
		t.Errorf("extended row completed = %d, want 2 (preserved)", donations[1].SpinCompletedCount)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if !strings.HasSuffix(lines[2], ",2") || strings.HasSuffix(lines[2], ",2,0") {
		t.Errorf("row with trailing field corrupted: %q", lines[2])
	}
}

func TestMigrationOnMutationPath(t *testing.T) {
	// A mutation against an old-schema file migrates before rewriting, so the
	// completed count lands in a real column.
	s := newTestStore(t)
	ts := "2025-01-01T10:00:00.000Z"
	writeStoreFile(t, s, giftSubFile,
		"Timestamp,Username,SubCount,RecipientUsernames,SpinTriggered\n"+
			ts+`,"gina",6,"a, b",YES`+"\n")

	got, err := s.UpdateGiftSub(ts, func(g *GiftSub) { g.SpinCompletedCount = 1 })
	if err != nil {
		t.Fatalf("UpdateGiftSub: %v", err)
	}
	if got.SpinCompletedCount != 1 {
		t.Errorf("completed = %d, want 1", got.SpinCompletedCount)
	}
	if len(got.Recipients) != 2 {
		t.Errorf("recipients = %v", got.Recipients)
	}

	giftSubs, _, err := s.GiftSubs()
	if err != nil {
		t.Fatalf("GiftSubs: %v", err)
	}
	if giftSubs[0].SpinCompletedCount != 1 {
		t.Errorf("persisted completed = %d", giftSubs[0].SpinCompletedCount)
	}
}
