package journal

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vitalscan.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestJournalAppendAndRecent(t *testing.T) {
	j, _ := openTestJournal(t)

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := j.Append(Entry{
			SessionID:   "sess-" + string(rune('a'+i)),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			HeartRate:   70 + i,
			HRV:         42.5,
			Systolic:    118,
			Diastolic:   76,
			StressLevel: "Normal",
			Confidence:  88,
			Outcome:     "cloud",
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SessionID != "sess-c" {
		t.Errorf("first entry = %q, want the newest scan", entries[0].SessionID)
	}
	if entries[0].HeartRate != 72 {
		t.Errorf("HeartRate = %d, want 72", entries[0].HeartRate)
	}
	if entries[0].Outcome != "cloud" {
		t.Errorf("Outcome = %q, want cloud", entries[0].Outcome)
	}
	if !entries[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Timestamp = %v, want %v", entries[0].Timestamp, base.Add(2*time.Minute))
	}
}

func TestJournalStampsMissingTimestamp(t *testing.T) {
	j, _ := openTestJournal(t)

	if err := j.Append(Entry{SessionID: "sess-x", Outcome: "local"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := j.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry should be stamped with a timestamp on insert")
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitalscan.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := j.Append(Entry{SessionID: "sess-1", Outcome: "local"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	entries, err := reopened.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != "sess-1" {
		t.Errorf("journal lost data across reopen: %+v", entries)
	}
}

func TestJournalRecentOnEmpty(t *testing.T) {
	j, _ := openTestJournal(t)

	entries, err := j.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries from an empty journal", len(entries))
	}
}
