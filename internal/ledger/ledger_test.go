package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempLedger(t *testing.T) *FileLedger {
	t.Helper()
	dir := t.TempDir()
	l, err := NewFileLedger(filepath.Join(dir, "state", "last_water"))
	if err != nil {
		t.Fatalf("NewFileLedger: %v", err)
	}
	return l
}

func TestGetUnsetReturnsZero(t *testing.T) {
	l := tempLedger(t)

	got, err := l.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

func TestSetThenGet(t *testing.T) {
	l := tempLedger(t)

	want := time.Unix(1700000000, 0)
	if err := l.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := l.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSetRefusesRegression(t *testing.T) {
	l := tempLedger(t)

	newer := time.Unix(1700000000, 0)
	older := time.Unix(1600000000, 0)

	if err := l.Set(newer); err != nil {
		t.Fatalf("Set newer: %v", err)
	}
	if err := l.Set(older); err == nil {
		t.Fatal("expected error setting older timestamp")
	}

	got, _ := l.Get()
	if !got.Equal(newer) {
		t.Errorf("regressed to %v, want %v", got, newer)
	}
}

func TestSetSameTimestampAllowed(t *testing.T) {
	l := tempLedger(t)

	ts := time.Unix(1700000000, 0)
	if err := l.Set(ts); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := l.Set(ts); err != nil {
		t.Errorf("Set same timestamp: %v", err)
	}
}

func TestCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "last_water")
	if err := os.WriteFile(path, []byte("not-a-number"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := NewFileLedger(path)
	if err != nil {
		t.Fatalf("NewFileLedger: %v", err)
	}
	if _, err := l.Get(); err == nil {
		t.Error("expected error reading corrupt state")
	}
}

func TestEmptyPath(t *testing.T) {
	if _, err := NewFileLedger(""); err == nil {
		t.Error("expected error for empty path")
	}
}
