package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setupTestKV creates a temporary SQLite-backed store
func setupTestKV(t *testing.T) (*SQLiteKV, string) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "sensor-kv-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	path := filepath.Join(tmpDir, "test.db")
	kv, err := NewSQLiteKV(path, testLogger())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	return kv, path
}

func TestSQLiteKV_BlobRoundTrip(t *testing.T) {
	kv, _ := setupTestKV(t)

	want := []byte{0x01, 0x02, 0x03, 0xFF}
	if err := kv.SetBlob("batch_0", want); err != nil {
		t.Fatalf("SetBlob failed: %v", err)
	}

	got, err := kv.GetBlob("batch_0")
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("GetBlob = %v, want %v", got, want)
	}

	size, err := kv.BlobSize("batch_0")
	if err != nil {
		t.Fatalf("BlobSize failed: %v", err)
	}
	if size != len(want) {
		t.Errorf("BlobSize = %d, want %d", size, len(want))
	}
}

func TestSQLiteKV_MissingKeyIsNotFound(t *testing.T) {
	kv, _ := setupTestKV(t)

	if _, err := kv.GetBlob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlob missing key = %v, want ErrNotFound", err)
	}
	if _, err := kv.GetCounter("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCounter missing key = %v, want ErrNotFound", err)
	}
}

func TestSQLiteKV_CounterRoundTrip(t *testing.T) {
	kv, _ := setupTestKV(t)

	if err := kv.SetCounter("batch_count", 42); err != nil {
		t.Fatalf("SetCounter failed: %v", err)
	}
	got, err := kv.GetCounter("batch_count")
	if err != nil || got != 42 {
		t.Errorf("GetCounter = (%d, %v), want (42, nil)", got, err)
	}

	// Overwrite
	kv.SetCounter("batch_count", 7)
	got, _ = kv.GetCounter("batch_count")
	if got != 7 {
		t.Errorf("GetCounter after overwrite = %d, want 7", got)
	}
}

func TestSQLiteKV_EraseRemovesBothNamespaces(t *testing.T) {
	kv, _ := setupTestKV(t)

	kv.SetBlob("k", []byte("v"))
	kv.SetCounter("k", 1)
	if err := kv.Erase("k"); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}

	if _, err := kv.GetBlob("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Blob survived erase: %v", err)
	}
	if _, err := kv.GetCounter("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Counter survived erase: %v", err)
	}

	// Erasing a missing key is not an error.
	if err := kv.Erase("never-existed"); err != nil {
		t.Errorf("Erase of missing key = %v, want nil", err)
	}
}

func TestSQLiteKV_DataSurvivesReopen(t *testing.T) {
	kv, path := setupTestKV(t)

	kv.SetBlob("batch_0", []byte("persisted"))
	kv.SetCounter("batch_count", 1)
	if err := kv.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	kv.Close()

	reopened, err := NewSQLiteKV(path, testLogger())
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetBlob("batch_0")
	if err != nil || string(got) != "persisted" {
		t.Errorf("GetBlob after reopen = (%q, %v), want (\"persisted\", nil)", got, err)
	}
	count, err := reopened.GetCounter("batch_count")
	if err != nil || count != 1 {
		t.Errorf("GetCounter after reopen = (%d, %v), want (1, nil)", count, err)
	}
}

func TestSQLiteKV_OverflowStoreIntegration(t *testing.T) {
	kv, _ := setupTestKV(t)
	store := NewOverflowStore(kv, 10, testLogger())

	want := makeReadings(5, 50)
	if err := store.SaveBatch(want); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	got, n, err := store.LoadAll(100)
	if err != nil || n != 5 {
		t.Fatalf("LoadAll = (%d, %v), want (5, nil)", n, err)
	}
	if got[4].Lux != 54 {
		t.Errorf("Last lux = %v, want 54", got[4].Lux)
	}
}
