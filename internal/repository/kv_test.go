package repository

import (
	"testing"
)

var (
	_ Storage = (*KVRepository)(nil)
	_ Storage = (*MemoryStore)(nil)
)

func TestNewKVRepository(t *testing.T) {
	repo := NewKVRepository(nil)
	if repo == nil {
		t.Fatal("expected non-nil KVRepository")
	}
	if repo.db != nil {
		t.Fatal("expected nil db when constructed with nil")
	}
}

func TestSentinelErrors(t *testing.T) {
	if ErrKeyNotFound == nil {
		t.Fatal("ErrKeyNotFound should not be nil")
	}
	if ErrKeyNotFound.Error() != "storage key not found" {
		t.Fatalf("unexpected error message: %s", ErrKeyNotFound.Error())
	}
}
