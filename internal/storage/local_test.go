package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorePutDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://cdn.local/files/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	key := ObjectKey(7, "Screen 1", "A1")

	url, err := s.Put(ctx, key, []byte("png"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://cdn.local/files/"+key {
		t.Errorf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil || string(got) != "png" {
		t.Fatalf("stored = %q, %v", got, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing key should succeed: %v", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../outside.png", "a/../../b.png"} {
		if _, err := s.Put(context.Background(), key, []byte("x"), "image/png"); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name, qrName, seat, prefix string
	}{
		{"seat", "Screen 1", "B12", "3/Screen%201/B12-"},
		{"single", "Canteen", "", "3/Canteen/single-"},
		{"slash in name", "Hall/2", "A1", "3/Hall%2F2/A1-"},
		{"dot dot name", "..", "A1", "3/%2E%2E/A1-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := ObjectKey(3, tt.qrName, tt.seat)
			if !strings.HasPrefix(k, tt.prefix) || !strings.HasSuffix(k, ".png") {
				t.Fatalf("key = %q, want prefix %q", k, tt.prefix)
			}
		})
	}
	if ObjectKey(1, "x", "A1") == ObjectKey(1, "x", "A1") {
		t.Fatal("keys for the same seat should not collide")
	}
}
