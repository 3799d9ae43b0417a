package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	s, err := store.Load()
	if err != nil || s != nil {
		t.Fatalf("Load() on missing file = %+v, %v", s, err)
	}

	uni := uuid.New()
	want := &Session{
		AccessToken:        "access",
		AccessTokenExpiry:  time.Now().Add(time.Minute).UTC().Truncate(time.Second),
		RefreshToken:       "refresh",
		RefreshTokenExpiry: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		UserID:             uuid.New(),
		Username:           "student",
		UniversityID:       &uni,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken ||
		!got.AccessTokenExpiry.Equal(want.AccessTokenExpiry) || got.UserID != want.UserID ||
		got.UniversityID == nil || *got.UniversityID != uni {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if s, _ := store.Load(); s != nil {
		t.Errorf("Load() after Clear = %+v", s)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	s := &Session{AccessToken: "a"}
	store.Save(s)
	s.AccessToken = "mutated"

	got, _ := store.Load()
	got.RefreshToken = "mutated too"

	again, _ := store.Load()
	if again.AccessToken != "a" || again.RefreshToken != "" {
		t.Errorf("store shares memory with callers: %+v", again)
	}
}
