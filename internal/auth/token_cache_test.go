package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestTokenCache_SaveAndLoad(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
	}{
		{
			name: "app token with expiry",
			token: &oauth2.Token{
				AccessToken: "app-access-token",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(time.Hour),
			},
		},
		{
			name: "token without expiry",
			token: &oauth2.Token{
				AccessToken: "no-expiry",
				TokenType:   "Bearer",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))

			if err := cache.Save(tt.token); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := cache.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded == nil {
				t.Fatal("Load() returned nil token")
			}
			if loaded.AccessToken != tt.token.AccessToken {
				t.Errorf("AccessToken = %q, want %q", loaded.AccessToken, tt.token.AccessToken)
			}
			if !loaded.Expiry.Equal(tt.token.Expiry) {
				t.Errorf("Expiry = %v, want %v", loaded.Expiry, tt.token.Expiry)
			}
		})
	}
}

func TestTokenCache_LoadNonExistent(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "missing", "token.json"))

	token, err := cache.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if token != nil {
		t.Errorf("Load() = %v, want nil for non-existent file", token)
	}
}

func TestTokenCache_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewTokenCache(path).Load(); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestTokenCache_SaveCreatesDirectoryWithPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeply", "token.json")
	cache := NewTokenCache(path)

	if err := cache.Save(&oauth2.Token{AccessToken: "secret-token", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		t.Errorf("File permissions = %o, want no group/other access", mode)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file left behind)", len(entries))
	}
}

func TestTokenCache_SaveNilToken(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Save(nil); err == nil {
		t.Error("Save(nil) should return error")
	}
}

func TestTokenCache_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	cache := NewTokenCache(path)

	if err := cache.Save(&oauth2.Token{AccessToken: "t"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Delete() did not remove token file")
	}

	// Deleting again is not an error.
	if err := cache.Delete(); err != nil {
		t.Errorf("Delete() error = %v, want nil for non-existent file", err)
	}
}
