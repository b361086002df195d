package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatroom/internal/cache"
	"github.com/matheus3301/chatroom/internal/model"
)

func testVault(t *testing.T) (*Vault, string) {
	t.Helper()
	dir := t.TempDir()
	v, err := Open(filepath.Join(dir, "vault.db"), filepath.Join(dir, "vault.key"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = v.Close() })
	return v, dir
}

func TestCredentialsAbsent(t *testing.T) {
	v, _ := testVault(t)

	c, err := v.GetCredentials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("GetCredentials() = %+v, want nil", c)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, _ := testVault(t)

	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "bob@example.com", Secret: "hunter22"}); err != nil {
		t.Fatal(err)
	}
	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "bob@example.com", Secret: "s3cret!"}); err != nil {
		t.Fatal(err)
	}

	c, err := v.GetCredentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Identifier != "bob@example.com" || c.Secret != "s3cret!" {
		t.Errorf("GetCredentials() = %+v", c)
	}

	if err := v.ClearCredentials(ctx); err != nil {
		t.Fatal(err)
	}
	if c, _ := v.GetCredentials(ctx); c != nil {
		t.Errorf("GetCredentials() after clear = %+v", c)
	}
}

func TestSecretIsNotStoredInPlaintext(t *testing.T) {
	ctx := context.Background()
	v, _ := testVault(t)

	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "a@b.c", Secret: "plaintext-password"}); err != nil {
		t.Fatal(err)
	}
	var sealed []byte
	if err := v.db.QueryRowContext(ctx, `SELECT sealed FROM credentials`).Scan(&sealed); err != nil {
		t.Fatal(err)
	}
	if string(sealed) == "plaintext-password" {
		t.Error("secret stored in plaintext")
	}
}

func TestKeyFilePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vault.db")
	keyPath := filepath.Join(dir, "vault.key")

	v, err := Open(dbPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "a@b.c", Secret: "pw1234"}); err != nil {
		t.Fatal(err)
	}
	_ = v.Close()

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key mode = %o, want 600", perm)
	}

	v, err = Open(dbPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = v.Close() }()

	c, err := v.GetCredentials(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.Secret != "pw1234" {
		t.Errorf("GetCredentials() after reopen = %+v", c)
	}
}

func TestWrongKeyFailsToUnseal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "vault.db")
	keyPath := filepath.Join(dir, "vault.key")

	v, err := Open(dbPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "a@b.c", Secret: "pw1234"}); err != nil {
		t.Fatal(err)
	}
	_ = v.Close()

	if err := os.Remove(keyPath); err != nil {
		t.Fatal(err)
	}
	v, err = Open(dbPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = v.Close() }()

	if _, err := v.GetCredentials(ctx); !errors.Is(err, ErrUnsealFailed) {
		t.Errorf("GetCredentials() err = %v, want ErrUnsealFailed", err)
	}
}

func TestMalformedKeyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "vault.key")
	if err := os.WriteFile(keyPath, []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Open(filepath.Join(dir, "vault.db"), keyPath, nil)
	var keyErr *KeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("Open() err = %v, want *KeyError", err)
	}
	if keyErr.Size != 5 {
		t.Errorf("KeyError.Size = %d, want 5", keyErr.Size)
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	v, _ := testVault(t)

	if id, err := v.GetIdentity(ctx); err != nil || id != nil {
		t.Fatalf("GetIdentity() = %+v, %v; want nil, nil", id, err)
	}

	want := model.Identity{
		ID:        "uid-1",
		Email:     "bob@example.com",
		Username:  "bob",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC),
	}
	if err := v.SaveIdentity(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := v.GetIdentity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != want.ID || got.Email != want.Email || got.Username != want.Username ||
		!got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("GetIdentity() = %+v, want %+v", got, want)
	}

	if err := v.ClearIdentity(ctx); err != nil {
		t.Fatal(err)
	}
	if id, _ := v.GetIdentity(ctx); id != nil {
		t.Errorf("GetIdentity() after clear = %+v", id)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	v, _ := testVault(t)

	_ = v.SaveCredentials(ctx, model.Credentials{Identifier: "a@b.c", Secret: "pw1234"})
	_ = v.SaveIdentity(ctx, model.Identity{ID: "u", Email: "a@b.c", Username: "a"})

	if err := v.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if c, _ := v.GetCredentials(ctx); c != nil {
		t.Error("credentials survived Clear")
	}
	if id, _ := v.GetIdentity(ctx); id != nil {
		t.Error("identity survived Clear")
	}
}

func TestVaultAndCacheClearIndependently(t *testing.T) {
	ctx := context.Background()
	v, dir := testVault(t)
	c, err := cache.Open(filepath.Join(dir, "cache.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := v.SaveCredentials(ctx, model.Credentials{Identifier: "bob@example.com", Secret: "secret1"}); err != nil {
		t.Fatal(err)
	}
	if err := v.SaveIdentity(ctx, model.Identity{ID: "uid-1", Email: "bob@example.com", Username: "bob"}); err != nil {
		t.Fatal(err)
	}
	c.Save(ctx, []model.Message{{ID: "m1", Text: "hi"}})

	c.Clear(ctx)
	if got := c.Load(ctx); len(got) != 0 {
		t.Fatalf("cache Load() after Clear = %d messages", len(got))
	}
	if creds, err := v.GetCredentials(ctx); err != nil || creds == nil {
		t.Errorf("GetCredentials() after cache Clear = %+v, %v", creds, err)
	}
	if id, err := v.GetIdentity(ctx); err != nil || id == nil {
		t.Errorf("GetIdentity() after cache Clear = %+v, %v", id, err)
	}

	c.Save(ctx, []model.Message{{ID: "m2", Text: "again"}})
	if err := v.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if got := c.Load(ctx); len(got) != 1 || got[0].ID != "m2" {
		t.Errorf("cache Load() after vault Clear = %+v, want [m2]", got)
	}
}
