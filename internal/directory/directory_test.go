package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/remote/memstore"
)

func TestUsernameClaims(t *testing.T) {
	ctx := context.Background()
	d := New(memstore.New(), nil)

	taken, err := d.UsernameTaken(ctx, "Bob")
	if err != nil || taken {
		t.Fatalf("UsernameTaken() = %v, %v; want false", taken, err)
	}

	if err := d.ClaimUsername(ctx, "Bob", "uid-1", "bob@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := d.ClaimUsername(ctx, "bob", "uid-2", "other@example.com"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("second claim err = %v, want ErrUsernameTaken", err)
	}

	taken, _ = d.UsernameTaken(ctx, " BOB ")
	if !taken {
		t.Error("UsernameTaken() = false after claim")
	}

	email, ok, err := d.ResolveUsername(ctx, "bob")
	if err != nil || !ok || email != "bob@example.com" {
		t.Errorf("ResolveUsername() = %q, %v, %v", email, ok, err)
	}
	if _, ok, _ := d.ResolveUsername(ctx, "alice"); ok {
		t.Error("ResolveUsername() found an unclaimed name")
	}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	d := New(memstore.New(), nil)

	if p, err := d.Profile(ctx, "uid-1"); err != nil || p != nil {
		t.Fatalf("Profile() = %v, %v; want nil, nil", p, err)
	}

	if err := d.PutProfile(ctx, model.Identity{ID: "uid-1", Email: "bob@example.com", Username: "Bob"}); err != nil {
		t.Fatal(err)
	}
	p, err := d.Profile(ctx, "uid-1")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Username != "bob" || p.Email != "bob@example.com" {
		t.Errorf("Profile() = %+v", p)
	}
	if p.CreatedAt.IsZero() {
		t.Error("profile CreatedAt not stamped by the server")
	}
}

func TestReleaseUsername(t *testing.T) {
	ctx := context.Background()
	d := New(memstore.New(), nil)

	if err := d.ClaimUsername(ctx, "bob", "uid-1", "bob@example.com"); err != nil {
		t.Fatal(err)
	}
	if err := d.ReleaseUsername(ctx, "bob", "uid-2"); err != nil {
		t.Fatal(err)
	}
	if taken, _ := d.UsernameTaken(ctx, "bob"); !taken {
		t.Fatal("claim released by a different uid")
	}

	if err := d.ReleaseUsername(ctx, "Bob", "uid-1"); err != nil {
		t.Fatal(err)
	}
	if taken, _ := d.UsernameTaken(ctx, "bob"); taken {
		t.Error("claim survived ReleaseUsername")
	}
	if err := d.ReleaseUsername(ctx, "bob", "uid-1"); err != nil {
		t.Errorf("second ReleaseUsername() err = %v", err)
	}
}
