package datastore

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestInsertAndLoadUsers(t *testing.T) {
	st := newTestStore(t)

	alice, err := st.InsertUser("alice", "hash-a", "Alice", model.RoleAdmin)
	if err != nil {
		t.Fatalf("InsertUser(alice): %v", err)
	}
	bob, err := st.InsertUser("bob", "hash-b", "Bob", model.RoleUser)
	if err != nil {
		t.Fatalf("InsertUser(bob): %v", err)
	}
	if alice.ID == bob.ID {
		t.Fatalf("both users got id %d", alice.ID)
	}

	users, err := st.LoadAllUsers()
	if err != nil {
		t.Fatalf("LoadAllUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("LoadAllUsers returned %d users, want 2", len(users))
	}

	got := users[0]
	if got.Login != "alice" || got.Name() != "Alice" || got.PasswordHash != "hash-a" {
		t.Errorf("loaded user = %q/%q/%q, want alice/Alice/hash-a",
			got.Login, got.Name(), got.PasswordHash)
	}
	if diff := cmp.Diff([]string{"ADMIN"}, got.Roles().Names()); diff != "" {
		t.Errorf("alice roles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"USER"}, users[1].Roles().Names()); diff != "" {
		t.Errorf("bob roles mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertUserDuplicateLogin(t *testing.T) {
	st := newTestStore(t)

	if _, err := st.InsertUser("alice", "hash", "Alice", model.RoleUser); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if _, err := st.InsertUser("alice", "hash", "Alice2", model.RoleUser); err == nil {
		t.Error("InsertUser accepted a duplicate login")
	}
	if _, err := st.InsertUser("alice2", "hash", "Alice", model.RoleUser); err == nil {
		t.Error("InsertUser accepted a duplicate name")
	}

	// The failed inserts must not have left partial rows behind.
	users, err := st.LoadAllUsers()
	if err != nil {
		t.Fatalf("LoadAllUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("store has %d users after failed inserts, want 1", len(users))
	}
}

func TestInsertUserInvalidRole(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.InsertUser("alice", "hash", "Alice", model.Role(42)); err == nil {
		t.Error("InsertUser accepted an invalid role")
	}
}

func TestRenameUser(t *testing.T) {
	st := newTestStore(t)

	u, err := st.InsertUser("alice", "hash", "Alice", model.RoleUser)
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	if err := st.RenameUser(u.ID, "Alicia"); err != nil {
		t.Fatalf("RenameUser: %v", err)
	}

	users, err := st.LoadAllUsers()
	if err != nil {
		t.Fatalf("LoadAllUsers: %v", err)
	}
	if got := users[0].Name(); got != "Alicia" {
		t.Errorf("name after rename = %q, want %q", got, "Alicia")
	}

	if err := st.RenameUser(9999, "Nobody"); err == nil {
		t.Error("RenameUser succeeded for a missing user id")
	}
}

func TestAddRemoveRole(t *testing.T) {
	st := newTestStore(t)

	u, err := st.InsertUser("alice", "hash", "Alice", model.RoleUser)
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	if err := st.AddRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	// Granting an already-held role is a no-op.
	if err := st.AddRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("AddRole (repeat): %v", err)
	}

	users, _ := st.LoadAllUsers()
	if diff := cmp.Diff([]string{"ADMIN", "USER"}, users[0].Roles().Names()); diff != "" {
		t.Fatalf("roles after AddRole mismatch (-want +got):\n%s", diff)
	}

	if err := st.RemoveRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	// Revoking an absent role is a no-op.
	if err := st.RemoveRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("RemoveRole (repeat): %v", err)
	}

	users, _ = st.LoadAllUsers()
	if diff := cmp.Diff([]string{"USER"}, users[0].Roles().Names()); diff != "" {
		t.Errorf("roles after RemoveRole mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := st.InsertUser("alice", "hash", "Alice", model.RoleUser); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening must run migrations without clobbering data.
	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	users, err := st2.LoadAllUsers()
	if err != nil {
		t.Fatalf("LoadAllUsers after reopen: %v", err)
	}
	if len(users) != 1 || users[0].Login != "alice" {
		t.Errorf("reopened store lost data: got %d users", len(users))
	}
}
