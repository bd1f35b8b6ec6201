package datastore

import (
	"testing"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

func TestMemoryStoreMirrorsSQLBehavior(t *testing.T) {
	st := NewMemory()

	u, err := st.InsertUser("alice", "hash", "Alice", model.RoleUser)
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}

	if _, err := st.InsertUser("alice", "hash", "Other", model.RoleUser); err == nil {
		t.Error("InsertUser accepted a duplicate login")
	}
	if _, err := st.InsertUser("other", "hash", "Alice", model.RoleUser); err == nil {
		t.Error("InsertUser accepted a duplicate name")
	}
	if _, err := st.InsertUser("bob", "hash", "Bob", model.Role(7)); err == nil {
		t.Error("InsertUser accepted an invalid role")
	}

	if err := st.RenameUser(u.ID, "Alicia"); err != nil {
		t.Fatalf("RenameUser: %v", err)
	}
	if got := u.Name(); got != "Alicia" {
		t.Errorf("rename did not reach the shared user: name = %q", got)
	}
	if err := st.RenameUser(9999, "Nobody"); err == nil {
		t.Error("RenameUser succeeded for a missing user id")
	}

	if err := st.AddRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if !u.IsAdmin() {
		t.Error("AddRole did not reach the shared user")
	}
	if err := st.RemoveRole(u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if u.IsAdmin() {
		t.Error("RemoveRole did not reach the shared user")
	}

	users, err := st.LoadAllUsers()
	if err != nil {
		t.Fatalf("LoadAllUsers: %v", err)
	}
	if len(users) != 1 || users[0] != u {
		t.Errorf("LoadAllUsers = %d users, want the single shared pointer", len(users))
	}
}
