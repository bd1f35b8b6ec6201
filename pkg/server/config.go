package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/gotalk/pkg/crypto"
	"github.com/NicolasHaas/gotalk/pkg/datastore"
	"github.com/NicolasHaas/gotalk/pkg/model"
	"gopkg.in/yaml.v3"
)

// SeedUserYAML represents one user to create in a YAML seed file. Passwords
// are plaintext in the file and hashed on import.
type SeedUserYAML struct {
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Role     string `yaml:"role,omitempty"` // ADMIN or USER, default USER
}

// UsersConfig is the top-level YAML config for seeding users.
type UsersConfig struct {
	Users []SeedUserYAML `yaml:"users"`
}

// UserYAML represents a user in YAML export. Password hashes are never
// exported.
type UserYAML struct {
	ID    int64    `yaml:"id"`
	Login string   `yaml:"login"`
	Name  string   `yaml:"name"`
	Roles []string `yaml:"roles"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// LoadUsersFromYAML reads a users YAML file and creates the accounts that do
// not exist yet. Existing logins are skipped, and one bad entry never aborts
// the rest of the file.
func LoadUsersFromYAML(path string, st datastore.UserStore) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read users config: %w", err)
	}
	return ImportUsersFromYAML(data, st)
}

// ImportUsersFromYAML parses YAML data and creates the listed accounts.
func ImportUsersFromYAML(data []byte, st datastore.UserStore) error {
	var cfg UsersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse users config: %w", err)
	}

	existing, err := st.LoadAllUsers()
	if err != nil {
		return fmt.Errorf("load existing users: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		known[u.Login] = struct{}{}
	}

	created := 0
	for _, entry := range cfg.Users {
		if _, ok := known[entry.Login]; ok {
			slog.Debug("seed user already exists, skipping", "login", entry.Login)
			continue
		}

		role := model.RoleUser
		if entry.Role != "" {
			parsed, ok := model.ParseRole(entry.Role)
			if !ok {
				slog.Error("seed user has unknown role, skipping", "login", entry.Login, "role", entry.Role)
				continue
			}
			role = parsed
		}

		if err := model.ValidateCredentials(entry.Login, entry.Password, entry.Name); err != nil {
			slog.Error("seed user failed validation, skipping", "login", entry.Login, "err", err)
			continue
		}

		hash, err := crypto.HashPassword(entry.Password)
		if err != nil {
			slog.Error("failed to hash seed user password, skipping", "login", entry.Login, "err", err)
			continue
		}

		if _, err := st.InsertUser(entry.Login, hash, entry.Name, role); err != nil {
			slog.Error("failed to create seed user", "login", entry.Login, "err", err)
			continue
		}
		known[entry.Login] = struct{}{}
		created++
	}

	slog.Info("imported users from YAML", "created", created, "total", len(cfg.Users))
	return nil
}

// ExportUsersYAML exports all users as YAML.
func ExportUsersYAML(st datastore.UserStore) ([]byte, error) {
	users, err := st.LoadAllUsers()
	if err != nil {
		return nil, err
	}

	export := UsersExport{}
	for _, u := range users {
		export.Users = append(export.Users, UserYAML{
			ID:    u.ID,
			Login: u.Login,
			Name:  u.Name(),
			Roles: u.Roles().Names(),
		})
	}
	return yaml.Marshal(&export)
}
