package datastore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/gotalk/pkg/model"
)

// Store is the SQLite-backed UserStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		login    TEXT NOT NULL UNIQUE CHECK(length(login) >= 3),
		password TEXT NOT NULL,
		name     TEXT NOT NULL UNIQUE CHECK(length(name) >= 2)
	);

	CREATE TABLE IF NOT EXISTS roles (
		id   INTEGER PRIMARY KEY,
		role TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS users_to_roles (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id),
		PRIMARY KEY (user_id, role_id)
	);

	INSERT OR IGNORE INTO roles (id, role) VALUES (1, 'ADMIN'), (2, 'USER');
	`

	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate to v%d: %w", m.version, err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

// LoadAllUsers returns every user joined with their role set.
func (s *Store) LoadAllUsers() ([]*model.User, error) {
	ctx := context.Background()

	rows, err := s.db.QueryContext(ctx, "SELECT id, login, password, name FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("datastore: load users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type userRow struct {
		id                int64
		login, hash, name string
	}
	var raw []userRow
	for rows.Next() {
		var r userRow
		if err := rows.Scan(&r.id, &r.login, &r.hash, &r.name); err != nil {
			return nil, fmt.Errorf("datastore: scan user: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: load users: %w", err)
	}

	users := make([]*model.User, 0, len(raw))
	for _, r := range raw {
		roles, err := s.rolesForUser(ctx, r.id)
		if err != nil {
			return nil, err
		}
		users = append(users, model.NewUser(r.id, r.login, r.hash, r.name, roles))
	}
	return users, nil
}

func (s *Store) rolesForUser(ctx context.Context, userID int64) (model.RoleSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id
		 FROM roles r
		 JOIN users_to_roles utr ON r.id = utr.role_id
		 WHERE utr.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("datastore: load roles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	roles := model.NewRoleSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("datastore: scan role: %w", err)
		}
		roles.Add(model.Role(id))
	}
	return roles, rows.Err()
}

// InsertUser persists a new user and its initial role in one transaction.
func (s *Store) InsertUser(login, passwordHash, name string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("datastore: insert user: %w", model.ErrInvalidRole)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("datastore: insert user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (login, password, name) VALUES (?, ?, ?)",
		login, passwordHash, name)
	if err != nil {
		return nil, fmt.Errorf("datastore: insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("datastore: insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users_to_roles (user_id, role_id) VALUES (?, ?)",
		id, role.StorageID()); err != nil {
		return nil, fmt.Errorf("datastore: insert user role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("datastore: insert user: %w", err)
	}
	return model.NewUser(id, login, passwordHash, name, model.NewRoleSet(role)), nil
}

// RenameUser changes a user's display name.
func (s *Store) RenameUser(id int64, newName string) error {
	res, err := s.db.ExecContext(context.Background(),
		"UPDATE users SET name = ? WHERE id = ?", newName, id)
	if err != nil {
		return fmt.Errorf("datastore: rename user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("datastore: rename user: no user with id %d", id)
	}
	return nil
}

// AddRole grants a role to a user. Granting an already-held role is a no-op.
func (s *Store) AddRole(userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("datastore: add role: %w", model.ErrInvalidRole)
	}
	_, err := s.db.ExecContext(context.Background(),
		"INSERT OR IGNORE INTO users_to_roles (user_id, role_id) VALUES (?, ?)",
		userID, role.StorageID())
	if err != nil {
		return fmt.Errorf("datastore: add role: %w", err)
	}
	return nil
}

// RemoveRole revokes a role from a user. No-op if the user does not hold it.
func (s *Store) RemoveRole(userID int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("datastore: remove role: %w", model.ErrInvalidRole)
	}
	_, err := s.db.ExecContext(context.Background(),
		"DELETE FROM users_to_roles WHERE user_id = ? AND role_id = ?",
		userID, role.StorageID())
	if err != nil {
		return fmt.Errorf("datastore: remove role: %w", err)
	}
	return nil
}
