package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when an identity cannot be resolved.
var ErrNotFound = errors.New("identity not found")

// Identity is the narrow view of an account the chat core consumes: a stable
// integer id and a display name. Account management itself lives elsewhere.
type Identity struct {
	ID       int64
	Username string
}

// Directory resolves identities by id.
type Directory interface {
	Lookup(ctx context.Context, id int64) (Identity, error)
}

// SQLDirectory implements Directory over the users table.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

// Lookup resolves an identity by id. Returns ErrNotFound for unknown ids.
func (d *SQLDirectory) Lookup(ctx context.Context, id int64) (Identity, error) {
	var ident Identity
	err := d.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = ?`, id,
	).Scan(&ident.ID, &ident.Username)
	if err == sql.ErrNoRows {
		return Identity{}, ErrNotFound
	} else if err != nil {
		return Identity{}, fmt.Errorf("lookup identity %d: %w", id, err)
	}
	return ident, nil
}

// Create inserts a new identity and returns it. Used by seeding and tests;
// account provisioning is outside the chat core.
func (d *SQLDirectory) Create(ctx context.Context, username string) (Identity, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO users (username) VALUES (?)`, username,
	)
	if err != nil {
		return Identity{}, fmt.Errorf("create identity %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Identity{}, fmt.Errorf("create identity %q: %w", username, err)
	}
	return Identity{ID: id, Username: username}, nil
}
