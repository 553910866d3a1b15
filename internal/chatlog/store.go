package chatlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the chat_log schema up to date.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("chatlog: migration source: %w", err)
	}
	drv, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("chatlog: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("chatlog: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("chatlog: migrate up: %w", err)
	}
	return nil
}

// Store persists entries in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert stores one entry.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	const query = `
		INSERT INTO chat_log (logged_at, node, player_id, player, channel, text, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, query,
		e.Time, e.Node, e.PlayerID.String(), e.Player, e.Channel, e.Text, pq.Array(tags))
	if err != nil {
		return fmt.Errorf("chatlog: insert: %w", err)
	}
	return nil
}

// Recent returns a player's latest entries, newest first.
func (s *Store) Recent(ctx context.Context, player string, limit int) ([]Entry, error) {
	const query = `
		SELECT logged_at, node, player_id, player, channel, text, tags
		FROM chat_log
		WHERE lower(player) = lower($1)
		ORDER BY logged_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, player, limit)
	if err != nil {
		return nil, fmt.Errorf("chatlog: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			id string
		)
		if err := rows.Scan(&e.Time, &e.Node, &id, &e.Player, &e.Channel, &e.Text, pq.Array(&e.Tags)); err != nil {
			return nil, fmt.Errorf("chatlog: scan: %w", err)
		}
		if err := e.PlayerID.UnmarshalText([]byte(id)); err != nil {
			return nil, fmt.Errorf("chatlog: player id: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatlog: recent rows: %w", err)
	}
	return out, nil
}
