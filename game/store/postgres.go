package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS player_info (
	player_id   INTEGER PRIMARY KEY,
	player_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS friend_mapping (
	master_id INTEGER NOT NULL,
	friend_id INTEGER NOT NULL,
	PRIMARY KEY (master_id, friend_id)
);`

// PostgresStore is a FriendStore backed by a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to dsn and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables the store needs when they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddPlayer(ctx context.Context, playerID int32, playerName string) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO player_info (player_id, player_name) VALUES ($1, $2)
		 ON CONFLICT (player_id) DO NOTHING`,
		playerID, playerName)
	if err != nil {
		return fmt.Errorf("failed to add player %d: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerExists
	}
	return nil
}

func (s *PostgresStore) AddFriend(ctx context.Context, masterID, friendID int32) error {
	if masterID == friendID {
		return ErrSelfFriend
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO friend_mapping (master_id, friend_id) VALUES ($1, $2)
		 ON CONFLICT (master_id, friend_id) DO NOTHING`,
		masterID, friendID)
	if err != nil {
		return fmt.Errorf("failed to add friend %d for %d: %w", friendID, masterID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendExists
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) RemoveFriend(ctx context.Context, masterID, friendID int32) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM friend_mapping WHERE master_id = $1 AND friend_id = $2`,
		masterID, friendID)
	if err != nil {
		return fmt.Errorf("failed to remove friend %d for %d: %w", friendID, masterID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendNotFound
	}
	return nil
}

func (s *PostgresStore) ListFriends(ctx context.Context, masterID int32) ([]Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.friend_id, COALESCE(p.player_name, '')
		 FROM friend_mapping f
		 LEFT JOIN player_info p ON p.player_id = f.friend_id
		 WHERE f.master_id = $1
		 ORDER BY f.friend_id`,
		masterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends of %d: %w", masterID, err)
	}

	profiles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Profile])
	if err != nil {
		return nil, fmt.Errorf("failed to scan friends of %d: %w", masterID, err)
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	return profiles, nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}
