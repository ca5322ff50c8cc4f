package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/placeloop/go-common/logger"
)

// SQLite implements PlaceStore and CollectionStore on a single database file.
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

var (
	_ PlaceStore      = (*SQLite)(nil)
	_ CollectionStore = (*SQLite)(nil)
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS places (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_collections_owner ON collections(owner_id)`,
	`CREATE TABLE IF NOT EXISTS collection_places (
		collection_id TEXT NOT NULL,
		place_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (collection_id, place_id)
	)`,
}

// OpenSQLite opens (creating if needed) the store at dbPath. If dbPath is
// empty or ":memory:", an in-memory database is used.
func OpenSQLite(dbPath string, log logger.Logger) (*SQLite, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// WAL mode for better concurrent performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating schema: %w", err)
		}
	}

	if log == nil {
		log = logger.NewConsoleLogger()
	}
	log.Debug("sqlite store opened: %s", dbPath)

	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) PlaceByID(ctx context.Context, id string) (*Place, error) {
	var p Place
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, latitude, longitude, updated_at FROM places WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Address, &p.Latitude, &p.Longitude, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(0, updatedAt)
	return &p, nil
}

func (s *SQLite) UpsertPlace(ctx context.Context, p *Place) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO places (id, name, address, latitude, longitude, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   address = excluded.address,
		   latitude = excluded.latitude,
		   longitude = excluded.longitude,
		   updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Address, p.Latitude, p.Longitude, updatedAt.UnixNano())
	return err
}

func (s *SQLite) CollectionsByOwner(ctx context.Context, owner string) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at, updated_at FROM collections
		 WHERE owner_id = ? ORDER BY updated_at DESC, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []Collection
	index := map[string]int{}
	for rows.Next() {
		var c Collection
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(0, createdAt)
		c.UpdatedAt = time.Unix(0, updatedAt)
		index[c.ID] = len(collections)
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := s.db.QueryContext(ctx,
		`SELECT cp.collection_id, cp.place_id
		 FROM collection_places cp
		 JOIN collections c ON c.id = cp.collection_id
		 WHERE c.owner_id = ?
		 ORDER BY cp.collection_id, cp.position`, owner)
	if err != nil {
		return nil, err
	}
	defer members.Close()

	for members.Next() {
		var collectionID, placeID string
		if err := members.Scan(&collectionID, &placeID); err != nil {
			return nil, err
		}
		if i, ok := index[collectionID]; ok {
			collections[i].PlaceIDs = append(collections[i].PlaceIDs, placeID)
		}
	}
	if err := members.Err(); err != nil {
		return nil, err
	}

	return collections, nil
}

func (s *SQLite) CollectionByID(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at, updated_at FROM collections WHERE id = ?`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, createdAt)
	c.UpdatedAt = time.Unix(0, updatedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT place_id FROM collection_places WHERE collection_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var placeID string
		if err := rows.Scan(&placeID); err != nil {
			return nil, err
		}
		c.PlaceIDs = append(c.PlaceIDs, placeID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *SQLite) SaveCollection(ctx context.Context, c *Collection) error {
	now := time.Now()
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   owner_id = excluded.owner_id,
		   name = excluded.name,
		   updated_at = excluded.updated_at`,
		c.ID, c.OwnerID, c.Name, createdAt.UnixNano(), updatedAt.UnixNano()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_places WHERE collection_id = ?`, c.ID); err != nil {
		return err
	}
	for i, placeID := range c.PlaceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_places (collection_id, place_id, position) VALUES (?, ?, ?)`,
			c.ID, placeID, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) DeleteCollection(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_places WHERE collection_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
