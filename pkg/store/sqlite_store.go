package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by SQLite through database/sql
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens a database with the pure-Go SQLite driver. The pool is
// limited to one connection so in-memory databases are not split across
// connections.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteStore initializes the schema in db and returns a store using it
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fsm_snapshots (
			id TEXT PRIMARY KEY,
			machine TEXT NOT NULL,
			state TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			data BLOB,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fsm_snapshots (id, machine, state, ordinal, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			machine = excluded.machine,
			state = excluded.state,
			ordinal = excluded.ordinal,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		snap.ID,
		snap.Machine,
		snap.State,
		snap.Ordinal,
		snap.Data,
		snap.UpdatedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, machine, state, ordinal, data, updated_at
		FROM fsm_snapshots
		WHERE id = ?`,
		id,
	)

	snap, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return snap, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fsm_snapshots WHERE id = ?`, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, machine string) ([]*Snapshot, error) {
	query := `
		SELECT id, machine, state, ordinal, data, updated_at
		FROM fsm_snapshots`
	var args []any
	if machine != "" {
		query += " WHERE machine = ?"
		args = append(args, machine)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var snap Snapshot
	var updated int64
	if err := row.Scan(&snap.ID, &snap.Machine, &snap.State, &snap.Ordinal, &snap.Data, &updated); err != nil {
		return nil, err
	}
	snap.UpdatedAt = time.Unix(0, updated).UTC()
	return &snap, nil
}
