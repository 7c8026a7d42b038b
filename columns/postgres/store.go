// Package postgres implements columns.Store on PostgreSQL. Rows map to a
// relational (table, key, name, value) layout with a composite primary
// key; ordered slices come straight from ORDER BY on the key. Batches
// apply inside one transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/inboxkit/mailstore/columns"
)

const schema = `
CREATE TABLE IF NOT EXISTS %[1]s_columns (
	tbl     TEXT  NOT NULL,
	row_key TEXT  NOT NULL,
	name    TEXT  NOT NULL,
	value   BYTEA NOT NULL,
	PRIMARY KEY (tbl, row_key, name)
);
CREATE TABLE IF NOT EXISTS %[1]s_counters (
	tbl     TEXT   NOT NULL,
	row_key TEXT   NOT NULL,
	name    TEXT   NOT NULL,
	value   BIGINT NOT NULL,
	PRIMARY KEY (tbl, row_key, name)
);`

// DefaultTablePrefix prefixes the two backing tables.
const DefaultTablePrefix = "mailstore"

// Store implements columns.Store using PostgreSQL.
type Store struct {
	dsn       string
	db        *sqlx.DB
	prefix    string
	connected int32
}

var _ columns.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithTablePrefix sets the backing table prefix. Default is
// DefaultTablePrefix.
func WithTablePrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a store for the given connection string.
// Call Connect to open the pool and create the schema.
func New(dsn string, opts ...Option) *Store {
	s := &Store{dsn: dsn, prefix: DefaultTablePrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) columnsTable() string { return s.prefix + "_columns" }
func (s *Store) countersTable() string { return s.prefix + "_counters" }

// Connect opens the pool and creates the backing tables.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", s.dsn)
	if err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, s.prefix)); err != nil {
		db.Close()
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: create schema: %w", err)
	}
	s.db = db
	return nil
}

// Close closes the pool.
func (s *Store) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 1, 0) {
		return nil
	}
	return s.db.Close()
}

// Get returns the named columns of a row.
func (s *Store) Get(ctx context.Context, table, key string, names []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = ? AND row_key = ? AND name IN (?)`, s.columnsTable()),
		table, key, names)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var value []byte
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Row returns every column of a row in name order.
func (s *Store) Row(ctx context.Context, table, key string) ([]columns.Column, error) {
	rows, err := s.db.QueryxContext(ctx,
		fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = $1 AND row_key = $2 ORDER BY name`, s.columnsTable()),
		table, key)
	if err != nil {
		return nil, fmt.Errorf("postgres: row: %w", err)
	}
	defer rows.Close()
	return scanColumns(rows)
}

// Slice returns up to count columns starting after start.
func (s *Store) Slice(ctx context.Context, table, key, start string, count int, reverse bool) ([]columns.Column, error) {
	if count <= 0 {
		return nil, nil
	}
	var query string
	args := []any{table, key, start, count}
	if reverse {
		if start == "" {
			query = fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = $1 AND row_key = $2
				ORDER BY name DESC LIMIT $3`, s.columnsTable())
			args = []any{table, key, count}
		} else {
			query = fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = $1 AND row_key = $2 AND name < $3
				ORDER BY name DESC LIMIT $4`, s.columnsTable())
		}
	} else {
		query = fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = $1 AND row_key = $2 AND name > $3
			ORDER BY name LIMIT $4`, s.columnsTable())
	}
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: slice: %w", err)
	}
	defer rows.Close()
	return scanColumns(rows)
}

func scanColumns(rows *sqlx.Rows) ([]columns.Column, error) {
	var out []columns.Column
	for rows.Next() {
		var c columns.Column
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Keys returns up to count row keys sharing prefix, after start.
func (s *Store) Keys(ctx context.Context, table, prefix, start string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		fmt.Sprintf(`SELECT DISTINCT row_key FROM %s
			WHERE tbl = $1 AND row_key LIKE $2 AND row_key > $3
			ORDER BY row_key LIMIT $4`, s.columnsTable()),
		table, escapeLike(prefix)+"%", start, count)
	if err != nil {
		return nil, fmt.Errorf("postgres: keys: %w", err)
	}
	return keys, nil
}

// escapeLike escapes LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Apply submits the batch inside one transaction.
func (s *Store) Apply(ctx context.Context, b *columns.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	for _, m := range b.Mutations() {
		switch m.Op {
		case columns.OpInsert:
			for _, c := range m.Columns {
				_, err = tx.ExecContext(ctx,
					fmt.Sprintf(`INSERT INTO %s (tbl, row_key, name, value) VALUES ($1, $2, $3, $4)
						ON CONFLICT (tbl, row_key, name) DO UPDATE SET value = EXCLUDED.value`, s.columnsTable()),
					m.Table, m.Key, c.Name, ensureBytes(c.Value))
				if err != nil {
					return fmt.Errorf("postgres: insert: %w", err)
				}
			}
		case columns.OpDeleteColumns:
			query, args, inErr := sqlx.In(
				fmt.Sprintf(`DELETE FROM %s WHERE tbl = ? AND row_key = ? AND name IN (?)`, s.columnsTable()),
				m.Table, m.Key, m.Names)
			if inErr != nil {
				return inErr
			}
			if _, err = tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				return fmt.Errorf("postgres: delete columns: %w", err)
			}
		case columns.OpDeleteRow:
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE tbl = $1 AND row_key = $2`, s.columnsTable()),
				m.Table, m.Key)
			if err != nil {
				return fmt.Errorf("postgres: delete row: %w", err)
			}
		case columns.OpAddCounters:
			for name, d := range m.Deltas {
				if err = s.incrCounter(ctx, tx, m.Table, m.Key, name, d); err != nil {
					return err
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// execer covers both *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) incrCounter(ctx context.Context, e execer, table, key, name string, delta int64) error {
	_, err := e.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (tbl, row_key, name, value) VALUES ($1, $2, $3, $4)
			ON CONFLICT (tbl, row_key, name) DO UPDATE SET value = %s.value + EXCLUDED.value`,
			s.countersTable(), s.countersTable()),
		table, key, name, delta)
	if err != nil {
		return fmt.Errorf("postgres: incr counter: %w", err)
	}
	return nil
}

// ensureBytes keeps empty column values non-NULL.
func ensureBytes(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}

// AddCounters atomically adds counter deltas.
func (s *Store) AddCounters(ctx context.Context, table, key string, deltas map[string]int64) error {
	for name, d := range deltas {
		if err := s.incrCounter(ctx, s.db, table, key, name, d); err != nil {
			return err
		}
	}
	return nil
}

// GetCounters returns the named counter values.
func (s *Store) GetCounters(ctx context.Context, table, key string, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = ? AND row_key = ? AND name IN (?)`, s.countersTable()),
		table, key, names)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get counters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// RowCounters returns every counter column of a row.
func (s *Store) RowCounters(ctx context.Context, table, key string) (map[string]int64, error) {
	rows, err := s.db.QueryxContext(ctx,
		fmt.Sprintf(`SELECT name, value FROM %s WHERE tbl = $1 AND row_key = $2`, s.countersTable()),
		table, key)
	if err != nil {
		return nil, fmt.Errorf("postgres: row counters: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// DeleteCounters removes the named counter columns, or the whole row.
func (s *Store) DeleteCounters(ctx context.Context, table, key string, names ...string) error {
	if len(names) == 0 {
		_, err := s.db.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE tbl = $1 AND row_key = $2`, s.countersTable()),
			table, key)
		if err != nil {
			return fmt.Errorf("postgres: delete counters: %w", err)
		}
		return nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf(`DELETE FROM %s WHERE tbl = ? AND row_key = ? AND name IN (?)`, s.countersTable()),
		table, key, names)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("postgres: delete counters: %w", err)
	}
	return nil
}
