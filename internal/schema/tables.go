package schema

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var ddl string

// DDL returns the pinned structural shape of the store. Used by test
// fixtures and as the drift baseline; never executed against a user's store.
func DDL() string {
	return ddl
}

// EntityTables lists every table whose rows draw from the shared Z_PK key
// space. Key allocation takes the maximum across all of them (§ the host
// assigns keys store-wide, not per table).
var EntityTables = []string{
	"ZITEM", "ZSETLIST", "ZLIBRARY", "ZMETA", "ZCYLON", "ZPAGE", "ZTRACK",
}

// JoinTables maps each foreign-key join table to its column pair
// (owner-side first). The drift tool samples these.
var JoinTables = map[string][2]string{
	"Z_4LIBRARIES": {"Z_7LIBRARIES", "Z_4ITEMS3"},
	"Z_4COMPOSERS": {"Z_4ITEMS1", "Z_10COMPOSERS"},
	"Z_4GENRES":    {"Z_4ITEMS4", "Z_12GENRES"},
	"Z_4KEYWORDS":  {"Z_4ITEMS5", "Z_13KEYWORDS"},
	"Z_4LABELS":    {"Z_4ITEMS2", "Z_14LABELS"},
}

// Querier is the subset of database/sql both *sql.DB and *sql.Tx satisfy.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NextPrimaryKey computes the next store-wide synthetic key: the maximum
// Z_PK across every entity table, plus one. Must run inside the same
// transaction as the insert that consumes it, or interleaved writers could
// collide.
func NextPrimaryKey(ctx context.Context, q Querier) (int64, error) {
	var max int64
	for _, table := range EntityTables {
		var m sql.NullInt64
		row := q.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(Z_PK) FROM %s", table))
		if err := row.Scan(&m); err != nil {
			return 0, fmt.Errorf("next primary key: scan %s: %w", table, err)
		}
		if m.Valid && m.Int64 > max {
			max = m.Int64
		}
	}
	return max + 1, nil
}

// BumpPrimaryKey records an allocated key in the Z_PRIMARYKEY registry so
// the host's own allocator does not hand it out again. Missing registry rows
// are tolerated: older stores do not list every synthetic entity type.
func BumpPrimaryKey(ctx context.Context, q Querier, ent int, pk int64) error {
	_, err := q.ExecContext(ctx,
		"UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_ENT = ? AND Z_MAX < ?",
		pk, ent, pk)
	if err != nil {
		return fmt.Errorf("bump primary key for ent %d: %w", ent, err)
	}
	return nil
}

// Bootstrap creates the pinned table shape and seeds the entity-type
// registry. Test fixtures only; the runtime path opens existing stores.
func Bootstrap(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	for _, et := range registry {
		var super any
		if et.Super != 0 {
			super = et.Super
		}
		_, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO Z_PRIMARYKEY (Z_ENT, Z_NAME, Z_SUPER, Z_MAX) VALUES (?, ?, ?, 0)",
			et.Code, et.Name, super)
		if err != nil {
			return fmt.Errorf("bootstrap registry row %s: %w", et.Name, err)
		}
	}
	return nil
}
