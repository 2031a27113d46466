package store

import (
	"context"
	"database/sql"
	"sort"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
)

// Tx is a single write transaction. It records which relationship owners and
// named entities the transaction touched so the pre-commit guard knows what
// to re-check without scanning the whole store.
type Tx struct {
	tx *sql.Tx

	relOwners map[string]map[int64]struct{} // relation kind name -> owner keys
	names     map[int]map[int64]struct{}    // entity-type code -> row keys
}

// Transact runs fn inside one write transaction. Any error from fn or from
// the registered guard rolls back every change; the commit is durable before
// Transact returns nil.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	if !s.writable {
		return liberr.New(liberr.CodeIO, "library opened read-only")
	}

	raw, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return liberr.Wrap(liberr.CodeIO, "begin transaction", err)
	}

	tx := &Tx{
		tx:        raw,
		relOwners: make(map[string]map[int64]struct{}),
		names:     make(map[int]map[int64]struct{}),
	}

	if err := fn(tx); err != nil {
		raw.Rollback()
		return err
	}
	if s.guard != nil {
		if err := s.guard(ctx, tx); err != nil {
			raw.Rollback()
			return err
		}
	}
	if err := raw.Commit(); err != nil {
		return liberr.Wrap(liberr.CodeIO, "commit transaction", err)
	}
	return nil
}

// ExecContext runs a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the transaction. Callers close the rows.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// TouchRelation marks an owner's membership set as modified. The guard
// re-checks referential integrity and position contiguity for it.
func (t *Tx) TouchRelation(kind string, owner int64) {
	owners, ok := t.relOwners[kind]
	if !ok {
		owners = make(map[int64]struct{})
		t.relOwners[kind] = owners
	}
	owners[owner] = struct{}{}
}

// TouchName marks a named entity as created or renamed. The guard re-checks
// name uniqueness within its kind.
func (t *Tx) TouchName(ent int, pk int64) {
	pks, ok := t.names[ent]
	if !ok {
		pks = make(map[int64]struct{})
		t.names[ent] = pks
	}
	pks[pk] = struct{}{}
}

// TouchedRelations returns the touched owner keys per relation kind, sorted
// for deterministic guard output.
func (t *Tx) TouchedRelations() map[string][]int64 {
	return flatten(t.relOwners)
}

// TouchedNames returns the touched entity keys per entity-type code, sorted.
func (t *Tx) TouchedNames() map[int][]int64 {
	return flatten(t.names)
}

func flatten[K comparable](in map[K]map[int64]struct{}) map[K][]int64 {
	out := make(map[K][]int64, len(in))
	for k, set := range in {
		keys := make([]int64, 0, len(set))
		for pk := range set {
			keys = append(keys, pk)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		out[k] = keys
	}
	return out
}
