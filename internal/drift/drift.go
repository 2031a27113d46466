// Package drift captures a structural fingerprint of a store and compares
// it against a saved baseline, flagging host schema changes before any
// mutating command trusts the pinned column layout.
package drift

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/danielhopkins/forscore-cli/internal/liberr"
	"github.com/danielhopkins/forscore-cli/internal/schema"
)

// EntityRow is one row of the store's entity-type registry.
type EntityRow struct {
	Ent   int    `yaml:"ent"`
	Name  string `yaml:"name"`
	Super int    `yaml:"super,omitempty"`
}

// Fingerprint is the structural shape of a store: object definitions from
// the catalog, the entity-type registry, and the join-table column sets.
type Fingerprint struct {
	Objects  map[string]string   `yaml:"objects"` // name -> normalized CREATE statement
	Entities []EntityRow         `yaml:"entities"`
	Columns  map[string][]string `yaml:"columns"` // join table -> column names
	Hash     string              `yaml:"hash"`
}

// Capture reads the current structural fingerprint from a store.
func Capture(ctx context.Context, q schema.Querier) (*Fingerprint, error) {
	fp := &Fingerprint{
		Objects: make(map[string]string),
		Columns: make(map[string][]string),
	}

	rows, err := q.QueryContext(ctx,
		"SELECT name, sql FROM sqlite_master WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	for rows.Next() {
		var name, ddl string
		if err := rows.Scan(&name, &ddl); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		fp.Objects[name] = strings.Join(strings.Fields(ddl), " ")
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		"SELECT Z_ENT, Z_NAME, COALESCE(Z_SUPER, 0) FROM Z_PRIMARYKEY ORDER BY Z_ENT")
	if err != nil {
		return nil, fmt.Errorf("read entity registry: %w", err)
	}
	for rows.Next() {
		var e EntityRow
		if err := rows.Scan(&e.Ent, &e.Name, &e.Super); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		fp.Entities = append(fp.Entities, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entity registry: %w", err)
	}

	for table := range schema.JoinTables {
		cols, err := tableColumns(ctx, q, table)
		if err != nil {
			return nil, err
		}
		fp.Columns[table] = cols
	}

	fp.Hash = fp.computeHash()
	return fp, nil
}

func tableColumns(ctx context.Context, q schema.Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols, rows.Err()
}

// computeHash digests the fingerprint's content in a stable order.
func (fp *Fingerprint) computeHash() string {
	h := sha256.New()
	for _, name := range sortedKeys(fp.Objects) {
		fmt.Fprintf(h, "object %s %s\n", name, fp.Objects[name])
	}
	for _, e := range fp.Entities {
		fmt.Fprintf(h, "entity %d %s %d\n", e.Ent, e.Name, e.Super)
	}
	for _, table := range sortedKeys(fp.Columns) {
		fmt.Fprintf(h, "columns %s %s\n", table, strings.Join(fp.Columns[table], ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes a fingerprint baseline atomically.
func Save(fp *Fingerprint, path string) error {
	data, err := yaml.Marshal(fp)
	if err != nil {
		return fmt.Errorf("marshal fingerprint: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return liberr.Wrap(liberr.CodeIO, "write fingerprint baseline", err)
	}
	return nil
}

// Load reads a saved baseline and verifies its content hash.
func Load(path string) (*Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, liberr.Wrap(liberr.CodeIO, "read fingerprint baseline", err)
	}
	var fp Fingerprint
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return nil, fmt.Errorf("parse fingerprint baseline: %w", err)
	}
	if fp.Hash != "" && fp.Hash != fp.computeHash() {
		return nil, liberr.New(liberr.CodeConsistency,
			"fingerprint baseline %s does not match its recorded hash", path)
	}
	return &fp, nil
}

// Diff lists human-readable differences between a baseline and the current
// fingerprint. Empty means structurally identical.
func Diff(baseline, current *Fingerprint) []string {
	var diffs []string

	for _, name := range sortedKeys(baseline.Objects) {
		cur, ok := current.Objects[name]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("object %s removed", name))
		case cur != baseline.Objects[name]:
			diffs = append(diffs, fmt.Sprintf("object %s definition changed", name))
		}
	}
	for _, name := range sortedKeys(current.Objects) {
		if _, ok := baseline.Objects[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("object %s added", name))
		}
	}

	base := make(map[int]EntityRow, len(baseline.Entities))
	for _, e := range baseline.Entities {
		base[e.Ent] = e
	}
	seen := make(map[int]bool, len(current.Entities))
	for _, e := range current.Entities {
		seen[e.Ent] = true
		b, ok := base[e.Ent]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("entity type %d (%s) added", e.Ent, e.Name))
		case b != e:
			diffs = append(diffs, fmt.Sprintf("entity type %d changed: %s/%d -> %s/%d",
				e.Ent, b.Name, b.Super, e.Name, e.Super))
		}
	}
	for _, e := range baseline.Entities {
		if !seen[e.Ent] {
			diffs = append(diffs, fmt.Sprintf("entity type %d (%s) removed", e.Ent, e.Name))
		}
	}

	for _, table := range sortedKeys(baseline.Columns) {
		cur, ok := current.Columns[table]
		if !ok {
			continue // already reported as a removed object
		}
		if strings.Join(cur, ",") != strings.Join(baseline.Columns[table], ",") {
			diffs = append(diffs, fmt.Sprintf("join table %s columns changed: [%s] -> [%s]",
				table, strings.Join(baseline.Columns[table], " "), strings.Join(cur, " ")))
		}
	}

	return diffs
}
