// Package store implements the relational store adapter: a thin contract
// over the embedded SQLite database used by the entity repositories.
// Criteria are conjunctive (AND); a nil criteria value compiles to IS NULL
// rather than "= ?" to respect three-valued SQL logic.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/akvo/dws-datapro-sub000/internal/dbx"
)

// Criteria filters rows by column value. A nil value matches NULL.
type Criteria map[string]any

// Values carries column values for inserts and updates.
type Values map[string]any

// Row is a generic result row keyed by column name.
type Row map[string]any

// Order directions for SelectMany.
const (
	Ascending  = "ASC"
	Descending = "DESC"
)

// Store is the adapter over a DBTX (either *sql.DB or *sql.Tx). All write
// errors are propagated to the caller; nothing is swallowed at this layer.
type Store struct {
	db dbx.DBTX
}

// New returns a Store bound to the given DBTX.
func New(db dbx.DBTX) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx, for callers composing multi-statement
// operations inside one transaction.
func (s *Store) WithTx(tx dbx.DBTX) *Store {
	return &Store{db: tx}
}

// sortedKeys gives the deterministic column order used when compiling maps
// into SQL, so identical calls produce identical statements.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// compileCriteria renders a conjunctive WHERE body. Nil values become
// IS NULL and contribute no parameter.
func compileCriteria(criteria Criteria, caseInsensitive bool) (string, []any) {
	if len(criteria) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(criteria))
	params := make([]any, 0, len(criteria))
	for _, key := range sortedKeys(criteria) {
		if criteria[key] == nil {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", key))
			continue
		}
		clause := fmt.Sprintf("%s = ?", key)
		if caseInsensitive {
			clause += " COLLATE NOCASE"
		}
		clauses = append(clauses, clause)
		params = append(params, criteria[key])
	}
	return strings.Join(clauses, " AND "), params
}

// CreateTable creates table with the given column definitions if it does not
// already exist. columnDefs maps column name to its SQL type clause.
func (s *Store) CreateTable(ctx context.Context, table string, columnDefs map[string]string) error {
	defs := make([]string, 0, len(columnDefs))
	for _, name := range sortedKeys(columnDefs) {
		defs = append(defs, fmt.Sprintf("%s %s", name, columnDefs[name]))
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// Insert adds a row and returns its rowid.
func (s *Store) Insert(ctx context.Context, table string, values Values) (int64, error) {
	keys := sortedKeys(values)
	placeholders := make([]string, len(keys))
	params := make([]any, len(keys))
	for i, key := range keys {
		placeholders[i] = "?"
		params[i] = values[key]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(keys, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted rowid for %s: %w", table, err)
	}
	return id, nil
}

// Update modifies rows matching criteria and returns the affected count.
func (s *Store) Update(ctx context.Context, table string, criteria Criteria, values Values) (int64, error) {
	setKeys := sortedKeys(values)
	setClauses := make([]string, len(setKeys))
	params := make([]any, 0, len(setKeys)+len(criteria))
	for i, key := range setKeys {
		setClauses[i] = fmt.Sprintf("%s = ?", key)
		params = append(params, values[key])
	}
	where, whereParams := compileCriteria(criteria, false)
	params = append(params, whereParams...)

	query := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(setClauses, ", "))
	if where != "" {
		query += " WHERE " + where
	}
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for %s: %w", table, err)
	}
	return affected, nil
}

// Delete removes rows matching criteria.
func (s *Store) Delete(ctx context.Context, table string, criteria Criteria) error {
	where, params := compileCriteria(criteria, false)
	query := fmt.Sprintf("DELETE FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	if _, err := s.db.ExecContext(ctx, query, params...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// SelectOne returns the first row matching criteria, or nil when none match.
// A read miss is a normal condition, not an error. orderBy is appended
// verbatim and may carry its own direction (e.g. "createdAt DESC").
func (s *Store) SelectOne(ctx context.Context, table string, criteria Criteria, orderBy string) (Row, error) {
	rows, err := s.selectRows(ctx, table, criteria, orderBy, "", false, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// SelectMany returns all rows matching criteria, optionally ordered.
// Case-insensitive text matching is opt-in per call.
func (s *Store) SelectMany(ctx context.Context, table string, criteria Criteria, orderBy, direction string, caseInsensitive bool) ([]Row, error) {
	return s.selectRows(ctx, table, criteria, orderBy, direction, caseInsensitive, 0)
}

func (s *Store) selectRows(ctx context.Context, table string, criteria Criteria, orderBy, direction string, caseInsensitive bool, limit int) ([]Row, error) {
	where, params := compileCriteria(criteria, caseInsensitive)
	query := fmt.Sprintf("SELECT * FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
		if direction != "" {
			query += " " + direction
		}
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.Query(ctx, query, params...)
}

// Query executes a raw SQL statement and returns generic rows. It exists for
// repository queries the criteria map cannot express (joins, aggregates).
func (s *Store) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		cells := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range cells {
			dests[i] = &cells[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = cells[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Exec executes a raw write statement, returning the affected row count.
func (s *Store) Exec(ctx context.Context, query string, params ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, params...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// DropTable removes the table if it exists.
func (s *Store) DropTable(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// Truncate deletes all rows from the table. Used by logout teardown; foreign
// keys are not cascaded, callers wipe each table explicitly.
func (s *Store) Truncate(ctx context.Context, table string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}
