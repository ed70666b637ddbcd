// Package repository generalizes the read-model CRUD pattern each
// bounded context repeats by hand in the teacher
// (internal/catalog/implementation.go's insertItemIntoReadModel/
// GetItem/UpdateItemCopies/RemoveItem) into one generic, version-
// qualified repository built on sqlx struct scanning instead of the
// teacher's manual rows.Scan column lists.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Entity is the minimum shape every read-model row must expose so the
// generic repository can enforce optimistic concurrency and identify
// rows for update/delete.
type Entity interface {
	GetID() string
	GetVersion() int
}

// Repository provides CRUD against a single table of rows of type T,
// matching the read-model update-with-version-check idiom from
// internal/catalog/implementation.go's UpdateItemCopies/RemoveItem
// (`WHERE id = $1 AND version = $2`), generalized so every bounded
// context can reuse it instead of hand-writing the query each time.
type Repository[T Entity] struct {
	db        *sqlx.DB
	table     string
	idColumn  string
	softDelete bool
}

// Option customizes a Repository.
type Option[T Entity] func(*Repository[T])

// WithSoftDelete marks rows as tombstoned via a deleted_at column
// rather than physically removing them, matching the event store's own
// soft-delete-stream convention (pkg/eventstore.DeleteStream).
func WithSoftDelete[T Entity]() Option[T] {
	return func(r *Repository[T]) { r.softDelete = true }
}

// New builds a Repository for table, keyed by idColumn (defaulting to
// "id" is the caller's responsibility — pass it explicitly since read
// models name their key columns inconsistently, e.g. "item_id").
func New[T Entity](db *sqlx.DB, table, idColumn string, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{db: db, table: table, idColumn: idColumn}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert writes a new row. Callers are expected to have already
// appended the corresponding domain event; the repository only
// maintains the read side.
func (r *Repository[T]) Insert(ctx context.Context, columns []string, entity T) error {
	placeholders := make([]string, len(columns))
	namedCols := make([]string, len(columns))
	for i, c := range columns {
		placeholders[i] = ":" + c
		namedCols[i] = c
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table,
		strings.Join(namedCols, ", "), strings.Join(placeholders, ", "))

	_, err := r.db.NamedExecContext(ctx, query, entity)
	if err != nil {
		return errs.Wrap(errs.Database, "insert into "+r.table, err)
	}
	return nil
}

// FindByID scans one row into dest. Returns NotFound if no row has the
// given id (and, for soft-deletable tables, if the row is tombstoned).
func (r *Repository[T]) FindByID(ctx context.Context, id string, dest *T) error {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1", r.table, r.idColumn)
	if r.softDelete {
		query += " AND deleted_at IS NULL"
	}
	if err := r.db.GetContext(ctx, dest, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NewNotFound(r.table, id)
		}
		return errs.Wrap(errs.Database, "find by id in "+r.table, err)
	}
	return nil
}

// FindAll scans every non-deleted row into dest, which must be a
// pointer to a slice of T.
func (r *Repository[T]) FindAll(ctx context.Context, dest interface{}, orderBy string) error {
	query := fmt.Sprintf("SELECT * FROM %s", r.table)
	if r.softDelete {
		query += " WHERE deleted_at IS NULL"
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	if err := r.db.SelectContext(ctx, dest, query); err != nil {
		return errs.Wrap(errs.Database, "find all in "+r.table, err)
	}
	return nil
}

// FindBatch scans the rows whose id is in ids into dest.
func (r *Repository[T]) FindBatch(ctx context.Context, ids []string, dest interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (?)", r.table, r.idColumn)
	if r.softDelete {
		query += " AND deleted_at IS NULL"
	}
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return errs.Wrap(errs.Database, "build batch query for "+r.table, err)
	}
	query = r.db.Rebind(query)
	if err := r.db.SelectContext(ctx, dest, query, args...); err != nil {
		return errs.Wrap(errs.Database, "find batch in "+r.table, err)
	}
	return nil
}

// Count returns the number of non-deleted rows.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table)
	if r.softDelete {
		query += " WHERE deleted_at IS NULL"
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, errs.Wrap(errs.Database, "count "+r.table, err)
	}
	return count, nil
}

// UpdateVersioned applies set (a map of column -> new value) to the row
// identified by id, requiring its current version to equal
// expectedVersion — the generic form of the teacher's
// "WHERE id = $1 AND version = $2" idiom. If no row matched, returns
// NotFound when the id is gone and VersionConflict when the version
// moved.
func (r *Repository[T]) UpdateVersioned(ctx context.Context, id string, expectedVersion int, set map[string]interface{}) error {
	assignments := make([]string, 0, len(set)+1)
	args := []interface{}{id, expectedVersion}
	i := 3
	for col, val := range set {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	assignments = append(assignments, "version = version + 1")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1 AND version = $2",
		r.table, strings.Join(assignments, ", "), r.idColumn)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.Wrap(errs.Database, "update "+r.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Database, "read rows affected for "+r.table, err)
	}
	if affected == 0 {
		return r.conflictOrNotFound(ctx, id, expectedVersion)
	}
	return nil
}

// SoftDelete tombstones the row (requires WithSoftDelete). Physical
// Delete is intentionally not exposed — read models are rebuilt from
// the event log, never hand-pruned.
func (r *Repository[T]) SoftDelete(ctx context.Context, id string, expectedVersion int) error {
	query := fmt.Sprintf("UPDATE %s SET deleted_at = NOW(), version = version + 1 WHERE %s = $1 AND version = $2 AND deleted_at IS NULL", r.table, r.idColumn)
	result, err := r.db.ExecContext(ctx, query, id, expectedVersion)
	if err != nil {
		return errs.Wrap(errs.Database, "soft delete in "+r.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Database, "read rows affected for "+r.table, err)
	}
	if affected == 0 {
		return r.conflictOrNotFound(ctx, id, expectedVersion)
	}
	return nil
}

// Restore reverses a prior SoftDelete.
func (r *Repository[T]) Restore(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET deleted_at = NULL, version = version + 1 WHERE %s = $1", r.table, r.idColumn)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errs.Wrap(errs.Database, "restore in "+r.table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Database, "read rows affected for "+r.table, err)
	}
	if affected == 0 {
		return errs.NewNotFound(r.table, id)
	}
	return nil
}

// conflictOrNotFound distinguishes a missing row from a stale version
// for callers on the VersionConflict-vs-NotFound split decided in
// DESIGN.md's Open Question #2.
func (r *Repository[T]) conflictOrNotFound(ctx context.Context, id string, expectedVersion int) error {
	query := fmt.Sprintf("SELECT version FROM %s WHERE %s = $1", r.table, r.idColumn)
	var actual int
	err := r.db.GetContext(ctx, &actual, query, id)
	if err != nil {
		return errs.NewNotFound(r.table, id)
	}
	return errs.NewVersionConflict(expectedVersion, actual)
}
