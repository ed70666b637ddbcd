// Package schemaregistry implements the event-type/version schema
// registry from spec §4.2/§3.5: dense positive versions per event
// type, capped at a configured maximum, no schema ever deleted. No
// teacher file does this directly — the shape follows
// other_examples/.../axonops-axonops-schema-registry's registry
// concept and the teacher's own read-preferred-lock idiom
// (go-chaos.ChaosEngine.mu) for the TTL cache.
package schemaregistry

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jules-labs/lexitrace/pkg/errs"
)

// Schema is one registered (event_type, version) definition.
type Schema struct {
	EventType   string
	Version     int
	Definition  string // opaque schema definition (JSON Schema / protobuf descriptor text)
	Description string
	CreatedAt   time.Time
}

type cacheEntry struct {
	schema    Schema
	expiresAt time.Time
}

// Registry is backed by Postgres for durability and a bounded
// TTL cache for read-heavy GetSchema calls, matching spec §9's "global
// state... strictly bounded and lifetime-managed" requirement.
type Registry struct {
	db          *sql.DB
	maxVersions int
	cacheTTL    time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry // key: eventType or eventType@version
}

func New(db *sql.DB, maxVersions int, cacheTTL time.Duration) *Registry {
	return &Registry{
		db:          db,
		maxVersions: maxVersions,
		cacheTTL:    cacheTTL,
		cache:       make(map[string]cacheEntry),
	}
}

// RegisterSchema assigns the next dense version for eventType. Fails
// with MaxVersionsExceeded once maxVersions schemas already exist for
// that type.
func (r *Registry) RegisterSchema(ctx context.Context, eventType, definition, description string) (Schema, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Schema{}, errs.Wrap(errs.Database, "begin transaction", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_schemas WHERE event_type = $1`, eventType).Scan(&count); err != nil {
		return Schema{}, errs.Wrap(errs.Database, "count schema versions", err)
	}
	if count >= r.maxVersions {
		return Schema{}, errs.New(errs.MaxVersionsExceeded, "event type has reached its maximum schema version count")
	}

	nextVersion := count + 1
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_schemas (event_type, version, definition, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, eventType, nextVersion, definition, description, now)
	if err != nil {
		return Schema{}, errs.Wrap(errs.Database, "insert schema", err)
	}
	if err := tx.Commit(); err != nil {
		return Schema{}, errs.Wrap(errs.Database, "commit schema registration", err)
	}

	schema := Schema{EventType: eventType, Version: nextVersion, Definition: definition, Description: description, CreatedAt: now}
	r.put(cacheKeyLatest(eventType), schema)
	r.put(cacheKeyVersion(eventType, nextVersion), schema)
	return schema, nil
}

// GetSchema returns the given version, or the latest if version is
// nil. Returns SchemaNotFound if the type/version is unknown.
func (r *Registry) GetSchema(ctx context.Context, eventType string, version *int) (Schema, error) {
	key := cacheKeyLatest(eventType)
	if version != nil {
		key = cacheKeyVersion(eventType, *version)
	}
	if schema, ok := r.get(key); ok {
		return schema, nil
	}

	var schema Schema
	var err error
	if version == nil {
		err = r.db.QueryRowContext(ctx, `
			SELECT event_type, version, definition, description, created_at
			FROM event_schemas WHERE event_type = $1
			ORDER BY version DESC LIMIT 1
		`, eventType).Scan(&schema.EventType, &schema.Version, &schema.Definition, &schema.Description, &schema.CreatedAt)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT event_type, version, definition, description, created_at
			FROM event_schemas WHERE event_type = $1 AND version = $2
		`, eventType, *version).Scan(&schema.EventType, &schema.Version, &schema.Definition, &schema.Description, &schema.CreatedAt)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Schema{}, errs.New(errs.SchemaNotFound, "UNKNOWN_EVENT_TYPE")
	}
	if err != nil {
		return Schema{}, errs.Wrap(errs.Database, "query schema", err)
	}

	r.put(key, schema)
	return schema, nil
}

// GetSchemaVersions returns every registered version for eventType,
// ascending (superseded schemas remain valid for old events, per §3.5).
func (r *Registry) GetSchemaVersions(ctx context.Context, eventType string) ([]Schema, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, version, definition, description, created_at
		FROM event_schemas WHERE event_type = $1 ORDER BY version ASC
	`, eventType)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "query schema versions", err)
	}
	defer rows.Close()

	var out []Schema
	for rows.Next() {
		var s Schema
		if err := rows.Scan(&s.EventType, &s.Version, &s.Definition, &s.Description, &s.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Database, "scan schema", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEventTypes returns the latest schema per event type, optionally
// filtered to a "<context>.*" prefix.
func (r *Registry) ListEventTypes(ctx context.Context, context string) ([]Schema, error) {
	query := `
		SELECT DISTINCT ON (event_type) event_type, version, definition, description, created_at
		FROM event_schemas
	`
	var args []interface{}
	if context != "" {
		query += " WHERE event_type LIKE $1"
		args = append(args, strings.TrimSuffix(context, "*")+"%")
	}
	query += " ORDER BY event_type, version DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Database, "list event types", err)
	}
	defer rows.Close()

	var out []Schema
	for rows.Next() {
		var s Schema
		if err := rows.Scan(&s.EventType, &s.Version, &s.Definition, &s.Description, &s.CreatedAt); err != nil {
			return nil, errs.Wrap(errs.Database, "scan schema", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Registry) get(key string) (Schema, bool) {
	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Schema{}, false
	}
	return entry.schema, true
}

func (r *Registry) put(key string, schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-checked: another goroutine may have just cached a newer
	// registration for "latest" while we were computing ours.
	if existing, ok := r.cache[key]; ok && existing.schema.Version > schema.Version {
		return
	}
	r.cache[key] = cacheEntry{schema: schema, expiresAt: time.Now().Add(r.cacheTTL)}
}

func cacheKeyLatest(eventType string) string { return eventType + "@latest" }
func cacheKeyVersion(eventType string, v int) string {
	return eventType + "@" + strconv.Itoa(v)
}
