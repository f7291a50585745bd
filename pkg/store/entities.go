package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

type entityRow struct {
	EntityID      string `db:"entity_id"`
	CanonicalName string `db:"canonical_name"`
	EntityType    string `db:"entity_type"`
	Attributes    string `db:"attributes"`
}

func (r entityRow) toEntity() types.Entity {
	e := types.Entity{
		EntityID:      r.EntityID,
		CanonicalName: r.CanonicalName,
		EntityType:    r.EntityType,
	}
	if r.Attributes != "" && r.Attributes != "{}" {
		_ = json.Unmarshal([]byte(r.Attributes), &e.Attributes)
	}
	return e
}

// UpsertEntity inserts or refreshes an entity by id.
func (s *Store) UpsertEntity(ctx context.Context, entity types.Entity) error {
	attrs, err := json.Marshal(entity.Attributes)
	if err != nil {
		return errors.Wrap(err, "marshaling attributes")
	}
	if entity.Attributes == nil {
		attrs = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_id, canonical_name, entity_type, attributes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			canonical_name = excluded.canonical_name,
			entity_type = excluded.entity_type,
			attributes = excluded.attributes`,
		entity.EntityID, entity.CanonicalName, entity.EntityType, string(attrs))
	return errors.Wrap(err, "upserting entity")
}

// LinkNoteEntity records that a note mentions an entity.
func (s *Store) LinkNoteEntity(ctx context.Context, noteID, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO note_entities (note_id, entity_id) VALUES (?, ?)`,
		noteID, entityID)
	return errors.Wrap(err, "linking note to entity")
}

// FindEntity resolves a name to an entity: exact case-insensitive match
// first, then substring match. entityType narrows the search when non-empty.
// Returns (nil, nil) when nothing matches.
func (s *Store) FindEntity(ctx context.Context, name, entityType string) (*types.Entity, error) {
	query := `SELECT entity_id, canonical_name, entity_type, attributes
		FROM entities WHERE canonical_name = ? COLLATE NOCASE`
	args := []any{name}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` LIMIT 1`

	var row entityRow
	err := s.db.GetContext(ctx, &row, query, args...)
	if err == nil {
		entity := row.toEntity()
		return &entity, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "finding entity")
	}

	// Substring fallback, shortest (most specific) name wins.
	query = `SELECT entity_id, canonical_name, entity_type, attributes
		FROM entities WHERE canonical_name LIKE ? COLLATE NOCASE`
	args = []any{"%" + name + "%"}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY length(canonical_name) LIMIT 1`

	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding entity by substring")
	}
	entity := row.toEntity()
	return &entity, nil
}

// EntitiesByID loads entities preserving the input order; unknown ids are
// skipped.
func (s *Store) EntitiesByID(ctx context.Context, ids []string) ([]types.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT entity_id, canonical_name, entity_type, attributes FROM entities WHERE entity_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expanding entity id list")
	}
	var rows []entityRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "loading entities by id")
	}
	byID := make(map[string]types.Entity, len(rows))
	for _, r := range rows {
		byID[r.EntityID] = r.toEntity()
	}
	out := make([]types.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}
