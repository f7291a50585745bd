package store

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

type noteRow struct {
	NoteID     string `db:"note_id"`
	NoteType   string `db:"note_type"`
	StartTS    int64  `db:"start_ts"`
	EndTS      int64  `db:"end_ts"`
	Summary    string `db:"summary"`
	Categories string `db:"categories"`
}

func (r noteRow) toNote() types.Note {
	note := types.Note{
		NoteID:   r.NoteID,
		NoteType: r.NoteType,
		StartTS:  r.StartTS,
		EndTS:    r.EndTS,
		Summary:  r.Summary,
	}
	if r.Categories != "" {
		// Malformed category JSON degrades to no categories.
		_ = json.Unmarshal([]byte(r.Categories), &note.Categories)
	}
	return note
}

func rowsToNotes(rows []noteRow) []types.Note {
	notes := make([]types.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, r.toNote())
	}
	return notes
}

// InsertNote upserts a note by id.
func (s *Store) InsertNote(ctx context.Context, note types.Note) error {
	categories, err := json.Marshal(note.Categories)
	if err != nil {
		return errors.Wrap(err, "marshaling categories")
	}
	if note.NoteType == "" {
		note.NoteType = types.NoteTypeHourly
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notes (note_id, note_type, start_ts, end_ts, summary, categories)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			note_type = excluded.note_type,
			start_ts = excluded.start_ts,
			end_ts = excluded.end_ts,
			summary = excluded.summary,
			categories = excluded.categories`,
		note.NoteID, note.NoteType, note.StartTS, note.EndTS, note.Summary, string(categories))
	return errors.Wrap(err, "inserting note")
}

// NotesInRange returns notes ordered by start_ts descending. A nil filter
// returns the most recent notes; noteType "" matches all granularities.
func (s *Store) NotesInRange(ctx context.Context, tf *types.TimeFilter, noteType string, limit int) ([]types.Note, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT note_id, note_type, start_ts, end_ts, summary, categories FROM notes WHERE 1=1`
	var args []any
	if noteType != "" {
		query += ` AND note_type = ?`
		args = append(args, noteType)
	}
	query, args = appendTimeBounds(query, args, tf)
	query += ` ORDER BY start_ts DESC LIMIT ?`
	args = append(args, limit)

	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notes in range")
	}
	return rowsToNotes(rows), nil
}

// NotesMentioningEntity returns notes linked to an entity, newest first.
func (s *Store) NotesMentioningEntity(ctx context.Context, entityID string, tf *types.TimeFilter, limit int) ([]types.Note, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT n.note_id, n.note_type, n.start_ts, n.end_ts, n.summary, n.categories
		FROM notes n
		JOIN note_entities ne ON ne.note_id = n.note_id
		WHERE ne.entity_id = ?`
	args := []any{entityID}
	query, args = appendTimeBounds(query, args, tf)
	query += ` ORDER BY n.start_ts DESC LIMIT ?`
	args = append(args, limit)

	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying notes mentioning entity")
	}
	return rowsToNotes(rows), nil
}

// NotesMentioningAny returns notes linked to any of the given entities,
// newest first, deduplicated by note.
func (s *Store) NotesMentioningAny(ctx context.Context, entityIDs []string, tf *types.TimeFilter, limit int) ([]types.Note, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT DISTINCT n.note_id, n.note_type, n.start_ts, n.end_ts, n.summary, n.categories
		FROM notes n
		JOIN note_entities ne ON ne.note_id = n.note_id
		WHERE ne.entity_id IN (?)`
	query, args, err := sqlx.In(query, entityIDs)
	if err != nil {
		return nil, errors.Wrap(err, "expanding entity id list")
	}
	query, args = appendTimeBounds(query, args, tf)
	query += ` ORDER BY n.start_ts DESC LIMIT ?`
	args = append(args, limit)

	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying notes mentioning entities")
	}
	return rowsToNotes(rows), nil
}

// appendTimeBounds adds start/end constraints on the note start_ts column.
// Column references are qualified by the caller's query shape: plain notes
// queries use start_ts, joined ones alias n.start_ts; SQLite resolves the
// unqualified name in both.
func appendTimeBounds(query string, args []any, tf *types.TimeFilter) (string, []any) {
	if tf == nil {
		return query, args
	}
	if tf.Start != nil {
		query += ` AND start_ts >= ?`
		args = append(args, tf.Start.Unix())
	}
	if tf.End != nil {
		query += ` AND start_ts < ?`
		args = append(args, tf.End.Unix())
	}
	return query, args
}
