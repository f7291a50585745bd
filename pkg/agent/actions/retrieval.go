package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/helpers"
)

const hourlyNotesPerDay = 24

type semanticSearchAction struct{ deps Deps }

func newSemanticSearch(deps Deps) Action { return &semanticSearchAction{deps} }

func (a *semanticSearchAction) Name() types.ActionName { return types.ActionSemanticSearch }

func (a *semanticSearchAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	query := stringParam(params, "query", "")
	if query == "" {
		return nil, errors.New("semantic_search requires a query")
	}
	limit := intParam(params, "limit", 10)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}
	if a.deps.Vector == nil {
		return nil, errors.New("vector index unavailable")
	}

	notes, err := a.deps.Vector.Search(ctx, query, limit, tf, "")
	if err != nil {
		return nil, errors.Wrap(err, "semantic search")
	}
	return map[string]any{"notes": notes, "query": query, "total": len(notes)}, nil
}

type entitySearchAction struct{ deps Deps }

func newEntitySearch(deps Deps) Action { return &entitySearchAction{deps} }

func (a *entitySearchAction) Name() types.ActionName { return types.ActionEntitySearch }

func (a *entitySearchAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	entityName := stringParam(params, "entity_name", "")
	if entityName == "" {
		return nil, errors.New("entity_search requires an entity_name")
	}
	entityType := stringParam(params, "entity_type", "")
	limit := intParam(params, "limit", 10)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	entity, err := a.deps.Store.FindEntity(ctx, entityName, entityType)
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity")
	}
	if entity == nil {
		return map[string]any{
			"notes":    []types.Note{},
			"entities": []types.Entity{},
			"message":  fmt.Sprintf("no entity matching %q", entityName),
		}, nil
	}

	notes, err := a.deps.Store.NotesMentioningEntity(ctx, entity.EntityID, tf, limit)
	if err != nil {
		return nil, errors.Wrap(err, "loading entity notes")
	}
	return map[string]any{
		"notes":    notes,
		"entities": []types.Entity{*entity},
		"total":    len(notes),
	}, nil
}

type hierarchicalSearchAction struct{ deps Deps }

func newHierarchicalSearch(deps Deps) Action { return &hierarchicalSearchAction{deps} }

func (a *hierarchicalSearchAction) Name() types.ActionName { return types.ActionHierarchicalSearch }

// Run retrieves in two stages: daily notes first (vector similarity when the
// index is up, newest daily notes otherwise), then the hourly notes inside
// each matched day's window.
func (a *hierarchicalSearchAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	query := stringParam(params, "query", "")
	if query == "" {
		return nil, errors.New("hierarchical_search requires a query")
	}
	maxDays := intParam(params, "max_days", 5)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	var dailyNotes []types.Note
	if a.deps.Vector != nil {
		dailyNotes, err = a.deps.Vector.Search(ctx, query, maxDays, tf, types.NoteTypeDaily)
	} else {
		dailyNotes, err = a.deps.Store.NotesInRange(ctx, tf, types.NoteTypeDaily, maxDays)
	}
	if err != nil {
		return nil, errors.Wrap(err, "daily note search")
	}

	notes := make([]types.Note, 0, len(dailyNotes)*4)
	notes = append(notes, dailyNotes...)
	for _, day := range dailyNotes {
		window := &types.TimeFilter{
			Start: helpers.Ptr(time.Unix(day.StartTS, 0)),
			End:   helpers.Ptr(time.Unix(day.EndTS, 0)),
		}
		hourly, err := a.deps.Store.NotesInRange(ctx, window, types.NoteTypeHourly, hourlyNotesPerDay)
		if err != nil {
			return nil, errors.Wrap(err, "hourly note lookup")
		}
		notes = append(notes, hourly...)
	}

	return map[string]any{
		"notes":        notes,
		"days_matched": len(dailyNotes),
		"query":        query,
	}, nil
}

type timeRangeNotesAction struct{ deps Deps }

func newTimeRangeNotes(deps Deps) Action { return &timeRangeNotesAction{deps} }

func (a *timeRangeNotesAction) Name() types.ActionName { return types.ActionTimeRangeNotes }

func (a *timeRangeNotesAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}
	if tf == nil {
		return nil, errors.New("time_range_notes requires a time_filter")
	}
	noteType := stringParam(params, "note_type", "")
	limit := intParam(params, "limit", 100)

	notes, err := a.deps.Store.NotesInRange(ctx, tf, noteType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "loading notes in range")
	}
	return map[string]any{"notes": notes, "total": len(notes)}, nil
}

type aggregatesQueryAction struct{ deps Deps }

func newAggregatesQuery(deps Deps) Action { return &aggregatesQueryAction{deps} }

func (a *aggregatesQueryAction) Name() types.ActionName { return types.ActionAggregatesQuery }

func (a *aggregatesQueryAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	keyType := stringParam(params, "key_type", "")
	if !lo.Contains(types.AggregateKeyTypes, keyType) {
		return nil, errors.Errorf("aggregates_query key_type must be one of %v, got %q", types.AggregateKeyTypes, keyType)
	}
	limit := intParam(params, "limit", 10)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	aggregates, err := a.deps.Store.TopAggregates(ctx, keyType, tf, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying aggregates")
	}
	return map[string]any{
		"aggregates": aggregates,
		"key_type":   keyType,
		"total":      len(aggregates),
	}, nil
}
