package actions

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

const expandedNotesLimit = 20

// unresolvedEntity is the graceful empty payload for graph actions whose
// subject entity does not exist. Success stays true so downstream merge and
// analysis steps keep running on whatever the other steps found.
func unresolvedEntity(name string) map[string]any {
	return map[string]any{
		"related_entities": []types.Entity{},
		"message":          fmt.Sprintf("no entity matching %q", name),
	}
}

func neighborEntities(neighbors []types.EdgeNeighbor) []types.Entity {
	return lo.Map(neighbors, func(n types.EdgeNeighbor, _ int) types.Entity { return n.Entity })
}

type graphExpandAction struct{ deps Deps }

func newGraphExpand(deps Deps) Action { return &graphExpandAction{deps} }

func (a *graphExpandAction) Name() types.ActionName { return types.ActionGraphExpand }

func (a *graphExpandAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	entityName := stringParam(params, "entity_name", "")
	if entityName == "" {
		return nil, errors.New("graph_expand requires an entity_name")
	}
	entityType := stringParam(params, "entity_type", "")
	edgeTypes := stringSliceParam(params, "edge_types")
	hops := intParam(params, "hops", 1)
	minWeight := floatParam(params, "min_weight", 0.3)
	maxRelated := intParam(params, "max_related", 20)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	entity, err := a.deps.Store.FindEntity(ctx, entityName, entityType)
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity")
	}
	if entity == nil {
		out := unresolvedEntity(entityName)
		out["expanded_notes"] = []types.Note{}
		return out, nil
	}

	neighbors, err := a.deps.Store.ExpandFromEntities(ctx, []string{entity.EntityID}, hops, tf, edgeTypes, minWeight, maxRelated)
	if err != nil {
		return nil, errors.Wrap(err, "expanding graph")
	}

	related := neighborEntities(neighbors)
	var expandedNotes []types.Note
	if len(related) > 0 {
		ids := lo.Map(related, func(e types.Entity, _ int) string { return e.EntityID })
		expandedNotes, err = a.deps.Store.NotesMentioningAny(ctx, ids, tf, expandedNotesLimit)
		if err != nil {
			return nil, errors.Wrap(err, "loading expanded notes")
		}
	}

	return map[string]any{
		"related_entities": related,
		"expanded_notes":   expandedNotes,
		"neighbors":        neighbors,
		"source_entity":    *entity,
		"total_related":    len(related),
	}, nil
}

type findConnectionsAction struct{ deps Deps }

func newFindConnections(deps Deps) Action { return &findConnectionsAction{deps} }

func (a *findConnectionsAction) Name() types.ActionName { return types.ActionFindConnections }

func (a *findConnectionsAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	nameA := stringParam(params, "entity_a", "")
	nameB := stringParam(params, "entity_b", "")
	if nameA == "" || nameB == "" {
		return nil, errors.New("find_connections requires entity_a and entity_b")
	}
	maxHops := intParam(params, "max_hops", 3)

	entityA, err := a.deps.Store.FindEntity(ctx, nameA, "")
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity_a")
	}
	entityB, err := a.deps.Store.FindEntity(ctx, nameB, "")
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity_b")
	}
	if entityA == nil || entityB == nil {
		missing := nameA
		if entityA != nil {
			missing = nameB
		}
		out := unresolvedEntity(missing)
		out["paths"] = [][]string{}
		return out, nil
	}

	paths, err := a.deps.Store.PathsBetween(ctx, entityA.EntityID, entityB.EntityID, maxHops, 10)
	if err != nil {
		return nil, errors.Wrap(err, "finding paths")
	}
	return map[string]any{
		"paths":    paths,
		"entity_a": entityA.CanonicalName,
		"entity_b": entityB.CanonicalName,
		"total":    len(paths),
	}, nil
}

type getCoOccurrencesAction struct{ deps Deps }

func newGetCoOccurrences(deps Deps) Action { return &getCoOccurrencesAction{deps} }

func (a *getCoOccurrencesAction) Name() types.ActionName { return types.ActionGetCoOccurrences }

func (a *getCoOccurrencesAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	entityName := stringParam(params, "entity_name", "")
	if entityName == "" {
		return nil, errors.New("get_co_occurrences requires an entity_name")
	}
	edgeType := stringParam(params, "edge_type", types.EdgeCoOccurredWith)
	limit := intParam(params, "limit", 10)
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	entity, err := a.deps.Store.FindEntity(ctx, entityName, "")
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity")
	}
	if entity == nil {
		out := unresolvedEntity(entityName)
		out["co_occurrences"] = []map[string]any{}
		return out, nil
	}

	neighbors, err := a.deps.Store.CoOccurrences(ctx, entity.EntityID, edgeType, tf, limit)
	if err != nil {
		return nil, errors.Wrap(err, "loading co-occurrences")
	}

	coOccurrences := lo.Map(neighbors, func(n types.EdgeNeighbor, _ int) map[string]any {
		return map[string]any{
			"entity":    n.Entity.CanonicalName,
			"edge_type": n.EdgeType,
			"weight":    n.Weight,
		}
	})
	return map[string]any{
		"related_entities": neighborEntities(neighbors),
		"neighbors":        neighbors,
		"co_occurrences":   coOccurrences,
		"total":            len(neighbors),
	}, nil
}

type getEntityContextAction struct{ deps Deps }

func newGetEntityContext(deps Deps) Action { return &getEntityContextAction{deps} }

func (a *getEntityContextAction) Name() types.ActionName { return types.ActionGetEntityContext }

func (a *getEntityContextAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	entityName := stringParam(params, "entity_name", "")
	if entityName == "" {
		return nil, errors.New("get_entity_context requires an entity_name")
	}
	entityType := stringParam(params, "entity_type", "")
	tf, err := a.deps.timeFilter(params["time_filter"])
	if err != nil {
		return nil, err
	}

	entity, err := a.deps.Store.FindEntity(ctx, entityName, entityType)
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity")
	}
	if entity == nil {
		return unresolvedEntity(entityName), nil
	}

	adjacency, err := a.deps.Store.EntityAdjacency(ctx, entity.EntityID, tf)
	if err != nil {
		return nil, errors.Wrap(err, "loading adjacency")
	}
	recentNotes, err := a.deps.Store.NotesMentioningEntity(ctx, entity.EntityID, tf, 5)
	if err != nil {
		return nil, errors.Wrap(err, "loading recent notes")
	}

	return map[string]any{
		"entity":       *entity,
		"entities":     []types.Entity{*entity},
		"adjacency":    adjacency,
		"recent_notes": recentNotes,
	}, nil
}

type filterByEdgeTypeAction struct{ deps Deps }

func newFilterByEdgeType(deps Deps) Action { return &filterByEdgeTypeAction{deps} }

func (a *filterByEdgeTypeAction) Name() types.ActionName { return types.ActionFilterByEdgeType }

// Run narrows previously gathered neighbor sets to a single edge type. With
// entities_ref it reads that step's "neighbors"; otherwise it scans every
// prior step result carrying one.
func (a *filterByEdgeTypeAction) Run(_ context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error) {
	edgeType := stringParam(params, "edge_type", "")
	if !lo.Contains(types.EdgeTypes, edgeType) {
		return nil, errors.Errorf("filter_by_edge_type edge_type must be one of %v, got %q", types.EdgeTypes, edgeType)
	}

	var candidates []types.EdgeNeighbor
	if ref := stringParam(params, "entities_ref", ""); ref != "" {
		res, ok := state.Result(ref)
		if !ok {
			return nil, errors.Errorf("entities_ref %q has no result", ref)
		}
		candidates = neighborsFromResult(res)
	} else {
		for _, id := range state.ResultOrder() {
			if res, ok := state.Result(id); ok {
				candidates = append(candidates, neighborsFromResult(res)...)
			}
		}
	}

	filtered := lo.Filter(candidates, func(n types.EdgeNeighbor, _ int) bool {
		return n.EdgeType == edgeType
	})
	return map[string]any{
		"related_entities": neighborEntities(filtered),
		"neighbors":        filtered,
		"edge_type":        edgeType,
		"total":            len(filtered),
	}, nil
}

func neighborsFromResult(res types.StepResult) []types.EdgeNeighbor {
	if !res.Success || res.Result == nil {
		return nil
	}
	neighbors, _ := res.Result["neighbors"].([]types.EdgeNeighbor)
	return neighbors
}
