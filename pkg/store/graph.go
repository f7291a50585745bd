package store

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

type edgeRow struct {
	SrcID      string  `db:"src_id"`
	DstID      string  `db:"dst_id"`
	EdgeType   string  `db:"edge_type"`
	Weight     float64 `db:"weight"`
	CoCount    int     `db:"co_count"`
	LastSeenTS int64   `db:"last_seen_ts"`
}

// other returns the endpoint opposite to id. Edges are stored directed but
// traversed symmetrically.
func (r edgeRow) other(id string) string {
	if r.SrcID == id {
		return r.DstID
	}
	return r.SrcID
}

// UpsertEdge inserts or refreshes a graph edge.
func (s *Store) UpsertEdge(ctx context.Context, srcID, dstID, edgeType string, weight float64, coCount int, lastSeenTS int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_edges (src_id, dst_id, edge_type, weight, co_count, last_seen_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(src_id, dst_id, edge_type) DO UPDATE SET
			weight = excluded.weight,
			co_count = excluded.co_count,
			last_seen_ts = excluded.last_seen_ts`,
		srcID, dstID, edgeType, weight, coCount, lastSeenTS)
	return errors.Wrap(err, "upserting edge")
}

// edgesTouching returns edges incident to any of the ids, optionally
// restricted by edge types, minimum weight and a last-seen lower bound.
func (s *Store) edgesTouching(ctx context.Context, ids []string, edgeTypes []string, minWeight float64, tf *types.TimeFilter) ([]edgeRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT src_id, dst_id, edge_type, weight, co_count, last_seen_ts
		FROM entity_edges WHERE (src_id IN (?) OR dst_id IN (?)) AND weight >= ?`
	args := []any{ids, ids, minWeight}
	if len(edgeTypes) > 0 {
		query += ` AND edge_type IN (?)`
		args = append(args, edgeTypes)
	}
	if tf != nil && tf.Start != nil {
		query += ` AND last_seen_ts >= ?`
		args = append(args, tf.Start.Unix())
	}

	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding edge query")
	}
	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(expanded), expandedArgs...); err != nil {
		return nil, errors.Wrap(err, "querying edges")
	}
	return rows, nil
}

// ExpandFromEntities walks the graph outward from the seed ids for the given
// number of hops, strongest edges first, and returns at most maxRelated
// neighbors. Seeds are never reported as neighbors.
func (s *Store) ExpandFromEntities(ctx context.Context, seedIDs []string, hops int, tf *types.TimeFilter, edgeTypes []string, minWeight float64, maxRelated int) ([]types.EdgeNeighbor, error) {
	if hops <= 0 {
		hops = 1
	}
	if maxRelated <= 0 {
		maxRelated = 20
	}

	visited := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		visited[id] = true
	}

	frontier := seedIDs
	type hit struct {
		id       string
		edgeType string
		weight   float64
	}
	var found []hit

	for hop := 0; hop < hops && len(frontier) > 0 && len(found) < maxRelated; hop++ {
		edges, err := s.edgesTouching(ctx, frontier, edgeTypes, minWeight, tf)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })

		var next []string
		for _, e := range edges {
			var neighbor string
			switch {
			case visited[e.SrcID] && !visited[e.DstID]:
				neighbor = e.DstID
			case visited[e.DstID] && !visited[e.SrcID]:
				neighbor = e.SrcID
			default:
				continue
			}
			visited[neighbor] = true
			found = append(found, hit{id: neighbor, edgeType: e.EdgeType, weight: e.Weight})
			next = append(next, neighbor)
			if len(found) >= maxRelated {
				break
			}
		}
		frontier = next
	}

	ids := make([]string, 0, len(found))
	for _, h := range found {
		ids = append(ids, h.id)
	}
	entities, err := s.EntitiesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]types.Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}

	neighbors := make([]types.EdgeNeighbor, 0, len(found))
	for _, h := range found {
		entity, ok := byID[h.id]
		if !ok {
			continue
		}
		neighbors = append(neighbors, types.EdgeNeighbor{
			Entity:   entity,
			EdgeType: h.edgeType,
			Weight:   h.weight,
		})
	}
	return neighbors, nil
}

// PathsBetween finds up to maxPaths simple paths from one entity to another
// within maxHops edges, shortest first, as lists of canonical names.
func (s *Store) PathsBetween(ctx context.Context, fromID, toID string, maxHops, maxPaths int) ([][]string, error) {
	if maxHops <= 0 {
		maxHops = 3
	}
	if maxPaths <= 0 {
		maxPaths = 10
	}

	adjacency, err := s.loadAdjacency(ctx)
	if err != nil {
		return nil, err
	}

	var idPaths [][]string
	queue := [][]string{{fromID}}
	for len(queue) > 0 && len(idPaths) < maxPaths {
		path := queue[0]
		queue = queue[1:]
		last := path[len(path)-1]
		if last == toID {
			idPaths = append(idPaths, path)
			continue
		}
		if len(path) > maxHops {
			continue
		}
		for _, next := range adjacency[last] {
			if containsID(path, next) {
				continue
			}
			extended := make([]string, len(path), len(path)+1)
			copy(extended, path)
			queue = append(queue, append(extended, next))
		}
	}

	// Resolve ids to canonical names in one pass.
	nameOf := make(map[string]string)
	var allIDs []string
	for _, path := range idPaths {
		for _, id := range path {
			if _, seen := nameOf[id]; !seen {
				nameOf[id] = ""
				allIDs = append(allIDs, id)
			}
		}
	}
	entities, err := s.EntitiesByID(ctx, allIDs)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		nameOf[e.EntityID] = e.CanonicalName
	}

	paths := make([][]string, 0, len(idPaths))
	for _, path := range idPaths {
		named := make([]string, 0, len(path))
		for _, id := range path {
			if name := nameOf[id]; name != "" {
				named = append(named, name)
			} else {
				named = append(named, id)
			}
		}
		paths = append(paths, named)
	}
	return paths, nil
}

func (s *Store) loadAdjacency(ctx context.Context) (map[string][]string, error) {
	var rows []edgeRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT src_id, dst_id, edge_type, weight, co_count, last_seen_ts FROM entity_edges`)
	if err != nil {
		return nil, errors.Wrap(err, "loading adjacency")
	}
	adjacency := make(map[string][]string)
	for _, e := range rows {
		adjacency[e.SrcID] = append(adjacency[e.SrcID], e.DstID)
		adjacency[e.DstID] = append(adjacency[e.DstID], e.SrcID)
	}
	return adjacency, nil
}

// CoOccurrences returns the strongest neighbors of an entity along one edge
// type, weight descending.
func (s *Store) CoOccurrences(ctx context.Context, entityID, edgeType string, tf *types.TimeFilter, limit int) ([]types.EdgeNeighbor, error) {
	if limit <= 0 {
		limit = 10
	}
	if edgeType == "" {
		edgeType = types.EdgeCoOccurredWith
	}
	edges, err := s.edgesTouching(ctx, []string{entityID}, []string{edgeType}, 0, tf)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	if len(edges) > limit {
		edges = edges[:limit]
	}

	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.other(entityID))
	}
	entities, err := s.EntitiesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]types.Entity, len(entities))
	for _, e := range entities {
		byID[e.EntityID] = e
	}

	neighbors := make([]types.EdgeNeighbor, 0, len(edges))
	for _, e := range edges {
		entity, ok := byID[e.other(entityID)]
		if !ok {
			continue
		}
		neighbors = append(neighbors, types.EdgeNeighbor{
			Entity:   entity,
			EdgeType: e.EdgeType,
			Weight:   e.Weight,
		})
	}
	return neighbors, nil
}

// EntityAdjacency summarizes an entity's neighborhood: one group per edge
// type with total count and the top neighbors by weight, largest group first.
func (s *Store) EntityAdjacency(ctx context.Context, entityID string, tf *types.TimeFilter) ([]types.EdgeGroup, error) {
	const topPerEdge = 5

	edges, err := s.edgesTouching(ctx, []string{entityID}, nil, 0, tf)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]edgeRow)
	for _, e := range edges {
		grouped[e.EdgeType] = append(grouped[e.EdgeType], e)
	}

	var groups []types.EdgeGroup
	for edgeType, rows := range grouped {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Weight > rows[j].Weight })
		top := rows
		if len(top) > topPerEdge {
			top = top[:topPerEdge]
		}

		ids := make([]string, 0, len(top))
		for _, e := range top {
			ids = append(ids, e.other(entityID))
		}
		entities, err := s.EntitiesByID(ctx, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]types.Entity, len(entities))
		for _, e := range entities {
			byID[e.EntityID] = e
		}

		group := types.EdgeGroup{EdgeType: edgeType, Count: len(rows)}
		for _, e := range top {
			entity, ok := byID[e.other(entityID)]
			if !ok {
				continue
			}
			group.Neighbors = append(group.Neighbors, types.EdgeNeighbor{
				Entity:   entity,
				EdgeType: e.EdgeType,
				Weight:   e.Weight,
			})
		}
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].EdgeType < groups[j].EdgeType
	})
	return groups, nil
}

func containsID(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
