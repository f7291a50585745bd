package types

import (
	"time"
)

// QueryType tags a query with the planning strategy it needs.
type QueryType string

const (
	QueryTypeRelationship QueryType = "relationship"
	QueryTypeMemoryRecall QueryType = "memory_recall"
	QueryTypeComparison   QueryType = "comparison"
	QueryTypeCorrelation  QueryType = "correlation"
	QueryTypeWebAugmented QueryType = "web_augmented"
	QueryTypeMultiEntity  QueryType = "multi_entity"
	QueryTypeSimple       QueryType = "simple"
)

// ActionName identifies one of the atomic operations plan steps invoke.
// The set is closed; the executor rejects anything else at runtime.
type ActionName string

const (
	ActionSemanticSearch     ActionName = "semantic_search"
	ActionEntitySearch       ActionName = "entity_search"
	ActionHierarchicalSearch ActionName = "hierarchical_search"
	ActionTimeRangeNotes     ActionName = "time_range_notes"
	ActionAggregatesQuery    ActionName = "aggregates_query"
	ActionGraphExpand        ActionName = "graph_expand"
	ActionFindConnections    ActionName = "find_connections"
	ActionGetCoOccurrences   ActionName = "get_co_occurrences"
	ActionGetEntityContext   ActionName = "get_entity_context"
	ActionExtractPatterns    ActionName = "extract_patterns"
	ActionComparePeriods     ActionName = "compare_periods"
	ActionTemporalSequence   ActionName = "temporal_sequence"
	ActionMergeResults       ActionName = "merge_results"
	ActionFilterByEdgeType   ActionName = "filter_by_edge_type"
	ActionWebSearch          ActionName = "web_search"
)

// Edge vocabulary of the entity graph.
const (
	EdgeAboutTopic     = "ABOUT_TOPIC"
	EdgeStudiedWhile   = "STUDIED_WHILE"
	EdgeListenedTo     = "LISTENED_TO"
	EdgeWatched        = "WATCHED"
	EdgeUsedApp        = "USED_APP"
	EdgeVisitedDomain  = "VISITED_DOMAIN"
	EdgeCoOccurredWith = "CO_OCCURRED_WITH"
	EdgeDocReference   = "DOC_REFERENCE"
)

// EdgeTypes lists the closed edge vocabulary.
var EdgeTypes = []string{
	EdgeAboutTopic,
	EdgeStudiedWhile,
	EdgeListenedTo,
	EdgeWatched,
	EdgeUsedApp,
	EdgeVisitedDomain,
	EdgeCoOccurredWith,
	EdgeDocReference,
}

// Note granularities produced by the summarization layer.
const (
	NoteTypeHourly = "hourly"
	NoteTypeDaily  = "daily"
)

// AggregateKeyTypes is the closed key_type set accepted by aggregates_query.
var AggregateKeyTypes = []string{"app", "domain", "topic", "artist", "track", "category"}

// TimeFilter bounds retrieval to a closed or half-open interval. A nil
// *TimeFilter means no filter. Description keeps the original phrase for
// prompts and result labeling.
type TimeFilter struct {
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Note is a summary record over a time range. StartTS/EndTS are unix seconds.
type Note struct {
	NoteID     string   `json:"note_id"`
	NoteType   string   `json:"note_type,omitempty"`
	StartTS    int64    `json:"start_ts"`
	EndTS      int64    `json:"end_ts,omitempty"`
	Summary    string   `json:"summary"`
	Categories []string `json:"categories,omitempty"`
}

// Entity is a domain object (topic, app, domain, artist, track, category)
// with a stable id and a canonical display name.
type Entity struct {
	EntityID      string         `json:"entity_id"`
	CanonicalName string         `json:"canonical_name"`
	EntityType    string         `json:"entity_type"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Aggregate is a pre-computed rollup keyed by (key_type, key) with minutes
// spent over a range.
type Aggregate struct {
	KeyType string  `json:"key_type"`
	Key     string  `json:"key"`
	Minutes float64 `json:"minutes"`
}

// WebResult is one hit returned by the web-search provider.
type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Pattern is one behavioral regularity extracted from notes.
type Pattern struct {
	PatternType     string   `json:"pattern_type"`
	Description     string   `json:"description"`
	Confidence      float64  `json:"confidence"`
	EvidenceNoteIDs []string `json:"evidence_note_ids,omitempty"`
}

// EdgeNeighbor pairs an entity with the edge that reached it during graph
// traversal.
type EdgeNeighbor struct {
	Entity   Entity  `json:"entity"`
	EdgeType string  `json:"edge_type"`
	Weight   float64 `json:"weight"`
}

// EdgeGroup summarizes one edge type's adjacency for an entity.
type EdgeGroup struct {
	EdgeType  string         `json:"edge_type"`
	Count     int            `json:"count"`
	Neighbors []EdgeNeighbor `json:"neighbors,omitempty"`
}

// SequenceItem pairs a note matching an activity filter with its immediate
// temporal neighbor.
type SequenceItem struct {
	Match    Note `json:"match"`
	Neighbor Note `json:"neighbor"`
}
