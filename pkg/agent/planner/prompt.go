package planner

import (
	"fmt"
	"strings"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/helpers"
)

// planEnvelope is the wire contract the LLM must return. It is reflected into
// a JSON schema for the system prompt and parsed back on every attempt.
type planEnvelope struct {
	QueryType            string           `json:"query_type"`
	Reasoning            string           `json:"reasoning"`
	Steps                []types.PlanStep `json:"steps"`
	EstimatedTimeSeconds float64          `json:"estimated_time_seconds"`
	RequiresWebSearch    bool             `json:"requires_web_search"`
}

const actionCatalog = `Available actions (use exact names):

Retrieval:
- semantic_search(query, time_filter?, limit=10): vector similarity over activity notes. Returns notes.
- entity_search(entity_name, entity_type?, time_filter?, limit=10): notes mentioning an entity. Returns notes and entities.
- hierarchical_search(query, time_filter?, max_days=5): daily-note search first, then hourly notes inside the matched days. Returns notes.
- time_range_notes(time_filter, note_type?, limit=100): raw notes in a time range. time_filter is required.
- aggregates_query(key_type, time_filter?, limit=10): time-spent rollups. key_type is one of app, domain, topic, artist, track, category. Returns aggregates.

Graph:
- graph_expand(entity_name, entity_type?, edge_types?, hops=1, time_filter?, min_weight=0.3, max_related=20): expands the entity graph outward. Returns related_entities and expanded_notes.
- find_connections(entity_a, entity_b, max_hops=3): paths between two entities. Returns paths.
- get_co_occurrences(entity_name, edge_type=CO_OCCURRED_WITH, time_filter?, limit=10): entities that co-occur with one entity.
- get_entity_context(entity_name, entity_type?, time_filter?): full attributes plus adjacency summary for one entity.
- filter_by_edge_type(edge_type, entities_ref?): keeps only neighbors reached by one edge type from a prior step.

Analysis:
- extract_patterns(pattern_type, focus_activity?, notes_ref?): LLM pattern mining over notes from the referenced step (or everything gathered so far).
- compare_periods(period_a, period_b, focus=general): compares aggregates between two described periods. Both periods required.
- temporal_sequence(activity_filter, sequence_type, notes_ref?): what happened immediately before or after matching notes. sequence_type is before or after.
- merge_results(result_refs): deduplicates and merges the outputs of the referenced steps. Usually the final step.

External:
- web_search(query, max_results=5, search_depth=basic, include_domains?, exclude_domains?): current information from the web.

Edge types for graph actions: ABOUT_TOPIC, STUDIED_WHILE, LISTENED_TO, WATCHED, USED_APP, VISITED_DOMAIN, CO_OCCURRED_WITH, DOC_REFERENCE.

time_filter values may be a natural-language description string (e.g. "last week") or {"start": ISO-8601, "end": ISO-8601}.`

func systemPrompt() string {
	schema, err := helpers.SchemaJSON(planEnvelope{})
	if err != nil {
		// Reflection of a plain struct cannot realistically fail; fall back to
		// prose-only instructions.
		schema = ""
	}

	var b strings.Builder
	b.WriteString("You are the query planner of a personal activity-recall assistant. ")
	b.WriteString("Decompose the user's question about their own past activity into a small plan of retrieval and analysis steps.\n\n")
	b.WriteString(actionCatalog)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- 1 to 10 steps; prefer the fewest that answer the question.\n")
	b.WriteString("- query_type is one of relationship, memory_recall, comparison, correlation, web_augmented, multi_entity.\n")
	b.WriteString("- step_id values like s1, s2, ...; depends_on lists step_ids that must finish first. Steps without dependencies run in parallel.\n")
	b.WriteString("- timeout_seconds between 1 and 30 (default 10); estimated_time_seconds at most 30.\n")
	b.WriteString("- set requires_web_search true only when a web_search step is present.\n")
	b.WriteString("- params hold only the documented options for each action.\n")
	b.WriteString("\nRespond with a single JSON object")
	if schema != "" {
		b.WriteString(" matching this schema:\n")
		b.WriteString(schema)
	} else {
		b.WriteString(".")
	}
	return b.String()
}

func userPrompt(query, timeContext, dataSummary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s", query)
	if timeContext != "" {
		fmt.Fprintf(&b, "\nCurrent time context: %s", timeContext)
	}
	if dataSummary != "" {
		fmt.Fprintf(&b, "\nAvailable data: %s", dataSummary)
	}
	return b.String()
}

func correctionPrompt(cause error) string {
	return fmt.Sprintf(
		"That response could not be used: %s. Respond again with ONLY a corrected JSON object matching the schema.",
		cause)
}
