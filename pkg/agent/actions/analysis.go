package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
	"github.com/hindsight-ai/hindsight/pkg/ai"
)

const patternNotesLimit = 20

func notesFromResult(res types.StepResult) []types.Note {
	if !res.Success || res.Result == nil {
		return nil
	}
	notes, _ := res.Result["notes"].([]types.Note)
	return notes
}

// cleanJSON strips the code fences some models wrap around JSON-mode output.
func cleanJSON(raw string) string {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func formatNotes(notes []types.Note) string {
	var b strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&b, "- [%s] %s: %s", n.NoteID, time.Unix(n.StartTS, 0).UTC().Format(time.RFC3339), n.Summary)
		if len(n.Categories) > 0 {
			fmt.Fprintf(&b, " (categories: %s)", strings.Join(n.Categories, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type extractPatternsAction struct{ deps Deps }

func newExtractPatterns(deps Deps) Action { return &extractPatternsAction{deps} }

func (a *extractPatternsAction) Name() types.ActionName { return types.ActionExtractPatterns }

func (a *extractPatternsAction) Run(ctx context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error) {
	patternType := stringParam(params, "pattern_type", "general")
	focusActivity := stringParam(params, "focus_activity", "")

	var notes []types.Note
	if ref := stringParam(params, "notes_ref", ""); ref != "" {
		if res, ok := state.Result(ref); ok {
			notes = notesFromResult(res)
		}
	} else {
		notes = state.Notes()
	}
	if len(notes) > patternNotesLimit {
		notes = notes[:patternNotesLimit]
	}

	if len(notes) == 0 {
		return map[string]any{
			"patterns": []types.Pattern{{
				PatternType: patternType,
				Description: "insufficient data to extract patterns",
				Confidence:  0,
			}},
			"evidence_note_ids": []string{},
			"confidence":        0.0,
			"message":           "no notes available for pattern extraction",
		}, nil
	}
	if a.deps.LLM == nil {
		return nil, errors.New("language model unavailable")
	}

	system := `You analyze a user's personal activity notes for behavioral patterns. ` +
		`Respond with a single JSON object: {"patterns": [{"pattern_type": "<string>", ` +
		`"description": "<string>", "confidence": <0..1>, "evidence_note_ids": ["<note_id>", ...]}]}. ` +
		`Only report patterns the notes actually support; cite note ids as evidence.`

	var user strings.Builder
	fmt.Fprintf(&user, "Pattern type to look for: %s\n", patternType)
	if focusActivity != "" {
		fmt.Fprintf(&user, "Focus activity: %s\n", focusActivity)
	}
	user.WriteString("\nNotes:\n")
	user.WriteString(formatNotes(notes))

	raw, err := a.deps.LLM.CompletionJSON(ctx,
		[]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user.String()),
		},
		a.deps.Model,
		ai.WithTemperature(0.3),
	)
	if err != nil {
		return nil, errors.Wrap(err, "pattern extraction")
	}

	var envelope struct {
		Patterns []types.Pattern `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &envelope); err != nil {
		return nil, errors.Wrap(err, "parsing pattern response")
	}

	var evidence []string
	confidence := 0.0
	for _, p := range envelope.Patterns {
		evidence = append(evidence, p.EvidenceNoteIDs...)
		if p.Confidence > confidence {
			confidence = p.Confidence
		}
	}
	return map[string]any{
		"patterns":          envelope.Patterns,
		"evidence_note_ids": lo.Uniq(evidence),
		"confidence":        confidence,
		"pattern_type":      patternType,
	}, nil
}

// comparisonKeyTypes are the rollup dimensions compared between periods.
var comparisonKeyTypes = []string{"app", "topic", "category", "domain"}

type comparePeriodsAction struct{ deps Deps }

func newComparePeriods(deps Deps) Action { return &comparePeriodsAction{deps} }

func (a *comparePeriodsAction) Name() types.ActionName { return types.ActionComparePeriods }

func (a *comparePeriodsAction) Run(ctx context.Context, params map[string]any, _ *types.ExecutionContext) (map[string]any, error) {
	tfA, err := a.resolvePeriod(params["period_a"])
	if err != nil {
		return nil, errors.Wrap(err, "period_a")
	}
	tfB, err := a.resolvePeriod(params["period_b"])
	if err != nil {
		return nil, errors.Wrap(err, "period_b")
	}
	focus := stringParam(params, "focus", "general")

	aggsA, err := a.periodAggregates(ctx, tfA)
	if err != nil {
		return nil, err
	}
	aggsB, err := a.periodAggregates(ctx, tfB)
	if err != nil {
		return nil, err
	}

	descA := describePeriod(tfA)
	descB := describePeriod(tfB)

	differences, commonalities := a.analyze(ctx, descA, descB, aggsA, aggsB, focus)

	return map[string]any{
		"period_a_description": descA,
		"period_b_description": descB,
		"period_a_aggregates":  aggsA,
		"period_b_aggregates":  aggsB,
		"differences":          differences,
		"commonalities":        commonalities,
		"focus":                focus,
	}, nil
}

func (a *comparePeriodsAction) resolvePeriod(v any) (*types.TimeFilter, error) {
	if v == nil {
		return nil, errors.New("is required")
	}
	tf, err := a.deps.timeFilter(v)
	if err != nil {
		return nil, err
	}
	if tf == nil {
		return nil, errors.Errorf("could not be resolved from %v", v)
	}
	return tf, nil
}

func (a *comparePeriodsAction) periodAggregates(ctx context.Context, tf *types.TimeFilter) ([]types.Aggregate, error) {
	var out []types.Aggregate
	for _, keyType := range comparisonKeyTypes {
		aggs, err := a.deps.Store.TopAggregates(ctx, keyType, tf, 5)
		if err != nil {
			return nil, errors.Wrapf(err, "aggregates for %s", keyType)
		}
		out = append(out, aggs...)
	}
	return out, nil
}

// analyze asks the LLM for differences/commonalities and falls back to a
// deterministic set comparison over the aggregate keys when the LLM is
// unavailable or returns garbage.
func (a *comparePeriodsAction) analyze(ctx context.Context, descA, descB string, aggsA, aggsB []types.Aggregate, focus string) ([]string, []string) {
	if a.deps.LLM != nil {
		system := `You compare two periods of a user's activity from time-spent rollups. ` +
			`Respond with a single JSON object: {"differences": ["<string>", ...], "commonalities": ["<string>", ...]}.`
		user := fmt.Sprintf("Focus: %s\n\nPeriod A (%s):\n%s\nPeriod B (%s):\n%s",
			focus, descA, formatAggregates(aggsA), descB, formatAggregates(aggsB))

		raw, err := a.deps.LLM.CompletionJSON(ctx,
			[]openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			a.deps.Model,
			ai.WithTemperature(0.3),
		)
		if err == nil {
			var envelope struct {
				Differences   []string `json:"differences"`
				Commonalities []string `json:"commonalities"`
			}
			err = json.Unmarshal([]byte(cleanJSON(raw)), &envelope)
			if err == nil {
				return envelope.Differences, envelope.Commonalities
			}
		}
		a.deps.Logger.Warn("Comparison analysis failed, using set comparison", "error", err)
	}
	return setComparison(descA, descB, aggsA, aggsB)
}

func formatAggregates(aggs []types.Aggregate) string {
	var b strings.Builder
	for _, agg := range aggs {
		fmt.Fprintf(&b, "- %s %q: %.0f minutes\n", agg.KeyType, agg.Key, agg.Minutes)
	}
	return b.String()
}

// setComparison derives difference/commonality summaries from key presence
// alone.
func setComparison(descA, descB string, aggsA, aggsB []types.Aggregate) ([]string, []string) {
	keyOf := func(agg types.Aggregate) string { return agg.KeyType + ":" + agg.Key }
	inA := lo.SliceToMap(aggsA, func(agg types.Aggregate) (string, types.Aggregate) { return keyOf(agg), agg })
	inB := lo.SliceToMap(aggsB, func(agg types.Aggregate) (string, types.Aggregate) { return keyOf(agg), agg })

	var differences, commonalities []string
	for _, agg := range aggsA {
		if _, ok := inB[keyOf(agg)]; !ok {
			differences = append(differences, fmt.Sprintf("%s %q appears only in %s", agg.KeyType, agg.Key, descA))
		} else {
			commonalities = append(commonalities, fmt.Sprintf("%s %q appears in both periods", agg.KeyType, agg.Key))
		}
	}
	for _, agg := range aggsB {
		if _, ok := inA[keyOf(agg)]; !ok {
			differences = append(differences, fmt.Sprintf("%s %q appears only in %s", agg.KeyType, agg.Key, descB))
		}
	}
	return differences, commonalities
}

func describePeriod(tf *types.TimeFilter) string {
	if tf.Description != "" {
		return tf.Description
	}
	const day = "2006-01-02"
	switch {
	case tf.Start != nil && tf.End != nil:
		return fmt.Sprintf("%s to %s", tf.Start.Format(day), tf.End.Format(day))
	case tf.Start != nil:
		return "since " + tf.Start.Format(day)
	case tf.End != nil:
		return "until " + tf.End.Format(day)
	default:
		return "unbounded period"
	}
}

type temporalSequenceAction struct{ deps Deps }

func newTemporalSequence(deps Deps) Action { return &temporalSequenceAction{deps} }

func (a *temporalSequenceAction) Name() types.ActionName { return types.ActionTemporalSequence }

// Run finds what happened immediately before or after notes matching an
// activity filter. Candidates come from the referenced step or the context.
func (a *temporalSequenceAction) Run(_ context.Context, params map[string]any, state *types.ExecutionContext) (map[string]any, error) {
	activityFilter := stringParam(params, "activity_filter", "")
	if activityFilter == "" {
		return nil, errors.New("temporal_sequence requires an activity_filter")
	}
	sequenceType := stringParam(params, "sequence_type", "")
	if sequenceType != "before" && sequenceType != "after" {
		return nil, errors.Errorf("temporal_sequence sequence_type must be before or after, got %q", sequenceType)
	}

	var candidates []types.Note
	if ref := stringParam(params, "notes_ref", ""); ref != "" {
		if res, ok := state.Result(ref); ok {
			candidates = notesFromResult(res)
		}
	} else {
		candidates = state.Notes()
	}

	notes := make([]types.Note, len(candidates))
	copy(notes, candidates)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].StartTS < notes[j].StartTS })

	needle := strings.ToLower(activityFilter)
	matches := 0
	var items []types.SequenceItem
	for i, n := range notes {
		if !noteMatches(n, needle) {
			continue
		}
		matches++
		switch sequenceType {
		case "before":
			if i > 0 {
				items = append(items, types.SequenceItem{Match: n, Neighbor: notes[i-1]})
			}
		case "after":
			if i < len(notes)-1 {
				items = append(items, types.SequenceItem{Match: n, Neighbor: notes[i+1]})
			}
		}
	}

	return map[string]any{
		"sequence_items":  items,
		"activity_filter": activityFilter,
		"sequence_type":   sequenceType,
		"matches_found":   matches,
	}, nil
}

func noteMatches(n types.Note, needle string) bool {
	if strings.Contains(strings.ToLower(n.Summary), needle) {
		return true
	}
	for _, cat := range n.Categories {
		if strings.Contains(strings.ToLower(cat), needle) {
			return true
		}
	}
	return false
}
