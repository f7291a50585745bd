// Package classifier is the deterministic gate in front of the planner. It
// decides with regexes alone whether a query needs an agentic plan and, if
// so, which query type should drive planning.
package classifier

import (
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

const (
	simpleConfidence   = 0.9
	noSignalConfidence = 0.7
	scorePerSignal     = 0.4
	complexThreshold   = 0.4
	maxSignals         = 5
)

// Classification is the gate's verdict for one query.
type Classification struct {
	IsComplex  bool            `json:"is_complex"`
	QueryType  types.QueryType `json:"query_type"`
	Confidence float64         `json:"confidence"`
	Signals    []string        `json:"signals,omitempty"`
	Reasoning  string          `json:"reasoning"`
}

type signal struct {
	re    *regexp.Regexp
	label string
}

func compile(pattern, label string) signal {
	return signal{re: regexp.MustCompile("(?i)" + pattern), label: label}
}

type typeSignals struct {
	queryType types.QueryType
	signals   []signal
}

// Classifier holds the compiled signal tables. It is pure: Classify has no
// error path and no state.
type Classifier struct {
	logger  *log.Logger
	simple  []signal
	complex []typeSignals
}

func NewClassifier(logger *log.Logger) *Classifier {
	return &Classifier{
		logger: logger,
		simple: []signal{
			compile(`^what did i do (today|yesterday|this week)\??$`, "plain daily recap"),
			compile(`^(tell me )?about \w+\??$`, "single-entity lookup"),
			compile(`^what (apps|sites|topics)`, "top-items question"),
			compile(`^(show|list) (me )?(my )?(recent )?(notes|activity|activities)`, "listing request"),
			compile(`^how much time`, "time-spent question"),
			compile(`^summar(y|ize)`, "summary request"),
		},
		// Declaration order breaks score ties.
		complex: []typeSignals{
			{types.QueryTypeRelationship, []signal{
				compile(`while .*what|what .*while`, "activity paired with 'while'"),
				compile(`when .*what`, "activity paired with 'when'"),
				compile(`during .*what`, "activity paired with 'during'"),
				compile(`alongside`, "'alongside' pairing"),
				compile(`together with`, "'together with' pairing"),
				compile(`at the same time`, "simultaneity"),
				compile(`listening to .*while`, "music during activity"),
				compile(`watching .*while`, "video during activity"),
				compile(`what .*when .*was`, "context recall around an activity"),
			}},
			{types.QueryTypeComparison, []signal{
				compile(`compare`, "'compare'"),
				compile(`\bvs\b|versus`, "'vs'/'versus'"),
				compile(`difference between`, "'difference between'"),
				compile(`changed over`, "change over time"),
				compile(`how .*changed`, "'how ... changed'"),
				compile(`from .* to .*period`, "period-to-period phrasing"),
				compile(`last (week|month|year).*this (week|month|year)`, "last-vs-this period"),
			}},
			{types.QueryTypeMemoryRecall, []signal{
				compile(`i remember`, "'I remember'"),
				compile(`there was .*about`, "vague reference to past content"),
				compile(`something about`, "'something about'"),
				compile(`what was it`, "'what was it'"),
				compile(`what did i learn`, "learning recall"),
				compile(`can'?t recall`, "explicit recall failure"),
				compile(`trying to remember`, "explicit recall attempt"),
				compile(`what was the .*that`, "'what was the ... that'"),
			}},
			{types.QueryTypeCorrelation, []signal{
				compile(`\bpattern`, "'pattern'"),
				compile(`\busually\b`, "'usually'"),
				compile(`tend to`, "'tend to'"),
				compile(`after .*do i`, "behavior after activity"),
				compile(`before .*do i`, "behavior before activity"),
				compile(`typically`, "'typically'"),
				compile(`what do i (usually|typically)`, "habit question"),
				compile(`is there a (pattern|correlation)`, "explicit correlation question"),
				compile(`how often`, "frequency question"),
			}},
			{types.QueryTypeWebAugmented, []signal{
				compile(`\blatest\b`, "'latest'"),
				compile(`current .*(news|events|developments)`, "current affairs"),
				compile(`recent news`, "'recent news'"),
				compile(`since then`, "'since then'"),
				compile(`developments`, "'developments'"),
				compile(`what (is|are) the (latest|current)`, "latest-state question"),
				compile(`what happened .*world`, "world events question"),
				compile(`connect .*with current`, "bridge to current events"),
			}},
			{types.QueryTypeMultiEntity, []signal{
				compile(`both .*and`, "'both ... and'"),
				compile(`relationship between`, "'relationship between'"),
				compile(`how are .*related`, "'how are ... related'"),
				compile(`connection between`, "'connection between'"),
				compile(`\w+ and \w+ (together|related)`, "two entities together"),
			}},
		},
	}
}

// Classify is a pure function of the query string. Simple signals
// short-circuit; otherwise the per-type signal counts decide, ties broken by
// declaration order.
func (c *Classifier) Classify(query string) Classification {
	for _, s := range c.simple {
		if s.re.MatchString(query) {
			return Classification{
				IsComplex:  false,
				QueryType:  types.QueryTypeSimple,
				Confidence: simpleConfidence,
				Signals:    []string{s.label},
				Reasoning:  "matched a simple-query signal; single-shot retrieval is enough",
			}
		}
	}

	bestScore := 0.0
	bestType := types.QueryTypeSimple
	var bestSignals []string
	for _, ts := range c.complex {
		var matched []string
		for _, s := range ts.signals {
			if s.re.MatchString(query) {
				matched = append(matched, s.label)
			}
		}
		score := float64(len(matched)) * scorePerSignal
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			bestScore = score
			bestType = ts.queryType
			bestSignals = matched
		}
	}

	if bestScore == 0 {
		return Classification{
			IsComplex:  false,
			QueryType:  types.QueryTypeSimple,
			Confidence: noSignalConfidence,
			Reasoning:  "no complexity signals detected",
		}
	}

	if len(bestSignals) > maxSignals {
		bestSignals = bestSignals[:maxSignals]
	}

	isComplex := bestScore >= complexThreshold
	queryType := bestType
	if !isComplex {
		queryType = types.QueryTypeSimple
	}
	c.logger.Debug("Classified query",
		"query_type", queryType, "score", bestScore, "signals", len(bestSignals))

	return Classification{
		IsComplex:  isComplex,
		QueryType:  queryType,
		Confidence: bestScore,
		Signals:    bestSignals,
		Reasoning:  fmt.Sprintf("matched %d %s signal(s)", len(bestSignals), bestType),
	}
}
