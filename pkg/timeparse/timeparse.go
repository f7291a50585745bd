// Package timeparse resolves natural-language time descriptions and loosely
// typed step parameters into TimeFilter ranges.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
	"github.com/pkg/errors"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

// Parser resolves descriptions relative to an injectable clock.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// NewParserAt pins the clock, used by tests and replayed executions.
func NewParserAt(now func() time.Time) *Parser {
	return &Parser{now: now}
}

var lastNDaysRe = regexp.MustCompile(`^(?:the )?(?:last|past) (\d+) days?$`)

// ParseDescription turns a phrase like "last week" or "March 10" into a
// closed interval. Common relative phrases resolve through a fixed table;
// everything else goes through the dateparser and becomes that day's 24h
// window.
func (p *Parser) ParseDescription(desc string) (*types.TimeFilter, error) {
	normalized := strings.ToLower(strings.TrimSpace(desc))
	normalized = strings.TrimSuffix(normalized, "?")
	normalized = strings.TrimSuffix(normalized, ".")
	if normalized == "" {
		return nil, nil
	}

	now := p.now()
	day := startOfDay(now)

	var start, end time.Time
	switch normalized {
	case "today":
		start, end = day, day.AddDate(0, 0, 1)
	case "yesterday":
		start, end = day.AddDate(0, 0, -1), day
	case "this week":
		start = startOfWeek(now)
		end = start.AddDate(0, 0, 7)
	case "last week", "past week":
		end = startOfWeek(now)
		start = end.AddDate(0, 0, -7)
	case "this month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)
	case "last month", "past month":
		end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = end.AddDate(0, -1, 0)
	case "this year":
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(1, 0, 0)
	default:
		if m := lastNDaysRe.FindStringSubmatch(normalized); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				return nil, errors.Errorf("unparseable day count in %q", desc)
			}
			end = day.AddDate(0, 0, 1)
			start = day.AddDate(0, 0, -n)
		} else {
			parsed, err := dps.Parse(&dps.Configuration{
				CurrentTime:     now,
				DefaultTimezone: time.UTC,
			}, normalized)
			if err != nil || parsed.Time.IsZero() {
				return nil, errors.Errorf("could not parse time description %q", desc)
			}
			start = startOfDay(parsed.Time)
			end = start.AddDate(0, 0, 1)
		}
	}

	return &types.TimeFilter{Start: &start, End: &end, Description: desc}, nil
}

// FromParam accepts the four step-parameter encodings of a time filter:
// a native TimeFilter, a mapping with description only, a mapping with
// ISO-8601 start/end, or a bare description string. nil and empty inputs
// yield no filter.
func (p *Parser) FromParam(v any) (*types.TimeFilter, error) {
	switch tf := v.(type) {
	case nil:
		return nil, nil
	case *types.TimeFilter:
		return tf, nil
	case types.TimeFilter:
		return &tf, nil
	case string:
		if strings.TrimSpace(tf) == "" {
			return nil, nil
		}
		return p.ParseDescription(tf)
	case map[string]any:
		return p.fromMap(tf)
	default:
		return nil, errors.Errorf("unsupported time_filter value of type %T", v)
	}
}

func (p *Parser) fromMap(m map[string]any) (*types.TimeFilter, error) {
	startRaw, hasStart := stringField(m, "start")
	endRaw, hasEnd := stringField(m, "end")
	desc, _ := stringField(m, "description")

	if hasStart || hasEnd {
		out := &types.TimeFilter{Description: desc}
		if hasStart {
			t, err := parseISO(startRaw)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing time_filter start %q", startRaw)
			}
			out.Start = &t
		}
		if hasEnd {
			t, err := parseISO(endRaw)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing time_filter end %q", endRaw)
			}
			out.End = &t
		}
		return out, nil
	}
	if strings.TrimSpace(desc) != "" {
		return p.ParseDescription(desc)
	}
	return nil, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the preceding Monday's midnight.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
