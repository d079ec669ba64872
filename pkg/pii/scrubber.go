// Copyright 2025 MindOps Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pii

import (
	"sort"

	"github.com/Huzefaaa2/MindOps/pkg/trace"
)

const defaultToken = "[REDACTED]"

// Match records one detected PII value and its position in the source text.
type Match struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result is the outcome of scrubbing a single string.
type Result struct {
	Original string  `json:"original"`
	Redacted string  `json:"redacted"`
	Matches  []Match `json:"matches"`
}

// Report aggregates scrubbing over a tree or record stream. Strings count as
// fields.
type Report struct {
	TotalFields     int            `json:"total_fields"`
	TotalRedactions int            `json:"total_redactions"`
	ByLabel         map[string]int `json:"by_label"`
}

// Config narrows the rule set and overrides the redaction token.
type Config struct {
	RedactionToken string
	EnabledLabels  []string
}

// Scrubber applies an ordered rule list to strings and structures.
type Scrubber struct {
	config Config
	rules  []Rule
}

// NewScrubber builds a scrubber over rules (DefaultRules when nil).
func NewScrubber(config Config, rules []Rule) *Scrubber {
	if config.RedactionToken == "" {
		config.RedactionToken = defaultToken
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &Scrubber{config: config, rules: rules}
}

// ScrubText applies all enabled rules to text. Matches rejected by a rule's
// validator are discarded. Replacement runs right-to-left so the recorded
// byte offsets stay valid while the redacted string is assembled.
func (s *Scrubber) ScrubText(text string) Result {
	var matches []Match
	for _, rule := range s.activeRules() {
		for _, loc := range rule.Regex.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if rule.Validator != nil && !rule.Validator(value) {
				continue
			}
			matches = append(matches, Match{Label: rule.Label, Value: value, Start: loc[0], End: loc[1]})
		}
	}

	redacted := text
	ordered := append([]Match(nil), matches...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })
	for _, m := range ordered {
		redacted = redacted[:m.Start] + s.config.RedactionToken + redacted[m.End:]
	}
	return Result{Original: text, Redacted: redacted, Matches: matches}
}

// ScrubObject walks maps, slices and strings, redacting every string leaf.
// Non-string scalars pass through untouched.
func (s *Scrubber) ScrubObject(obj any) (any, Report, []Match) {
	var (
		matches     []Match
		totalFields int
	)
	var walk func(v any) any
	walk = func(v any) any {
		switch t := v.(type) {
		case string:
			totalFields++
			res := s.ScrubText(t)
			matches = append(matches, res.Matches...)
			return res.Redacted
		case []any:
			out := make([]any, len(t))
			for i, item := range t {
				out[i] = walk(item)
			}
			return out
		case map[string]any:
			out := make(map[string]any, len(t))
			for k, val := range t {
				out[k] = walk(val)
			}
			return out
		default:
			return v
		}
	}
	redacted := walk(obj)
	return redacted, buildReport(totalFields, matches), matches
}

// ScrubRecords folds ScrubObject over a record stream, returning the
// redacted records and one aggregated report.
func (s *Scrubber) ScrubRecords(records []any) ([]any, Report) {
	var (
		matches     []Match
		totalFields int
		results     []any
	)
	for _, record := range records {
		redacted, report, recordMatches := s.ScrubObject(record)
		results = append(results, redacted)
		totalFields += report.TotalFields
		matches = append(matches, recordMatches...)
	}
	return results, buildReport(totalFields, matches)
}

// ScrubSpans redacts the string surfaces of ingested spans: operation,
// status and string attribute values.
func (s *Scrubber) ScrubSpans(spans []trace.Span) ([]trace.Span, Report) {
	var (
		matches     []Match
		totalFields int
	)
	scrub := func(text string) string {
		totalFields++
		res := s.ScrubText(text)
		matches = append(matches, res.Matches...)
		return res.Redacted
	}
	out := make([]trace.Span, len(spans))
	for i, span := range spans {
		span.Operation = scrub(span.Operation)
		span.Status = scrub(span.Status)
		if len(span.Attrs) > 0 {
			attrs := make(map[string]any, len(span.Attrs))
			for k, v := range span.Attrs {
				if str, ok := v.(string); ok {
					attrs[k] = scrub(str)
				} else {
					attrs[k] = v
				}
			}
			span.Attrs = attrs
		}
		out[i] = span
	}
	return out, buildReport(totalFields, matches)
}

func (s *Scrubber) activeRules() []Rule {
	if len(s.config.EnabledLabels) == 0 {
		return s.rules
	}
	enabled := map[string]bool{}
	for _, label := range s.config.EnabledLabels {
		enabled[label] = true
	}
	var active []Rule
	for _, rule := range s.rules {
		if enabled[rule.Label] {
			active = append(active, rule)
		}
	}
	return active
}

func buildReport(totalFields int, matches []Match) Report {
	byLabel := map[string]int{}
	for _, m := range matches {
		byLabel[m.Label]++
	}
	return Report{TotalFields: totalFields, TotalRedactions: len(matches), ByLabel: byLabel}
}
