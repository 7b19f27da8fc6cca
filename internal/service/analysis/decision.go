package analysis

import (
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

type DecisionExtractor struct {
	matcher DecisionMatcher
}

func NewDecisionExtractor(m DecisionMatcher) *DecisionExtractor {
	if m == nil {
		m = PatternDecisions{}
	}
	return &DecisionExtractor{matcher: m}
}

// Extract finds decision sentences. The decision is the sentence itself,
// the context is the full unit it came from, and impact is judged from the
// sentence and its neighbours.
func (e *DecisionExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) ([]core.Decision, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return nil, err
	}

	decisions := make([]core.Decision, 0)
	for _, u := range units {
		if u.blank() {
			continue
		}

		ss := sentences(u.text)
		for i, s := range ss {
			if !e.matcher.IsDecision(s) {
				continue
			}
			decisions = append(decisions, core.Decision{
				Decision:   s,
				Context:    u.text,
				Impact:     e.matcher.Impact(s, neighbours(ss, i)),
				Provenance: u.provenance(),
			})
		}
	}
	return decisions, nil
}

func neighbours(ss []string, i int) string {
	var parts []string
	if i > 0 {
		parts = append(parts, ss[i-1])
	}
	if i+1 < len(ss) {
		parts = append(parts, ss[i+1])
	}
	return strings.Join(parts, " ")
}
