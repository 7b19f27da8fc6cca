package analysis

import "github.com/sandevgo/tuskmem/internal/core"

// Set is the full run of six extractors, wired from one Rules value.
type Set struct {
	Intents   Extractor[[]core.Intent]
	Actions   Extractor[[]core.Action]
	Technical Extractor[[]core.TechnicalWork]
	Decisions Extractor[[]core.Decision]
	Flow      Extractor[core.Flow]
	State     Extractor[core.WorkingState]
}

func NewSet(rules Rules) Set {
	rules = rules.withDefaults()
	return Set{
		Intents:   NewIntentExtractor(rules.Intents),
		Actions:   NewActionExtractor(rules.Actions),
		Technical: NewTechnicalExtractor(rules.Technical),
		Decisions: NewDecisionExtractor(rules.Decisions),
		Flow:      NewFlowExtractor(),
		State:     NewWorkingStateExtractor(rules.State),
	}
}

// WithDefaults fills nil extractors from DefaultRules.
func (s Set) WithDefaults() Set {
	d := NewSet(DefaultRules())
	if s.Intents == nil {
		s.Intents = d.Intents
	}
	if s.Actions == nil {
		s.Actions = d.Actions
	}
	if s.Technical == nil {
		s.Technical = d.Technical
	}
	if s.Decisions == nil {
		s.Decisions = d.Decisions
	}
	if s.Flow == nil {
		s.Flow = d.Flow
	}
	if s.State == nil {
		s.State = d.State
	}
	return s
}
