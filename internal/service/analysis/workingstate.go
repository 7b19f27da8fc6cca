package analysis

import "github.com/sandevgo/tuskmem/internal/core"

type WorkingStateExtractor struct {
	matcher StateMatcher
}

func NewWorkingStateExtractor(m StateMatcher) *WorkingStateExtractor {
	if m == nil {
		m = PatternState{}
	}
	return &WorkingStateExtractor{matcher: m}
}

// Extract takes the last user unit as the current task, every blocker
// sentence in order, and the latest imperative sentence as next action.
func (e *WorkingStateExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) (core.WorkingState, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return core.WorkingState{}, err
	}

	state := core.WorkingState{Blockers: make([]string, 0)}
	seen := make(map[string]struct{})

	for _, u := range units {
		if u.blank() {
			continue
		}
		if u.role == core.RoleUser {
			state.CurrentTask = u.text
		}
		if u.ts.After(state.LastUpdate) {
			state.LastUpdate = u.ts
		}
		for _, s := range sentences(u.text) {
			if !e.matcher.IsBlocker(s) {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			state.Blockers = append(state.Blockers, s)
		}
	}

	state.NextAction = e.nextAction(units)
	return state, nil
}

func (e *WorkingStateExtractor) nextAction(units []unit) string {
	for i := len(units) - 1; i >= 0; i-- {
		ss := sentences(units[i].text)
		for j := len(ss) - 1; j >= 0; j-- {
			if e.matcher.IsNextAction(ss[j]) {
				return ss[j]
			}
		}
	}
	return ""
}
