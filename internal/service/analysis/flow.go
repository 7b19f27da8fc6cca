package analysis

import "github.com/sandevgo/tuskmem/internal/core"

// dominanceRatio is how much one role must outnumber the other to dominate.
const dominanceRatio = 1.5

type FlowExtractor struct{}

func NewFlowExtractor() *FlowExtractor {
	return &FlowExtractor{}
}

// Extract is structural only: the role sequence, the number of role
// changes and which side did most of the talking.
func (e *FlowExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) (core.Flow, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return core.Flow{}, err
	}

	flow := core.Flow{
		Sequence: make([]string, 0, len(units)),
		Dominant: core.DominantNone,
	}

	var users, assistants int
	for i, u := range units {
		flow.Sequence = append(flow.Sequence, u.role)
		if i > 0 && units[i-1].role != u.role {
			flow.Turns++
		}
		if u.role == core.RoleUser {
			users++
		} else {
			assistants++
		}
	}

	flow.Dominant = dominance(users, assistants)
	return flow, nil
}

func dominance(users, assistants int) core.DominantRole {
	switch {
	case users+assistants == 0:
		return core.DominantNone
	case float64(users) > float64(assistants)*dominanceRatio:
		return core.DominantUser
	case float64(assistants) > float64(users)*dominanceRatio:
		return core.DominantAssistant
	default:
		return core.DominantBalanced
	}
}
