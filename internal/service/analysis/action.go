package analysis

import "github.com/sandevgo/tuskmem/internal/core"

// ActionGeneric tags summary-tier assistant text that matched no verb.
const ActionGeneric = "response"

type ActionExtractor struct {
	classifier ActionClassifier
}

func NewActionExtractor(c ActionClassifier) *ActionExtractor {
	if c == nil {
		c = PatternActions{}
	}
	return &ActionExtractor{classifier: c}
}

// Extract records assistant-authored units as actions. Per-message fallback
// only keeps units whose verb pattern matched.
func (e *ActionExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) ([]core.Action, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return nil, err
	}

	actions := make([]core.Action, 0)
	for _, u := range byRole(units, core.RoleAssistant) {
		if u.blank() {
			continue
		}

		typ, ok := e.classifier.ActionType(u.text)
		if !ok {
			if u.tier != core.TierSummary {
				continue
			}
			typ = ActionGeneric
		}

		actions = append(actions, core.Action{
			Type:       typ,
			Details:    u.text,
			Provenance: u.provenance(),
		})
	}
	return actions, nil
}
