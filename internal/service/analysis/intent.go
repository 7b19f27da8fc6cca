package analysis

import "github.com/sandevgo/tuskmem/internal/core"

type IntentExtractor struct {
	classifier IntentClassifier
}

func NewIntentExtractor(c IntentClassifier) *IntentExtractor {
	if c == nil {
		c = PatternIntents{}
	}
	return &IntentExtractor{classifier: c}
}

// Extract turns every user-authored unit into an intent. Summary-derived
// intents rank one confidence tier above per-message ones.
func (e *IntentExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) ([]core.Intent, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return nil, err
	}

	intents := make([]core.Intent, 0)
	for _, u := range byRole(units, core.RoleUser) {
		if u.blank() {
			continue
		}
		intents = append(intents, core.Intent{
			Text:       u.text,
			Confidence: e.confidence(u),
			Provenance: u.provenance(),
		})
	}
	return intents, nil
}

func (e *IntentExtractor) confidence(u unit) core.Confidence {
	explicit := e.classifier.IsExplicitRequest(u.text)
	switch {
	case u.tier == core.TierSummary && explicit:
		return core.ConfidenceHigh
	case u.tier == core.TierSummary, explicit:
		return core.ConfidenceMedium
	default:
		return core.ConfidenceLow
	}
}
