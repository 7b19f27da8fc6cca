package analysis

import "github.com/sandevgo/tuskmem/internal/core"

type TechnicalExtractor struct {
	classifier TechnicalClassifier
}

func NewTechnicalExtractor(c TechnicalClassifier) *TechnicalExtractor {
	if c == nil {
		c = PatternTechnical{}
	}
	return &TechnicalExtractor{classifier: c}
}

func (e *TechnicalExtractor) Extract(msgs []core.Message, sum *core.ConversationSummary) ([]core.TechnicalWork, error) {
	units, err := collect(msgs, sum)
	if err != nil {
		return nil, err
	}

	work := make([]core.TechnicalWork, 0)
	for _, u := range units {
		if u.blank() {
			continue
		}
		typ, ok := e.classifier.WorkType(u.text)
		if !ok {
			continue
		}
		work = append(work, core.TechnicalWork{
			Type:        typ,
			Description: u.text,
			Provenance:  u.provenance(),
		})
	}
	return work, nil
}
