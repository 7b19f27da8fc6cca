package analysis

import (
	"regexp"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
)

// IntentClassifier tells explicit requests and questions apart from
// other user text.
type IntentClassifier interface {
	IsExplicitRequest(text string) bool
}

// ActionClassifier tags assistant text by what was done.
type ActionClassifier interface {
	ActionType(text string) (string, bool)
}

// TechnicalClassifier tags text that talks about code, files or commands.
type TechnicalClassifier interface {
	WorkType(text string) (string, bool)
}

type DecisionMatcher interface {
	IsDecision(sentence string) bool
	Impact(sentence, surrounding string) core.Impact
}

type StateMatcher interface {
	IsBlocker(sentence string) bool
	IsNextAction(sentence string) bool
}

// Pattern tags text matching Re.
type Pattern struct {
	Tag string
	Re  *regexp.Regexp
}

// PatternSet returns the tag of the first matching pattern.
type PatternSet []Pattern

func (ps PatternSet) Match(text string) (string, bool) {
	for _, p := range ps {
		if p.Re.MatchString(text) {
			return p.Tag, true
		}
	}
	return "", false
}

func pattern(tag, expr string) Pattern {
	return Pattern{Tag: tag, Re: regexp.MustCompile(expr)}
}

var (
	requestRe = regexp.MustCompile(`(?i)^\s*(please|pls|can you|could you|would you|will you|help me|i want|i need|i'd like|let's|how (do|can|should|would)|what|why|where|when|which|is there|are there|add|create|fix|implement|write|make|update|remove|show|explain|refactor)\b`)

	ActionPatterns = PatternSet{
		pattern("fix", `(?i)\b(fixed|resolved|corrected|patched|repaired)\b`),
		pattern("create", `(?i)\b(created|added|implemented|wrote|generated|introduced|set up|built)\b`),
		pattern("update", `(?i)\b(updated|modified|changed|refactored|renamed|moved|replaced|improved|adjusted)\b`),
		pattern("remove", `(?i)\b(removed|deleted|dropped|cleaned up)\b`),
		pattern("test", `(?i)\b(tested|verified|validated|ran the tests)\b`),
		pattern("analyze", `(?i)\b(analy[sz]ed|investigated|reviewed|found that|checked|looked into)\b`),
		pattern("explain", `(?i)(\b(explained|this means|the reason)\b|\bhere('s| is) how\b)`),
	}

	TechnicalPatterns = PatternSet{
		pattern("dependency", `(?i)(\b(go get|npm install|yarn add|pip install|cargo add|dependency|dependencies)\b|\b(go\.mod|package\.json|requirements\.txt)\b)`),
		pattern("command", `(?m)(^\s*\$\s+\S+|\b(go (build|test|run|vet)|npm (run|test|start)|git (commit|push|pull|checkout|rebase|merge)|docker (build|run|compose)|make \w+)\b)`),
		pattern("file", `(?i)(^|[\s"'(\x60])(\.{0,2}/)?([\w.-]+/)*[\w-]+\.(go|js|jsx|ts|tsx|py|rs|java|rb|json|ya?ml|toml|md|sql|sh|css|html|proto)\b`),
		pattern("code", "(```|\\b(func|def|class|interface|struct|type)\\s+[A-Za-z_]\\w*|\\b\\w+\\.\\w+\\(|\\b[a-z]+[A-Z][A-Za-z0-9]*\\b|\\b[a-z]+_[a-z0-9_]+\\b)"),
	}

	decisionRe     = regexp.MustCompile(`(?i)\b(we should|we'll use|we will use|let's use|lets use|go with|going with|decided (to|on)|decision is|i'll use|i will use|chose|chosen|opted (for|to)|settled on|instead of|rather than|prefer\w* \S+( \S+)? over)\b`)
	highImpactRe   = regexp.MustCompile(`(?i)(!|\b(must|critical|crucial|important|never|always|breaking|required|security|definitely)\b)`)
	mediumImpactRe = regexp.MustCompile(`(?i)\b(should|prefer\w*|recommend\w*|better|probably)\b`)

	blockerRe    = regexp.MustCompile(`(?i)\b(blocked|stuck|can't|cannot|can not|unable to|doesn't work|does not work|not working|fails?|failing|failed|error|errors|broken|crash\w*|issue with|problem with|waiting (on|for))\b`)
	nextActionRe = regexp.MustCompile(`(?i)(^(next,?\s+|then\s+|now\s+)?(run|add|update|try|check|create|install|fix|implement|test|deploy|remove|move|rename|write|open|commit|push|review|verify|set|configure|start|restart|let's|make sure)\b|\bnext step\b)`)
)

// PatternIntents is the default IntentClassifier.
type PatternIntents struct{}

func (PatternIntents) IsExplicitRequest(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasSuffix(trimmed, "?") || requestRe.MatchString(trimmed)
}

// PatternActions is the default ActionClassifier.
type PatternActions struct {
	Patterns PatternSet
}

func (p PatternActions) ActionType(text string) (string, bool) {
	if p.Patterns == nil {
		return ActionPatterns.Match(text)
	}
	return p.Patterns.Match(text)
}

// PatternTechnical is the default TechnicalClassifier.
type PatternTechnical struct {
	Patterns PatternSet
}

func (p PatternTechnical) WorkType(text string) (string, bool) {
	if p.Patterns == nil {
		return TechnicalPatterns.Match(text)
	}
	return p.Patterns.Match(text)
}

// PatternDecisions is the default DecisionMatcher.
type PatternDecisions struct{}

func (PatternDecisions) IsDecision(sentence string) bool {
	return decisionRe.MatchString(sentence)
}

func (PatternDecisions) Impact(sentence, surrounding string) core.Impact {
	switch {
	case highImpactRe.MatchString(sentence) || highImpactRe.MatchString(surrounding):
		return core.ImpactHigh
	case mediumImpactRe.MatchString(sentence):
		return core.ImpactMedium
	default:
		return core.ImpactLow
	}
}

// PatternState is the default StateMatcher.
type PatternState struct{}

func (PatternState) IsBlocker(sentence string) bool {
	return blockerRe.MatchString(sentence)
}

func (PatternState) IsNextAction(sentence string) bool {
	return nextActionRe.MatchString(strings.TrimSpace(sentence))
}

// Rules bundles the strategies used by a full extractor set.
type Rules struct {
	Intents   IntentClassifier
	Actions   ActionClassifier
	Technical TechnicalClassifier
	Decisions DecisionMatcher
	State     StateMatcher
}

func DefaultRules() Rules {
	return Rules{
		Intents:   PatternIntents{},
		Actions:   PatternActions{},
		Technical: PatternTechnical{},
		Decisions: PatternDecisions{},
		State:     PatternState{},
	}
}

// withDefaults fills unset strategies.
func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.Intents == nil {
		r.Intents = d.Intents
	}
	if r.Actions == nil {
		r.Actions = d.Actions
	}
	if r.Technical == nil {
		r.Technical = d.Technical
	}
	if r.Decisions == nil {
		r.Decisions = d.Decisions
	}
	if r.State == nil {
		r.State = d.State
	}
	return r
}
