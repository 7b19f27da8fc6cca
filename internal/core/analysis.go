package core

import "time"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Tier tells whether a finding came from the conversation summary or from
// per-message fallback matching.
type Tier string

const (
	TierSummary Tier = "summary"
	TierMessage Tier = "message"
)

type Provenance struct {
	Tier         Tier `json:"tier"`
	MessageIndex int  `json:"messageIndex"`
}

// Segment is one role-attributed piece of text in a summary.
type Segment struct {
	Role         string    `json:"role"`
	MessageIndex int       `json:"messageIndex"`
	Timestamp    time.Time `json:"timestamp"`
	Text         string    `json:"text"`
}

type SummaryMetrics struct {
	TotalMessages     int `json:"totalMessages"`
	UserMessages      int `json:"userMessages"`
	AssistantMessages int `json:"assistantMessages"`
	TotalChars        int `json:"totalChars"`
	UserChars         int `json:"userChars"`
	AssistantChars    int `json:"assistantChars"`
}

type ConversationSummary struct {
	UserQueries       string         `json:"userQueries"`
	AssistantText     string         `json:"assistantText"`
	FullConversation  string         `json:"fullConversation"`
	Metrics           SummaryMetrics `json:"metrics"`
	UserSegments      []Segment      `json:"-"`
	AssistantSegments []Segment      `json:"-"`
}

// Empty reports whether the summary carries no text to reason over.
func (s *ConversationSummary) Empty() bool {
	return s == nil || s.Metrics.TotalMessages == 0
}

type Intent struct {
	Text       string     `json:"text"`
	Confidence Confidence `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

type Action struct {
	Type       string     `json:"type"`
	Details    string     `json:"details"`
	Provenance Provenance `json:"provenance"`
}

type TechnicalWork struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Provenance  Provenance `json:"provenance"`
}

type Decision struct {
	Decision   string     `json:"decision"`
	Context    string     `json:"context"`
	Impact     Impact     `json:"impact"`
	Provenance Provenance `json:"provenance"`
}

type DominantRole string

const (
	DominantNone      DominantRole = "none"
	DominantUser      DominantRole = "user"
	DominantAssistant DominantRole = "assistant"
	DominantBalanced  DominantRole = "balanced"
)

type Flow struct {
	Sequence []string     `json:"sequence"`
	Turns    int          `json:"turns"`
	Dominant DominantRole `json:"dominant"`
}

type WorkingState struct {
	CurrentTask string    `json:"currentTask"`
	Blockers    []string  `json:"blockers"`
	NextAction  string    `json:"nextAction"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

type AnalysisResult struct {
	ConversationID string               `json:"conversationId"`
	Source         string               `json:"source"`
	Timestamp      time.Time            `json:"timestamp"`
	AnalyzedAt     time.Time            `json:"analyzedAt"`
	MessageCount   int                  `json:"messageCount"`
	Summary        *ConversationSummary `json:"summary,omitempty"`
	UserIntents    []Intent             `json:"userIntents"`
	AIActions      []Action             `json:"aiActions"`
	TechnicalWork  []TechnicalWork      `json:"technicalWork"`
	Decisions      []Decision           `json:"decisions"`
	Flow           Flow                 `json:"flow"`
	WorkingState   WorkingState         `json:"workingState"`
}
