package analysis

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgs(pairs ...string) []core.Message {
	out := make([]core.Message, 0, len(pairs)/2)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, core.Message{
			ID:        string(rune('a' + i/2)),
			Role:      pairs[i],
			Content:   pairs[i+1],
			Timestamp: base.Add(time.Duration(i/2) * time.Minute),
		})
	}
	return out
}

func summarize(m []core.Message) *core.ConversationSummary {
	s := summary.Extract(m)
	return &s
}

func TestExtractors_EmptyInput(t *testing.T) {
	set := NewSet(DefaultRules())

	for _, sum := range []*core.ConversationSummary{nil, summarize(nil)} {
		intents, err := set.Intents.Extract(nil, sum)
		require.NoError(t, err)
		assert.Empty(t, intents)

		actions, err := set.Actions.Extract(nil, sum)
		require.NoError(t, err)
		assert.Empty(t, actions)

		work, err := set.Technical.Extract(nil, sum)
		require.NoError(t, err)
		assert.Empty(t, work)

		decisions, err := set.Decisions.Extract(nil, sum)
		require.NoError(t, err)
		assert.Empty(t, decisions)

		flow, err := set.Flow.Extract(nil, sum)
		require.NoError(t, err)
		assert.Equal(t, 0, flow.Turns)
		assert.Equal(t, core.DominantNone, flow.Dominant)
		assert.Empty(t, flow.Sequence)

		state, err := set.State.Extract(nil, sum)
		require.NoError(t, err)
		assert.Empty(t, state.CurrentTask)
		assert.Empty(t, state.Blockers)
		assert.True(t, state.LastUpdate.IsZero())
	}
}

func TestExtractors_NoTruncation(t *testing.T) {
	long := "Please fix the parser in internal/parser/generic.go so that it keeps everything. " +
		strings.Repeat("The quick brown fox jumps over the lazy dog while the parser runs ", 200) +
		"and we should use the streaming decoder!"
	reply := "I fixed internal/parser/generic.go. " + strings.Repeat("Every line is preserved in full ", 300)

	conv := msgs(core.RoleUser, long, core.RoleAssistant, reply)
	set := NewSet(DefaultRules())

	for name, sum := range map[string]*core.ConversationSummary{
		"summary":  summarize(conv),
		"fallback": nil,
	} {
		t.Run(name, func(t *testing.T) {
			intents, err := set.Intents.Extract(conv, sum)
			require.NoError(t, err)
			require.Len(t, intents, 1)
			assert.Equal(t, long, intents[0].Text)
			assert.Len(t, intents[0].Text, len(long))

			actions, err := set.Actions.Extract(conv, sum)
			require.NoError(t, err)
			require.Len(t, actions, 1)
			assert.Equal(t, reply, actions[0].Details)

			work, err := set.Technical.Extract(conv, sum)
			require.NoError(t, err)
			require.Len(t, work, 2)
			assert.Equal(t, long, work[0].Description)
			assert.Equal(t, reply, work[1].Description)

			decisions, err := set.Decisions.Extract(conv, sum)
			require.NoError(t, err)
			require.NotEmpty(t, decisions)
			assert.Equal(t, long, decisions[0].Context)

			state, err := set.State.Extract(conv, sum)
			require.NoError(t, err)
			assert.Equal(t, long, state.CurrentTask)
		})
	}
}

func TestIntentExtractor_Confidence(t *testing.T) {
	conv := msgs(
		core.RoleUser, "Can you add a retry to the sink?",
		core.RoleAssistant, "Sure.",
		core.RoleUser, "the logs look odd today",
	)
	e := NewIntentExtractor(nil)

	tests := []struct {
		name string
		sum  *core.ConversationSummary
		want []core.Confidence
		tier core.Tier
	}{
		{name: "summary tier", sum: summarize(conv), want: []core.Confidence{core.ConfidenceHigh, core.ConfidenceMedium}, tier: core.TierSummary},
		{name: "message tier", sum: nil, want: []core.Confidence{core.ConfidenceMedium, core.ConfidenceLow}, tier: core.TierMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents, err := e.Extract(conv, tt.sum)
			require.NoError(t, err)
			require.Len(t, intents, 2)
			for i, in := range intents {
				assert.Equal(t, tt.want[i], in.Confidence)
				assert.Equal(t, tt.tier, in.Provenance.Tier)
			}
			assert.Equal(t, 0, intents[0].Provenance.MessageIndex)
			assert.Equal(t, 2, intents[1].Provenance.MessageIndex)
		})
	}
}

func TestActionExtractor_Classification(t *testing.T) {
	conv := msgs(
		core.RoleUser, "go",
		core.RoleAssistant, "I created the migration and wired it up.",
		core.RoleUser, "and?",
		core.RoleAssistant, "Okay.",
		core.RoleAssistant, "Removed the old table.",
	)
	e := NewActionExtractor(nil)

	t.Run("summary keeps every assistant segment", func(t *testing.T) {
		actions, err := e.Extract(conv, summarize(conv))
		require.NoError(t, err)
		require.Len(t, actions, 3)
		assert.Equal(t, "create", actions[0].Type)
		assert.Equal(t, ActionGeneric, actions[1].Type)
		assert.Equal(t, "remove", actions[2].Type)
	})

	t.Run("fallback keeps matched only", func(t *testing.T) {
		actions, err := e.Extract(conv, nil)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, "create", actions[0].Type)
		assert.Equal(t, "remove", actions[1].Type)
		assert.Equal(t, 4, actions[1].Provenance.MessageIndex)
	})
}

func TestTechnicalExtractor_Types(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{text: "run npm install lodash first", want: "dependency", ok: true},
		{text: "$ make build", want: "command", ok: true},
		{text: "look at cmd/tuskmem/main.go", want: "file", ok: true},
		{text: "the parseTimestamp helper is wrong", want: "code", ok: true},
		{text: "thanks, that is all", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := PatternTechnical{}.WorkType(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecisionExtractor_Impact(t *testing.T) {
	conv := msgs(
		core.RoleUser, "Which store? Let's use sqlite for the sink. It must stay local.",
		core.RoleAssistant, "We should probably cache the hashes. Done.",
		core.RoleUser, "We chose yaml over toml.",
	)
	e := NewDecisionExtractor(nil)

	decisions, err := e.Extract(conv, nil)
	require.NoError(t, err)
	require.Len(t, decisions, 3)

	assert.Equal(t, "Let's use sqlite for the sink.", decisions[0].Decision)
	assert.Equal(t, core.ImpactHigh, decisions[0].Impact)
	assert.Equal(t, conv[0].Content, decisions[0].Context)

	assert.Equal(t, "We should probably cache the hashes.", decisions[1].Decision)
	assert.Equal(t, core.ImpactMedium, decisions[1].Impact)

	assert.Equal(t, core.ImpactLow, decisions[2].Impact)
	assert.Equal(t, 2, decisions[2].Provenance.MessageIndex)
}

func TestFlowExtractor_Turns(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		turns    int
		dominant core.DominantRole
	}{
		{name: "single", roles: []string{core.RoleUser}, turns: 0, dominant: core.DominantUser},
		{name: "alternating", roles: []string{core.RoleUser, core.RoleAssistant, core.RoleUser, core.RoleAssistant}, turns: 3, dominant: core.DominantBalanced},
		{name: "assistant heavy", roles: []string{core.RoleUser, core.RoleAssistant, core.RoleAssistant, core.RoleAssistant}, turns: 1, dominant: core.DominantAssistant},
		{name: "runs", roles: []string{core.RoleUser, core.RoleUser, core.RoleAssistant, core.RoleAssistant, core.RoleUser}, turns: 2, dominant: core.DominantBalanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pairs []string
			for _, r := range tt.roles {
				pairs = append(pairs, r, "text")
			}
			conv := msgs(pairs...)

			for _, sum := range []*core.ConversationSummary{nil, summarize(conv)} {
				flow, err := NewFlowExtractor().Extract(conv, sum)
				require.NoError(t, err)
				assert.Equal(t, tt.turns, flow.Turns)
				assert.Equal(t, tt.dominant, flow.Dominant)
				assert.Equal(t, tt.roles, flow.Sequence)
			}
		})
	}
}

func TestWorkingStateExtractor(t *testing.T) {
	conv := msgs(
		core.RoleUser, "Set up the poller.",
		core.RoleAssistant, "The build fails on cgo. I am stuck on the linker. The build fails on cgo.",
		core.RoleUser, "Try the pure driver then.",
		core.RoleAssistant, "Done. Next, run the migrations. Let me know.",
	)

	state, err := NewWorkingStateExtractor(nil).Extract(conv, summarize(conv))
	require.NoError(t, err)

	assert.Equal(t, "Try the pure driver then.", state.CurrentTask)
	assert.Equal(t, []string{"The build fails on cgo.", "I am stuck on the linker."}, state.Blockers)
	assert.Equal(t, "Next, run the migrations.", state.NextAction)
	assert.Equal(t, conv[3].Timestamp, state.LastUpdate)
}

func TestExtractors_UnknownRole(t *testing.T) {
	conv := []core.Message{{Role: "narrator", Content: "once upon a time"}}
	set := NewSet(DefaultRules())

	_, err := set.Intents.Extract(conv, nil)
	assert.True(t, errors.Is(err, ErrUnknownRole))

	_, err = set.Flow.Extract(conv, nil)
	assert.True(t, errors.Is(err, ErrUnknownRole))
}

func TestExtractors_MissingContent(t *testing.T) {
	conv := []core.Message{{Role: core.RoleUser}, {Role: core.RoleAssistant, Content: "Created it."}}

	intents, err := NewIntentExtractor(nil).Extract(conv, nil)
	require.NoError(t, err)
	assert.Empty(t, intents)

	flow, err := NewFlowExtractor().Extract(conv, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, flow.Turns)
}

func TestSentences(t *testing.T) {
	text := "First one. Second one!\nThird line\n```go\nfunc a() {}\n```\nv1.2 stays whole?"
	assert.Equal(t, []string{
		"First one.",
		"Second one!",
		"Third line",
		"```go\nfunc a() {}\n```",
		"v1.2 stays whole?",
	}, sentences(text))
}

type stubIntents struct{}

func (stubIntents) IsExplicitRequest(string) bool { return true }

func TestNewSet_CustomRules(t *testing.T) {
	set := NewSet(Rules{Intents: stubIntents{}})
	conv := msgs(core.RoleUser, "hmm", core.RoleAssistant, "ok")

	intents, err := set.Intents.Extract(conv, nil)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, core.ConfidenceMedium, intents[0].Confidence)

	actions, err := set.Actions.Extract(conv, nil)
	require.NoError(t, err)
	assert.Empty(t, actions)
}
