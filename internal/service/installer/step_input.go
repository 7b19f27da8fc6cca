package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
)

// InputStep collects one free-form value. validate may reject it; skip may
// bypass the step entirely.
type InputStep struct {
	input    textinput.Model
	title    string
	err      error
	validate func(value string) error
	apply    func(state *InstallState, value string)
	skip     func(state *InstallState) bool
}

func newInputStep(title, placeholder, value string) *InputStep {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.SetValue(value)
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 60
	return &InputStep{input: ti, title: title}
}

// NewSourceStep asks for the Claude Code projects directory
func NewSourceStep() Step {
	home, _ := os.UserHomeDir()
	def := filepath.Join(home, ".claude", "projects")

	s := newInputStep("Claude Code projects directory", def, def)
	s.apply = func(state *InstallState, value string) {
		if value == "" {
			value = def
		}
		state.Sources = append(state.Sources, core.SourceConfig{
			Name: "claude-code",
			Kind: config.SourceKindClaudeCode,
			Path: value,
		})
	}
	return s
}

// NewIntervalStep asks how often sources are polled
func NewIntervalStep() Step {
	s := newInputStep("Poll interval", "5m", "5m")
	s.validate = func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("not a duration: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		return nil
	}
	s.apply = func(state *InstallState, value string) {
		if d, err := time.ParseDuration(value); err == nil {
			state.Settings.PollInterval = d
		}
	}
	return s
}

// NewNATSURLStep asks for the NATS server, only when the NATS sink is on
func NewNATSURLStep() Step {
	s := newInputStep("NATS server URL", "nats://127.0.0.1:4222", "nats://127.0.0.1:4222")
	s.skip = func(state *InstallState) bool {
		return !slices.Contains(state.Settings.Sinks, config.SinkNATS)
	}
	s.validate = func(value string) error {
		if !strings.HasPrefix(value, "nats://") && !strings.HasPrefix(value, "tls://") {
			return fmt.Errorf("expected a nats:// or tls:// URL")
		}
		return nil
	}
	s.apply = func(state *InstallState, value string) {
		state.Settings.NATSURL = value
	}
	return s
}

func (s *InputStep) Init() tea.Cmd {
	return textinput.Blink
}

func (s *InputStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.skip != nil && s.skip(state) {
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			value := strings.TrimSpace(s.input.Value())
			if s.validate != nil {
				if err := s.validate(value); err != nil {
					s.err = err
					return s, nil
				}
			}
			s.apply(state, value)
			return nil, nil
		}
		s.err = nil
	}
	return s, cmd
}

func (s *InputStep) View(state *InstallState) string {
	view := fmt.Sprintf("%s:\n\n%s\n\n(press enter to confirm)\n", s.title, s.input.View())
	if s.err != nil {
		view += "\n" + errorStyle.Render(s.err.Error()) + "\n"
	}
	return view
}
