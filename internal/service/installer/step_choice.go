package installer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type choice struct {
	label string
	value string
}

// ChoiceStep picks one of a fixed set of values
type ChoiceStep struct {
	prompt  string
	choices []choice
	cursor  int
	apply   func(state *InstallState, value string)
}

// NewSinkStep selects where analysed conversations are written
func NewSinkStep() Step {
	return &ChoiceStep{
		prompt: "Where should memories be written?",
		choices: []choice{
			{"SQLite store", "sqlite"},
			{"SQLite store + markdown conversation log", "sqlite,markdown"},
			{"SQLite store + NATS publishing", "sqlite,nats"},
			{"Everything (SQLite, markdown, NATS)", "sqlite,markdown,nats"},
		},
		apply: func(state *InstallState, value string) {
			state.Settings.Sinks = strings.Split(value, ",")
		},
	}
}

func (s *ChoiceStep) Init() tea.Cmd {
	return nil
}

func (s *ChoiceStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			s.apply(state, s.choices[s.cursor].value)
			return nil, nil
		}
	}
	return s, nil
}

func (s *ChoiceStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString(s.prompt + "\n\n")
	for i, c := range s.choices {
		if s.cursor == i {
			b.WriteString(selStyle.Render(fmt.Sprintf("> %s", c.label)) + "\n")
		} else {
			b.WriteString(itemStyle.Render(fmt.Sprintf("  %s", c.label)) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}

// OptionsStep toggles the boolean settings
type OptionsStep struct {
	cursor int
}

var optionLabels = []string{
	"Remember processed conversations across restarts",
	"Poll as soon as source files change",
	"Serve the HTTP API while running",
}

func NewOptionsStep() Step {
	return &OptionsStep{}
}

func (s *OptionsStep) Init() tea.Cmd {
	return nil
}

func (s *OptionsStep) option(state *InstallState, i int) *bool {
	switch i {
	case 0:
		return &state.Settings.PersistSeen
	case 1:
		return &state.Settings.Watch
	default:
		return &state.Settings.EnableAPI
	}
}

func (s *OptionsStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(optionLabels)-1 {
				s.cursor++
			}
		case " ", "x":
			opt := s.option(state, s.cursor)
			*opt = !*opt
		case "enter":
			return nil, nil
		}
	}
	return s, nil
}

func (s *OptionsStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Options:\n\n")
	for i, label := range optionLabels {
		mark := "[ ]"
		if *s.option(state, i) {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, label)
		if s.cursor == i {
			b.WriteString(selStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(itemStyle.Render("  "+line) + "\n")
		}
	}
	b.WriteString("\n(space to toggle, enter to continue)\n")
	return b.String()
}
