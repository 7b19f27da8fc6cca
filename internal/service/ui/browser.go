package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/sink"
)

type memoryItem struct {
	mem      core.StoredMemory
	analysis *core.AnalysisResult
	title    string
}

func (i memoryItem) Title() string { return i.title }
func (i memoryItem) Description() string {
	return fmt.Sprintf("%s | %s | %d messages | %s",
		i.mem.AnalyzedAt.Local().Format("2006-01-02 15:04"), i.mem.Source, i.mem.MessageCount, i.mem.ConversationID)
}
func (i memoryItem) FilterValue() string { return i.title + " " + i.mem.ConversationID + " " + i.mem.Source }

// Browser lists stored memories and shows one in full on enter.
type Browser struct {
	list     list.Model
	viewport viewport.Model
	detail   bool
	width    int
	height   int
}

func NewBrowser(mems []core.StoredMemory) Browser {
	items := make([]list.Item, 0, len(mems))
	for _, m := range mems {
		analysis, err := sink.DecodeAnalysis(m)
		if err != nil {
			continue
		}
		items = append(items, memoryItem{mem: m, analysis: analysis, title: sink.Title(analysis)})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Memories"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return Browser{
		list:     l,
		viewport: viewport.New(0, 0),
	}
}

func (b Browser) Init() tea.Cmd {
	return nil
}

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.list.SetSize(msg.Width, msg.Height-1)
		b.viewport.Width = msg.Width
		b.viewport.Height = msg.Height - 2
		return b, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return b, tea.Quit
		}

		if b.detail {
			switch msg.String() {
			case "esc", "q", "backspace":
				b.detail = false
				return b, nil
			}
			b.viewport, cmd = b.viewport.Update(msg)
			return b, cmd
		}

		if msg.String() == "enter" && b.list.FilterState() != list.Filtering {
			if i, ok := b.list.SelectedItem().(memoryItem); ok {
				b.viewport.SetContent(sink.RenderMarkdown(core.MemoryRecord{
					ID:             i.mem.ID,
					ConversationID: i.mem.ConversationID,
					SessionID:      i.mem.SessionID,
					Source:         i.mem.Source,
					AnalyzedAt:     i.mem.AnalyzedAt,
					Analysis:       i.analysis,
				}))
				b.viewport.GotoTop()
				b.detail = true
			}
			return b, nil
		}
	}

	b.list, cmd = b.list.Update(msg)
	return b, cmd
}

func (b Browser) View() string {
	if b.detail {
		return b.viewport.View() + "\n" + DescStyle.Render("↑/↓ scroll • esc back • ctrl+c quit")
	}
	return b.list.View()
}

// Selected returns the memory under the cursor, if any.
func (b Browser) Selected() (core.StoredMemory, bool) {
	i, ok := b.list.SelectedItem().(memoryItem)
	return i.mem, ok
}

// InDetail reports whether a memory is open.
func (b Browser) InDetail() bool {
	return b.detail
}

// RunBrowser starts the TUI
func RunBrowser(mems []core.StoredMemory) error {
	p := tea.NewProgram(NewBrowser(mems), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
