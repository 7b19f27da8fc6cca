package installer

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/pkg/env"
)

// SaveEnv writes the collected settings to <runtime>/.env. An existing file
// is never overwritten.
func SaveEnv(state *InstallState) (string, error) {
	if err := os.MkdirAll(state.RuntimePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(state.RuntimePath, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return "", fmt.Errorf(".env file already exists at %s", envPath)
	}

	content, err := env.MarshalEnv(&state.Settings)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		return "", err
	}
	return envPath, nil
}

// WriteSources writes sources.yaml unless one exists already.
func WriteSources(state *InstallState) (string, error) {
	path := filepath.Join(state.RuntimePath, "sources.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	sources := state.Sources
	if len(sources) == 0 {
		sources = config.DefaultSources()
	}
	if err := config.SaveSources(path, sources); err != nil {
		return "", err
	}
	return path, nil
}

// SaveEnvStep writes the collected configuration to .env file
type SaveEnvStep struct {
	err   error
	saved bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}
	if s.err != nil {
		return s, nil
	}

	// Perform save synchronously (fast operation)
	if _, err := SaveEnv(state); err != nil {
		s.err = err
		return s, nil
	}

	s.saved = true
	return nil, nil // Signal completion
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// WriteSourcesStep writes sources.yaml to the runtime directory
type WriteSourcesStep struct {
	err  error
	done bool
}

func NewWriteSourcesStep() Step {
	return &WriteSourcesStep{}
}

func (s *WriteSourcesStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *WriteSourcesStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.done {
		return nil, nil
	}
	if s.err != nil {
		return s, nil
	}

	if _, err := WriteSources(state); err != nil {
		s.err = err
		return s, nil
	}

	s.done = true
	return nil, nil
}

func (s *WriteSourcesStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.done {
		return "Sources file written!\n"
	}
	return "Writing sources file...\n"
}
