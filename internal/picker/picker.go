// Package picker lets the operator choose one PO code from the candidates
// that apply to the surveyed payer and region.
package picker

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/SideneiSilva/editor-po-barry/internal/rules"
)

// ErrCancelled is returned when the operator leaves without choosing.
var ErrCancelled = errors.New("selection cancelled")

// KeyMap defines the picker's keyboard shortcuts.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "apply code"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q/Esc", "cancel"),
		),
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Model is the bubbletea model of the chooser.
type Model struct {
	title     string
	options   []rules.Rule
	keys      KeyMap
	cursor    int
	chosen    int
	cancelled bool
}

// New creates a chooser over options.
func New(title string, options []rules.Rule) Model {
	return Model{title: title, options: options, keys: DefaultKeyMap(), chosen: -1}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Select):
		if len(m.options) > 0 {
			m.chosen = m.cursor
			return m, tea.Quit
		}
	default:
		// Digits jump straight to an option.
		if n, err := strconv.Atoi(keyMsg.String()); err == nil && n >= 1 && n <= len(m.options) {
			m.cursor = n - 1
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	for i, r := range m.options {
		line := fmt.Sprintf("%d  %s  %s", i+1, r.Code, r.Label)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("[↑↓] Navigate | [1-9] Quick select | [Enter] Apply | [q] Cancel"))
	b.WriteString("\n")
	return b.String()
}

// Choice returns the chosen option, if any.
func (m Model) Choice() (rules.Rule, bool) {
	if m.chosen < 0 || m.chosen >= len(m.options) {
		return rules.Rule{}, false
	}
	return m.options[m.chosen], true
}

// Run shows the chooser on the given terminal streams and blocks until the
// operator picks an option or cancels.
func Run(title string, options []rules.Rule, in io.Reader, out io.Writer) (rules.Rule, error) {
	if len(options) == 0 {
		return rules.Rule{}, errors.New("no candidate codes to choose from")
	}

	final, err := tea.NewProgram(New(title, options), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return rules.Rule{}, fmt.Errorf("chooser failed: %w", err)
	}
	choice, ok := final.(Model).Choice()
	if !ok {
		return rules.Rule{}, ErrCancelled
	}
	return choice, nil
}

// Pick returns option n (1-based), for non-interactive use.
func Pick(options []rules.Rule, n int) (rules.Rule, error) {
	if n < 1 || n > len(options) {
		return rules.Rule{}, fmt.Errorf("choice %d out of range 1-%d", n, len(options))
	}
	return options[n-1], nil
}
