// Package prompt asks the user for the project name.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user aborts the interactive prompt.
var ErrCancelled = errors.New("prompt cancelled")

const question = "Your project name?"

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	defaultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

// ProjectName asks for a project name, returning def for an empty answer.
// Terminals get an editable text input; anything else is read as one line.
func ProjectName(in io.Reader, out io.Writer, def string) (string, error) {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		return interactive(f, out, def)
	}
	return readLine(in, out, def)
}

func readLine(in io.Reader, out io.Writer, def string) (string, error) {
	fmt.Fprintf(out, "%s (%s) ", question, def)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	fmt.Fprintln(out)
	return answer(line, def), nil
}

// answer drops the line ending and keeps the rest of a non-blank answer as typed.
func answer(s, def string) string {
	s = strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func interactive(in *os.File, out io.Writer, def string) (string, error) {
	final, err := tea.NewProgram(newModel(def), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", fmt.Errorf("running prompt: %w", err)
	}
	m := final.(model)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.value(), nil
}

type model struct {
	input     textinput.Model
	def       string
	done      bool
	cancelled bool
}

func newModel(def string) model {
	ti := textinput.New()
	ti.Placeholder = def
	ti.Prompt = "› "
	ti.CharLimit = 214
	ti.Focus()
	return model{input: ti, def: def}
}

func (m model) value() string { return answer(m.input.Value(), m.def) }

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return questionStyle.Render(question) + " " + answerStyle.Render(m.value()) + "\n"
	}
	if m.cancelled {
		return ""
	}
	return questionStyle.Render(question) + " " + defaultStyle.Render("("+m.def+")") + "\n" + m.input.View() + "\n"
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
