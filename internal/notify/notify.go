// Package notify delivers user-facing build notifications: task failures and
// the end-of-build summary.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notification is one user-facing message. Title is usually a task name.
type Notification struct {
	Title   string
	Message string
	Level   Level
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use; parallel tasks report independently.
type Notifier interface {
	Notify(n Notification)
}

var (
	titleInfo  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	titleError = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// Terminal prints notifications to a writer and mirrors them to the logger.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	log   logrus.FieldLogger
	title cases.Caser
}

// NewTerminal returns a Terminal writing to out. log may be nil.
func NewTerminal(out io.Writer, log logrus.FieldLogger) *Terminal {
	return &Terminal{
		out:   out,
		log:   log,
		title: cases.Title(language.English),
	}
}

// Notify renders n as "[Title] message".
func (t *Terminal) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := titleInfo
	if n.Level == LevelError {
		style = titleError
	}
	fmt.Fprintf(t.out, "%s %s\n", style.Render("["+t.title.String(n.Title)+"]"), bodyStyle.Render(n.Message))

	if t.log == nil {
		return
	}
	entry := t.log.WithField("title", n.Title)
	if n.Level == LevelError {
		entry.Error(n.Message)
		return
	}
	entry.Info(n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify appends n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// ByTitle returns the recorded notifications with the given title.
func (r *Recorder) ByTitle(title string) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(Notification) {}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, nf := range m {
		nf.Notify(n)
	}
}
