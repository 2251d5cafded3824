// Package logging provides the structured log sink shared across tfm.
//
// Entries are written to the writer given to New (stderr in practice), in
// color when fatih/color reports a color-capable terminal. Every entry is
// also appended to a bounded ring buffer, capped at maxMessages, that a
// renderer can read as a scrollable log pane via Lines.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Sink is the process-wide logger plus its ring buffer of rendered lines.
type Sink struct {
	*logrus.Logger

	mu       sync.Mutex
	lines    []string
	capacity int
}

// ringHook appends formatted entries into the Sink's bounded buffer.
type ringHook struct{ s *Sink }

func (h *ringHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *ringHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	h.s.push(line)
	return nil
}

func (s *Sink) push(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	if over := len(s.lines) - s.capacity; over > 0 {
		s.lines = s.lines[over:]
	}
}

// Lines returns a copy of the currently buffered log lines, oldest first.
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

// New builds a Sink writing to w (os.Stderr is typical before the TUI takes
// over) with a log-pane ring buffer capped at maxMessages.
func New(w io.Writer, level logrus.Level, maxMessages int) *Sink {
	if maxMessages <= 0 {
		maxMessages = 500
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:   color.NoColor == false,
		FullTimestamp: true,
	})
	s := &Sink{Logger: l, capacity: maxMessages}
	l.AddHook(&ringHook{s: s})
	return s
}

// Default is a process-wide sink usable without dependency injection; the
// app builds its own Sink with New when it wires its components.
var Default = New(os.Stderr, logrus.InfoLevel, 500)

// Component returns a logrus.FieldLogger tagged with component=name.
func (s *Sink) Component(name string) *logrus.Entry {
	return s.WithField("component", name)
}
