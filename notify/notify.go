// Package notify is the toast surface: components report user-facing outcomes here and
// the presentation layer decides how to show them.
package notify

import (
	"sync"

	"github.com/rs/zerolog"
)

// Level of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notifier receives user-facing success and failure signals.
type Notifier interface {
	Notify(level Level, message string)
}

func Success(n Notifier, message string) { n.Notify(LevelSuccess, message) }
func Error(n Notifier, message string)   { n.Notify(LevelError, message) }
func Info(n Notifier, message string)    { n.Notify(LevelInfo, message) }

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(Level, string) {}

// LogNotifier writes notifications to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(level Level, message string) {
	ev := l.Logger.Info()
	if level == LevelError {
		ev = l.Logger.Warn()
	}
	ev.Str("toast", string(level)).Msg(message)
}

// Message is a recorded notification.
type Message struct {
	Level Level
	Text  string
}

// Recorder keeps notifications in memory until drained.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: message})
}

// Drain returns and forgets every recorded message.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}

// Tee fans a notification out to several notifiers.
type Tee []Notifier

func (t Tee) Notify(level Level, message string) {
	for _, n := range t {
		n.Notify(level, message)
	}
}
