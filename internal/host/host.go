// Package host provides the collaborators the gateway consumes from its
// environment: a scheduler that defers closures and a notification sink for
// user-visible messages.
//
// FILES:
//   - host.go:   Interfaces and production implementations
//   - manual.go: Deterministic scheduler for callers that drive time themselves
package host

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler runs fn after ms milliseconds.
type Scheduler interface {
	DeferMs(ms int, fn func())
}

// TimerScheduler defers closures with time.AfterFunc.
type TimerScheduler struct{}

// DeferMs runs fn on its own goroutine after ms milliseconds.
func (TimerScheduler) DeferMs(ms int, fn func()) {
	if ms < 0 {
		ms = 0
	}
	time.AfterFunc(time.Duration(ms)*time.Millisecond, fn)
}

// =============================================================================
// Notifier
// =============================================================================

// Level is the severity of a user-visible notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Notify(message string, level Level)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, level Level)

// Notify calls f.
func (f NotifierFunc) Notify(message string, level Level) { f(message, level) }

// LogNotifier writes notifications to the global zerolog logger.
type LogNotifier struct{}

// Notify logs message at the matching zerolog level.
func (LogNotifier) Notify(message string, level Level) {
	var ev *zerolog.Event
	switch level {
	case LevelError:
		ev = log.Error()
	case LevelWarn:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	ev.Str("source", "notify").Msg(message)
}

// Notification is a recorded Notify call.
type Notification struct {
	Message string
	Level   Level
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records the notification.
func (r *RecordingNotifier) Notify(message string, level Level) {
	r.mu.Lock()
	r.items = append(r.items, Notification{Message: message, Level: level})
	r.mu.Unlock()
}

// Notifications returns a copy of the recorded notifications.
func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
