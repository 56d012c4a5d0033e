// Package notify delivers fire-and-forget messages to whoever is watching
// the catalog: the log, connected stream clients, or both.
package notify

import (
	"github.com/rs/zerolog"
)

// Notifier reports outcomes to the user. Calls never block on delivery and
// nothing is returned to the caller.
type Notifier interface {
	NotifyError(message string)
	NotifySuccess(message string)
}

// Log writes notifications to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a Notifier that logs every message.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

func (l *Log) NotifyError(message string) {
	l.logger.Error().Msg(message)
}

func (l *Log) NotifySuccess(message string) {
	l.logger.Info().Msg(message)
}

type multi []Notifier

// Multi fans each notification out to every non-nil notifier.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) NotifyError(message string) {
	for _, n := range m {
		n.NotifyError(message)
	}
}

func (m multi) NotifySuccess(message string) {
	for _, n := range m {
		n.NotifySuccess(message)
	}
}
