// Package notify tells the user a run finished. Notification is best
// effort: callers log a NotificationError and carry on.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const (
	AppName = "Naukri Updater"
	Title   = "Naukri Profile Updater"
)

// Message is one notification. Icon is an optional image path.
type Message struct {
	Title string
	Body  string
	Icon  string
}

// Updated is the message sent after a successful headline save.
func Updated(newValue, icon string) Message {
	return Message{
		Title: Title,
		Body:  fmt.Sprintf("Headline updated successfully!\nNew: %s", newValue),
		Icon:  icon,
	}
}

// Notifier delivers messages.
type Notifier interface {
	Notify(m Message) error
}

// NotificationError wraps a delivery failure.
type NotificationError struct {
	Err error
}

func (e *NotificationError) Error() string { return "notify: " + e.Err.Error() }
func (e *NotificationError) Unwrap() error { return e.Err }

// Desktop sends native desktop notifications.
type Desktop struct {
	send func(title, message string, icon any) error
}

// NewDesktop returns a Notifier backed by the OS notification service.
func NewDesktop() *Desktop {
	beeep.AppName = AppName
	return &Desktop{send: beeep.Notify}
}

func (d *Desktop) Notify(m Message) error {
	if err := d.send(m.Title, m.Body, m.Icon); err != nil {
		return &NotificationError{Err: err}
	}
	return nil
}

// Log writes messages to a logger instead; it is used with --no-notify
// and on headless hosts.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

func (l *Log) Notify(m Message) error {
	l.log.Info(m.Title, zap.String("message", m.Body))
	return nil
}
