package client

import (
	"fmt"
	"io"
	"sync"

	"resumematch/internal/errors"
)

// Variant is the visual style of a notification
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a user-visible toast emitted by a Session
type Notification struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier receives session notifications
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications as structured log entries
type LogNotifier struct {
	Logger *errors.Logger
}

func (l LogNotifier) Notify(n Notification) {
	if n.Variant == VariantDestructive {
		l.Logger.Warn(n.Title, "description", n.Description, "variant", string(n.Variant))
		return
	}
	l.Logger.Info(n.Title, "description", n.Description, "variant", string(n.Variant))
}

// WriterNotifier prints notifications as plain lines
type WriterNotifier struct {
	W io.Writer
}

func (w WriterNotifier) Notify(n Notification) {
	prefix := "✓"
	if n.Variant == VariantDestructive {
		prefix = "✗"
	}
	_, _ = fmt.Fprintf(w.W, "%s %s: %s\n", prefix, n.Title, n.Description)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Notifications returns a copy of the recorded notifications
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}
