// Package feedback carries user-visible signals out of the client: toast
// style messages, sticky notifications, and the redirect to login.
package feedback

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind is the visual tone of a message.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Message is a short-lived toast.
type Message struct {
	Kind     Kind
	Text     string
	Duration time.Duration
}

// Notification is a titled alert. Zero Duration means it stays until dismissed.
type Notification struct {
	Kind     Kind
	Title    string
	Text     string
	Duration time.Duration
}

// Notifier displays messages and notifications.
type Notifier interface {
	Message(ctx context.Context, m Message)
	Notify(ctx context.Context, n Notification)
}

// Terminal prints feedback as prefixed lines, typically to stderr.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Message(_ context.Context, m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "[%s] %s\n", m.Kind, m.Text)
}

func (t *Terminal) Notify(_ context.Context, n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "[%s] %s: %s\n", n.Kind, n.Title, n.Text)
}

// Recorder keeps every signal in memory.
type Recorder struct {
	mu            sync.Mutex
	messages      []Message
	notifications []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Message(_ context.Context, m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Notifications returns a copy of the recorded notifications.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}
