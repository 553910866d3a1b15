// Package command implements the chat commands players send as command
// frames.
package command

import (
	"context"
	"strings"

	"github.com/chatty/chat-relay/internal/compose"
	"github.com/chatty/chat-relay/internal/roster"
)

// Handler runs one command and returns the reply shown to the caller. An
// empty reply sends nothing.
type Handler interface {
	Execute(ctx context.Context, caller roster.Player, label string, args []string) string
}

// Catalog supplies the current message templates. It is read on every
// call so reloads apply immediately.
type Catalog func() compose.Messages

// Dispatcher routes command labels to handlers.
type Dispatcher struct {
	handlers map[string]Handler
	messages Catalog
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(messages Catalog) *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), messages: messages}
}

// Register binds handler to every label. Labels are case-insensitive.
func (d *Dispatcher) Register(h Handler, labels ...string) {
	for _, l := range labels {
		d.handlers[strings.ToLower(l)] = h
	}
}

// Dispatch runs the handler registered for label.
func (d *Dispatcher) Dispatch(ctx context.Context, caller roster.Player, label string, args []string) string {
	label = strings.ToLower(strings.TrimPrefix(label, "/"))
	h, ok := d.handlers[label]
	if !ok {
		return d.messages().Render("unknown-command")
	}
	return h.Execute(ctx, caller, label, args)
}
