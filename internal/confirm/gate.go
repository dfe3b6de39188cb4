// ABOUTME: Single-slot confirmation gate for destructive actions.
// ABOUTME: Holds one pending request and fires exactly one of its callbacks exactly once.
package confirm

import (
	"errors"
	"sync"
)

// ErrNothingPending is returned by Confirm and Cancel when no request is open.
var ErrNothingPending = errors.New("no confirmation pending")

// Prompt is the user-facing part of a pending request.
type Prompt struct {
	Title   string
	Message string
}

type request struct {
	prompt    Prompt
	onConfirm func() error
	onCancel  func()
}

// Gate holds at most one pending confirmation request.
type Gate struct {
	mu      sync.Mutex
	pending *request
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{}
}

// Open installs a new pending request. An already open request is replaced
// without firing any of its callbacks. onCancel may be nil.
func (g *Gate) Open(title, message string, onConfirm func() error, onCancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = &request{
		prompt:    Prompt{Title: title, Message: message},
		onConfirm: onConfirm,
		onCancel:  onCancel,
	}
}

// take removes and returns the pending request.
func (g *Gate) take() *request {
	g.mu.Lock()
	defer g.mu.Unlock()
	req := g.pending
	g.pending = nil
	return req
}

// Confirm closes the gate and runs the confirm callback, returning its error.
func (g *Gate) Confirm() error {
	req := g.take()
	if req == nil {
		return ErrNothingPending
	}
	if req.onConfirm == nil {
		return nil
	}
	return req.onConfirm()
}

// Cancel closes the gate and runs the cancel callback.
func (g *Gate) Cancel() error {
	req := g.take()
	if req == nil {
		return ErrNothingPending
	}
	if req.onCancel != nil {
		req.onCancel()
	}
	return nil
}

// Pending returns the open prompt, if any.
func (g *Gate) Pending() (Prompt, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Prompt{}, false
	}
	return g.pending.prompt, true
}
