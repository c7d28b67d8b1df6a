// Package flow runs multi-step conversations as explicit state machines.
//
// Each Flow names its states and binds exactly one Handler per state. The
// Engine feeds inbound events to the handler of the user's current state and
// applies the returned transition. Events of one user are processed one at a
// time and in arrival order; different users run in parallel.
package flow

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/m3rciful/pdfbot/internal/session"
)

// State names one step of a conversation.
type State string

// End is returned by a handler to finish the conversation. It can never be
// registered as a state.
const End State = "end"

// FileRef identifies a file sent by the user on the chat platform.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	MIME string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// IsPDF reports whether the file looks like a PDF document.
func (f *FileRef) IsPDF() bool {
	if f == nil {
		return false
	}
	if f.MIME == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(f.Name), ".pdf")
}

// IsImage reports whether the file is a photo or an image document.
func (f *FileRef) IsImage() bool {
	if f == nil {
		return false
	}
	if strings.HasPrefix(f.MIME, "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".tif", ".tiff":
		return true
	}
	return false
}

// Event is one inbound user interaction, already stripped of transport details.
type Event struct {
	UserID int64
	ChatID int64
	Text   string
	File   *FileRef
	// Lang is the resolved language code of the user.
	Lang string
	// MessageID is the bot message whose inline button was pressed, or 0.
	MessageID int
}

// Handler processes ev for the session's current state and returns the next
// state, the same state to stay, or End.
type Handler func(ctx context.Context, sess *session.Session, ev Event) (State, error)

// Flow is a named conversation graph.
type Flow struct {
	Name string
	// Trigger reports whether ev starts this flow for a user without an active
	// conversation. Nil means the flow is only started explicitly.
	Trigger func(ev Event) bool
	// Entry runs with a fresh session when the flow starts and returns the first state.
	Entry  Handler
	States map[State]Handler
}
