package customers

import (
	"context"
	"errors"
)

// ErrEditorClosed is returned when saving an editor that was already closed.
var ErrEditorClosed = errors.New("customers: note editor closed")

// NoteSaver persists a full note.
type NoteSaver interface {
	SaveNote(ctx context.Context, customerID, note string) error
}

// NoteEditor is the edit state of one customer note.
type NoteEditor struct {
	customerID string
	initial    string
	draft      string
	open       bool
	saving     bool
	onSaved    func(customerID, note string)
}

// NewNoteEditor opens an editor seeded with the current note.
func NewNoteEditor(customerID, initial string, onSaved func(customerID, note string)) *NoteEditor {
	return &NoteEditor{customerID: customerID, initial: initial, draft: initial, open: true, onSaved: onSaved}
}

// SetDraft replaces the draft text.
func (e *NoteEditor) SetDraft(text string) {
	if e.open {
		e.draft = text
	}
}

// Draft returns the current draft text.
func (e *NoteEditor) Draft() string { return e.draft }

// Open reports whether the editor is still open.
func (e *NoteEditor) Open() bool { return e.open }

// Saving reports whether a save is in flight.
func (e *NoteEditor) Saving() bool { return e.saving }

// Dirty reports whether the draft differs from the note it was opened with.
func (e *NoteEditor) Dirty() bool { return e.draft != e.initial }

// Save submits the whole draft. On success the editor closes and onSaved
// receives the text; on failure it stays open with the draft intact.
func (e *NoteEditor) Save(ctx context.Context, saver NoteSaver) error {
	if !e.open {
		return ErrEditorClosed
	}
	e.saving = true
	err := saver.SaveNote(ctx, e.customerID, e.draft)
	e.saving = false
	if err != nil {
		return err
	}
	e.open = false
	if e.onSaved != nil {
		e.onSaved(e.customerID, e.draft)
	}
	return nil
}

// Cancel closes the editor and discards the draft.
func (e *NoteEditor) Cancel() {
	e.open = false
	e.draft = e.initial
}
