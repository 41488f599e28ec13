// Package session coordinates the editing workflow of a single open
// book: the chapter outline, the write/preview mode, and the assistant
// conversation. It is the surface the terminal UI drives.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/draftsmith/draftsmith/internal/conversation"
	"github.com/draftsmith/draftsmith/internal/outline"
	"github.com/draftsmith/draftsmith/internal/render"
	"github.com/draftsmith/draftsmith/pkg/types"
)

// ErrNoActiveChapter is returned when an operation requires an active
// chapter but the outline has none selected.
var ErrNoActiveChapter = errors.New("no chapter is active")

// Mode is the editing surface currently shown for the active chapter.
type Mode string

const (
	ModeWrite   Mode = "write"
	ModePreview Mode = "preview"
)

// EventKind identifies what changed in the session.
type EventKind string

const (
	EventModeChanged    EventKind = "mode_changed"
	EventChapterChanged EventKind = "chapter_changed"
	EventContentChanged EventKind = "content_changed"
	EventOutlineChanged EventKind = "outline_changed"
	EventPromptSent     EventKind = "prompt_sent"
)

// Event is delivered to observers after a session mutation.
type Event struct {
	Kind      EventKind
	ChapterID string
}

// Observer receives session events. Observers are invoked synchronously
// on the mutating goroutine and must not call back into the session.
type Observer func(Event)

// Session ties an outline, a conversation, and a preview renderer
// together for one open book.
type Session struct {
	mu        sync.Mutex
	book      *types.Book
	tree      *outline.Tree
	conv      *conversation.Conversation
	renderer  *render.Renderer
	mode      Mode
	observers []Observer
	nextID    int
}

// New creates a session in write mode. When the outline already has
// chapters, the first top-level chapter becomes active.
func New(book *types.Book, tree *outline.Tree, conv *conversation.Conversation) *Session {
	s := &Session{
		book:     book,
		tree:     tree,
		conv:     conv,
		renderer: render.New(),
		mode:     ModeWrite,
		nextID:   tree.Len() + 1,
	}
	if chapters := tree.Chapters(); len(chapters) > 0 {
		_ = tree.SelectActive(chapters[0].ID)
	}
	return s
}

// Subscribe registers an observer for session events.
func (s *Session) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

func (s *Session) notify(ev Event) {
	s.mu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}

// Book returns the open book.
func (s *Session) Book() *types.Book {
	return s.book
}

// Mode returns the current editing mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches between write and preview. Setting the current mode
// again is a no-op and emits no event.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode
	s.mu.Unlock()

	s.notify(Event{Kind: EventModeChanged})
}

// ToggleMode flips write to preview and back.
func (s *Session) ToggleMode() {
	if s.Mode() == ModeWrite {
		s.SetMode(ModePreview)
	} else {
		s.SetMode(ModeWrite)
	}
}

// SwitchChapter makes the chapter with the given id active. The
// previous selection is kept when the id does not exist.
func (s *Session) SwitchChapter(id string) error {
	if err := s.tree.SelectActive(id); err != nil {
		return err
	}
	s.notify(Event{Kind: EventChapterChanged, ChapterID: id})
	return nil
}

// ActiveChapter returns the active chapter, or nil when the outline is
// empty or nothing is selected.
func (s *Session) ActiveChapter() *types.Chapter {
	return s.tree.Active()
}

// Outline returns the top-level chapters of the open book.
func (s *Session) Outline() []*types.Chapter {
	return s.tree.Chapters()
}

// Tree exposes the underlying outline for traversal.
func (s *Session) Tree() *outline.Tree {
	return s.tree
}

// ToggleExpand flips the expansion state of a chapter in the outline.
func (s *Session) ToggleExpand(id string) error {
	if err := s.tree.ToggleExpand(id); err != nil {
		return err
	}
	s.notify(Event{Kind: EventOutlineChanged, ChapterID: id})
	return nil
}

// EditActiveChapter replaces the active chapter's content and refreshes
// its word count.
func (s *Session) EditActiveChapter(content string) error {
	active := s.tree.Active()
	if active == nil {
		return ErrNoActiveChapter
	}
	if err := s.tree.UpdateContent(active.ID, content); err != nil {
		return err
	}
	s.notify(Event{Kind: EventContentChanged, ChapterID: active.ID})
	return nil
}

// AddChapter creates a chapter under parentID (or at the top level when
// parentID is empty) and returns it. The new chapter becomes active.
func (s *Session) AddChapter(parentID, title string) (*types.Chapter, error) {
	id := s.allocateID()
	ch, err := s.tree.Add(parentID, id, title)
	if err != nil {
		return nil, err
	}
	_ = s.tree.SelectActive(ch.ID)
	s.notify(Event{Kind: EventOutlineChanged, ChapterID: ch.ID})
	return ch, nil
}

// RemoveChapter deletes a chapter and its descendants from the outline.
func (s *Session) RemoveChapter(id string) error {
	if err := s.tree.Remove(id); err != nil {
		return err
	}
	s.notify(Event{Kind: EventOutlineChanged, ChapterID: id})
	return nil
}

func (s *Session) allocateID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := fmt.Sprintf("ch-%d", s.nextID)
		s.nextID++
		if _, ok := s.tree.Find(id); !ok {
			return id
		}
	}
}

// Preview renders the active chapter's markdown to HTML.
func (s *Session) Preview() (string, error) {
	active := s.tree.Active()
	if active == nil {
		return "", ErrNoActiveChapter
	}
	return s.renderer.Render(active.Content)
}

// SubmitPrompt sends a free-form prompt to the assistant, scoped to the
// active chapter's current content.
func (s *Session) SubmitPrompt(prompt string) error {
	active := s.tree.Active()
	if active == nil {
		return ErrNoActiveChapter
	}
	if err := s.conv.Submit(active.ID, active.Content, prompt); err != nil {
		return err
	}
	s.notify(Event{Kind: EventPromptSent, ChapterID: active.ID})
	return nil
}

// QuickAction runs one of the canned assistant actions against the
// active chapter.
func (s *Session) QuickAction(kind conversation.ActionKind) error {
	active := s.tree.Active()
	if active == nil {
		return ErrNoActiveChapter
	}
	if err := s.conv.QuickAction(kind, active.ID, active.Content); err != nil {
		return err
	}
	s.notify(Event{Kind: EventPromptSent, ChapterID: active.ID})
	return nil
}

// CancelGeneration aborts the in-flight assistant request, if any.
func (s *Session) CancelGeneration() {
	s.conv.Cancel()
}

// Busy reports whether an assistant request is in flight.
func (s *Session) Busy() bool {
	return s.conv.Awaiting()
}

// Messages returns the conversation log.
func (s *Session) Messages() []types.AIMessage {
	return s.conv.Messages()
}

// Results exposes the conversation's completion channel for the UI loop.
func (s *Session) Results() <-chan conversation.Result {
	return s.conv.Results()
}

// Progress exposes the conversation's partial-text channel for the UI
// loop.
func (s *Session) Progress() <-chan conversation.Progress {
	return s.conv.Progress()
}
