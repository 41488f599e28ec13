// Package outline owns the hierarchical chapter outline of a book.
package outline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/pkg/types"
)

var (
	ErrChapterNotFound = errors.New("chapter not found")
	ErrDuplicateID     = errors.New("chapter id already in use")
	ErrInvalidTitle    = errors.New("chapter title must not be empty")
)

// Tree holds the ordered, hierarchical outline of a book's chapters.
// Chapter ids are unique across the whole tree, not just among siblings;
// the index enforces this at insertion time. All mutation goes through
// Tree methods so word counts never lag behind content.
type Tree struct {
	chapters []*types.Chapter
	index    map[string]*types.Chapter
	activeID string
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		index: make(map[string]*types.Chapter),
	}
}

// FromChapters builds a tree from an existing chapter hierarchy, for
// example one loaded from storage. Word counts are recomputed so loaded
// metrics can never disagree with loaded content. Returns ErrDuplicateID
// if two nodes anywhere in the hierarchy share an id.
func FromChapters(chapters []*types.Chapter) (*Tree, error) {
	t := New()
	t.chapters = chapters

	var register func(chs []*types.Chapter) error
	register = func(chs []*types.Chapter) error {
		for _, ch := range chs {
			if _, exists := t.index[ch.ID]; exists {
				return fmt.Errorf("%w: %q", ErrDuplicateID, ch.ID)
			}
			t.index[ch.ID] = ch
			metrics.Recompute(ch)
			if err := register(ch.Children); err != nil {
				return err
			}
		}
		return nil
	}

	if err := register(chapters); err != nil {
		return nil, err
	}
	return t, nil
}

// Add inserts a new chapter with the given id and title. If parentID is
// empty the chapter is appended at the top level, otherwise as the last
// child of the parent. The new chapter starts as an empty draft.
func (t *Tree) Add(parentID, id, title string) (*types.Chapter, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrInvalidTitle
	}
	if _, exists := t.index[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}

	now := time.Now()
	ch := &types.Chapter{
		ID:        id,
		Title:     title,
		Status:    types.StatusDraft,
		Expanded:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if parentID == "" {
		t.chapters = append(t.chapters, ch)
	} else {
		parent, ok := t.index[parentID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrChapterNotFound, parentID)
		}
		parent.Children = append(parent.Children, ch)
	}

	t.index[id] = ch
	return ch, nil
}

// Remove deletes the chapter with the given id and all of its
// descendants. If the active chapter is among the removed nodes the
// active selection is cleared.
func (t *Tree) Remove(id string) error {
	if _, ok := t.index[id]; !ok {
		return fmt.Errorf("%w: %q", ErrChapterNotFound, id)
	}

	var prune func(chs []*types.Chapter) []*types.Chapter
	prune = func(chs []*types.Chapter) []*types.Chapter {
		for i, ch := range chs {
			if ch.ID == id {
				return append(chs[:i:i], chs[i+1:]...)
			}
			ch.Children = prune(ch.Children)
		}
		return chs
	}
	t.chapters = prune(t.chapters)

	removed := make(map[string]bool)
	var unregister func(ch *types.Chapter)
	unregister = func(ch *types.Chapter) {
		removed[ch.ID] = true
		delete(t.index, ch.ID)
		for _, child := range ch.Children {
			unregister(child)
		}
	}
	// The node was detached above but is still reachable through the map.
	if ch, ok := t.index[id]; ok {
		unregister(ch)
	}

	if removed[t.activeID] {
		t.activeID = ""
	}
	return nil
}

// Find returns the chapter with the given id, searching all nesting levels.
func (t *Tree) Find(id string) (*types.Chapter, bool) {
	ch, ok := t.index[id]
	return ch, ok
}

// SelectActive sets the active chapter. On an unknown id the previous
// selection is left unchanged and ErrChapterNotFound is returned.
func (t *Tree) SelectActive(id string) error {
	if _, ok := t.index[id]; !ok {
		return fmt.Errorf("%w: %q", ErrChapterNotFound, id)
	}
	t.activeID = id
	return nil
}

// Active returns the currently active chapter, or nil if none is selected.
func (t *Tree) Active() *types.Chapter {
	if t.activeID == "" {
		return nil
	}
	return t.index[t.activeID]
}

// ActiveID returns the id of the active chapter, or "" if none.
func (t *Tree) ActiveID() string {
	return t.activeID
}

// ToggleExpand flips the expanded flag of the chapter with the given id.
// The flag is stored for leaf chapters too, where it has no effect on
// navigation.
func (t *Tree) ToggleExpand(id string) error {
	ch, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrChapterNotFound, id)
	}
	ch.Expanded = !ch.Expanded
	return nil
}

// UpdateContent replaces a chapter's content and synchronously recomputes
// its word count, so observers never see content and metrics disagree.
func (t *Tree) UpdateContent(id, content string) error {
	ch, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrChapterNotFound, id)
	}
	ch.Content = content
	metrics.Recompute(ch)
	ch.UpdatedAt = time.Now()
	return nil
}

// Chapters returns the top-level chapters in order.
func (t *Tree) Chapters() []*types.Chapter {
	return t.chapters
}

// Len returns the total number of chapters at all nesting levels.
func (t *Tree) Len() int {
	return len(t.index)
}

// Walk visits every chapter depth-first in outline order, with the
// nesting depth starting at zero. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(ch *types.Chapter, depth int) bool) {
	var visit func(chs []*types.Chapter, depth int) bool
	visit = func(chs []*types.Chapter, depth int) bool {
		for _, ch := range chs {
			if !fn(ch, depth) {
				return false
			}
			if !visit(ch.Children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(t.chapters, 0)
}
