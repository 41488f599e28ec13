// Package conversation owns the AI-assistant message log for an editing
// session and the single-outstanding-request discipline around it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/draftsmith/draftsmith/pkg/types"
)

var (
	ErrBusy          = errors.New("a generation request is already in progress")
	ErrEmptyPrompt   = errors.New("prompt must not be empty")
	ErrUnknownAction = errors.New("unknown quick action")

	// ErrGenerationFailed wraps provider failures surfaced through Result.
	ErrGenerationFailed = errors.New("generation failed")
)

// Fixed notices appended to the log when a request settles without a
// response. Raw provider errors never reach the visible log.
const (
	FailureNotice   = "Sorry, I couldn't generate a response. Please check your connection and try again."
	CancelledNotice = "The request was cancelled before a response arrived."
)

// ActionKind identifies a canned prompt shortcut.
type ActionKind string

const (
	ActionOutline ActionKind = "outline"
	ActionExpand  ActionKind = "expand"
	ActionPolish  ActionKind = "polish"
)

// quickPrompts maps action kinds to their canned prompt text.
var quickPrompts = map[ActionKind]string{
	ActionOutline: "Draft a detailed outline for this chapter as a Markdown list of sections, each with a one-line summary.",
	ActionExpand:  "Expand the current chapter content into complete prose, keeping the existing structure and adding concrete examples where helpful.",
	ActionPolish:  "Polish the current chapter content for clarity, grammar, and consistent terminology, without changing its meaning.",
}

// Generator is the external generation capability the conversation calls.
// Implementations receive the prompt and the originating chapter's content
// and return the generated text.
type Generator interface {
	Generate(ctx context.Context, prompt, contextContent string) (string, error)
}

// StreamingGenerator is an optional extension for backends that deliver
// text incrementally. When the generator implements it, partial text is
// published through Progress while the request is outstanding.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, prompt, contextContent string, onDelta func(delta string)) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt, contextContent string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt, contextContent string) (string, error) {
	return f(ctx, prompt, contextContent)
}

// Result reports the settlement of one submitted prompt. Err is nil on
// success and wraps ErrGenerationFailed otherwise; in both cases the
// assistant message has already been appended to the log.
type Result struct {
	ChapterID string
	Message   types.AIMessage
	Err       error
}

// Progress is a snapshot of the text generated so far for the in-flight
// request.
type Progress struct {
	ChapterID string
	Text      string
}

// request tracks the single in-flight generation call.
type request struct {
	chapterID string
	cancel    context.CancelFunc
}

// outcome is the terminal state of one generation call.
type outcome struct {
	text string
	err  error
}

// DefaultTimeout bounds how long a generation call may stay outstanding
// before it is treated as failed and the busy flag released.
const DefaultTimeout = 120 * time.Second

// Conversation holds the append-only message log and the busy state for
// one editing session. Methods are safe for concurrent use; the log is
// only ever appended to, never mutated or reordered.
type Conversation struct {
	mu       sync.Mutex
	gen      Generator
	timeout  time.Duration
	messages []types.AIMessage
	pending  *request
	results  chan Result
	progress chan Progress
	now      func() time.Time
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithTimeout overrides the generation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Conversation) {
		c.timeout = d
	}
}

// New creates a conversation backed by the given generator.
func New(gen Generator, opts ...Option) *Conversation {
	c := &Conversation{
		gen:     gen,
		timeout: DefaultTimeout,
		// One outstanding request at a time means one pending result.
		results:  make(chan Result, 1),
		progress: make(chan Progress, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Results delivers one Result per accepted submission, in settlement
// order. The TUI blocks on this channel from a command goroutine. When a
// result is still undelivered as the next one settles, the older result
// is dropped; the log itself always carries every message.
func (c *Conversation) Results() <-chan Result {
	return c.results
}

// Progress delivers partial-text snapshots for the in-flight request.
// Only the latest snapshot is retained, so a slow reader never stalls
// generation.
func (c *Conversation) Progress() <-chan Progress {
	return c.progress
}

// Submit appends a user message and issues one asynchronous generation
// call scoped to the given chapter. The chapter id and content are
// captured now, so a response is never attributed to a chapter the user
// navigated to later. Returns ErrEmptyPrompt for blank prompts and
// ErrBusy while a request is outstanding; in both cases the log is left
// untouched.
func (c *Conversation) Submit(chapterID, chapterContent, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return ErrBusy
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.pending = &request{chapterID: chapterID, cancel: cancel}
	c.messages = append(c.messages, types.AIMessage{
		Role:      types.RoleUser,
		Content:   prompt,
		ChapterID: chapterID,
		Timestamp: c.now(),
	})
	c.mu.Unlock()

	go func() {
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			done <- c.generate(ctx, chapterID, chapterContent, prompt)
		}()

		// A generator that ignores its context must not hold the session
		// busy past the deadline; a late result is dropped.
		select {
		case out := <-done:
			c.settle(chapterID, out.text, out.err)
		case <-ctx.Done():
			c.settle(chapterID, "", ctx.Err())
		}
	}()

	return nil
}

// generate runs the blocking generation call, publishing partial text
// when the generator supports streaming.
func (c *Conversation) generate(ctx context.Context, chapterID, chapterContent, prompt string) outcome {
	sg, ok := c.gen.(StreamingGenerator)
	if !ok {
		text, err := c.gen.Generate(ctx, prompt, chapterContent)
		return outcome{text: text, err: err}
	}

	var partial strings.Builder
	text, err := sg.GenerateStream(ctx, prompt, chapterContent, func(delta string) {
		partial.WriteString(delta)
		c.publish(Progress{ChapterID: chapterID, Text: partial.String()})
	})
	return outcome{text: text, err: err}
}

// publish replaces any undelivered snapshot with the newest one.
func (c *Conversation) publish(p Progress) {
	for {
		select {
		case c.progress <- p:
			return
		default:
		}
		select {
		case <-c.progress:
		default:
		}
	}
}

// QuickAction submits the canned prompt for a known kind. Unknown kinds
// return ErrUnknownAction; otherwise it behaves exactly like Submit.
func (c *Conversation) QuickAction(kind ActionKind, chapterID, chapterContent string) error {
	prompt, ok := quickPrompts[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	return c.Submit(chapterID, chapterContent, prompt)
}

// Cancel aborts the in-flight request, if any. The request settles
// through the normal failure path with a cancellation notice.
func (c *Conversation) Cancel() {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()

	if pending != nil {
		pending.cancel()
	}
}

// settle records the outcome of the in-flight request: on success the
// generated text, otherwise a fixed notice. The busy flag is always
// released, so a timed-out request can never leave the session stuck.
func (c *Conversation) settle(chapterID, text string, genErr error) {
	content := text
	var resultErr error

	if genErr != nil {
		switch {
		case errors.Is(genErr, context.Canceled):
			content = CancelledNotice
		default:
			content = FailureNotice
		}
		resultErr = fmt.Errorf("%w: %v", ErrGenerationFailed, genErr)
	}

	c.mu.Lock()
	msg := types.AIMessage{
		Role:      types.RoleAssistant,
		Content:   content,
		ChapterID: chapterID,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, msg)
	c.pending = nil
	c.mu.Unlock()

	// Settlement must never block on an undrained channel; the oldest
	// undelivered result gives way to the newest.
	res := Result{ChapterID: chapterID, Message: msg, Err: resultErr}
	for {
		select {
		case c.results <- res:
			return
		default:
		}
		select {
		case <-c.results:
		default:
		}
	}
}

// Awaiting reports whether a generation request is outstanding.
func (c *Conversation) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Messages returns a snapshot of the log in chronological order.
func (c *Conversation) Messages() []types.AIMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.AIMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the log.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Restore seeds the log with previously persisted messages. It is only
// valid before the first submission.
func (c *Conversation) Restore(messages []types.AIMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]types.AIMessage(nil), messages...)
}
