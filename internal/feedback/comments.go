package feedback

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/feedbackhq/pulse/internal/api"
)

// CommentService is the slice of the api client the thread cache uses.
type CommentService interface {
	ListComments(ctx context.Context, feedbackID int) ([]api.Comment, error)
	AddComment(ctx context.Context, feedbackID int, text string) (api.Comment, error)
}

// ThreadState is the per-feedback-id lifecycle of a comment thread.
type ThreadState int

const (
	ThreadUnloaded ThreadState = iota
	ThreadLoading
	ThreadLoaded
)

// ThreadMsg carries one thread fetch result.
type ThreadMsg struct {
	FeedbackID int
	Comments   []api.Comment
	Err        error
}

// CommentAddedMsg reports a posted comment. On success the thread is
// invalidated and reloaded; the new comment appears with its server-assigned
// id and timestamp rather than a speculative local insert.
type CommentAddedMsg struct {
	FeedbackID int
	Err        error
}

type thread struct {
	state    ThreadState
	prev     ThreadState
	comments []api.Comment
	posting  bool
}

// ThreadCache lazily loads per-feedback-item comment threads. A thread is
// fetched on first access and reused until a new comment invalidates it.
// There is no persistent error state: a failed load or post restores the
// thread to whatever it was, and the error travels only in the message.
type ThreadCache struct {
	svc     CommentService
	log     *zap.Logger
	threads map[int]*thread
}

// NewThreadCache builds an empty cache.
func NewThreadCache(svc CommentService, log *zap.Logger) *ThreadCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ThreadCache{svc: svc, log: log, threads: map[int]*thread{}}
}

// EnsureLoaded fetches the thread on first access, e.g. when the UI expands
// an item. Returns nil when the thread is already loading or loaded.
func (tc *ThreadCache) EnsureLoaded(feedbackID int) tea.Cmd {
	th := tc.thread(feedbackID)
	if th.state != ThreadUnloaded {
		return nil
	}
	return tc.fetch(feedbackID)
}

// AddComment posts to the thread. Works from any state; the follow-up reload
// issued by Apply performs the first fetch for threads never loaded before.
func (tc *ThreadCache) AddComment(feedbackID int, text string) tea.Cmd {
	th := tc.thread(feedbackID)
	th.posting = true
	return func() tea.Msg {
		_, err := tc.svc.AddComment(context.Background(), feedbackID, text)
		return CommentAddedMsg{FeedbackID: feedbackID, Err: err}
	}
}

// Apply folds thread messages into the cache and returns the reload command
// a successful post demands.
func (tc *ThreadCache) Apply(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case ThreadMsg:
		th := tc.thread(m.FeedbackID)
		if m.Err != nil {
			// Restore whatever the thread was before the fetch started.
			th.state = th.prev
			tc.log.Warn("comment thread fetch failed", zap.Int("feedback_id", m.FeedbackID), zap.Error(m.Err))
			return nil
		}
		th.state = ThreadLoaded
		th.comments = m.Comments
		return nil

	case CommentAddedMsg:
		th := tc.thread(m.FeedbackID)
		th.posting = false
		if m.Err != nil {
			tc.log.Warn("add comment failed", zap.Int("feedback_id", m.FeedbackID), zap.Error(m.Err))
			return nil
		}
		return tc.fetch(m.FeedbackID)
	}
	return nil
}

// Comments returns the cached thread and its state.
func (tc *ThreadCache) Comments(feedbackID int) ([]api.Comment, ThreadState) {
	th, ok := tc.threads[feedbackID]
	if !ok {
		return nil, ThreadUnloaded
	}
	return th.comments, th.state
}

// Posting reports whether a comment post is in flight for the thread.
func (tc *ThreadCache) Posting(feedbackID int) bool {
	th, ok := tc.threads[feedbackID]
	return ok && th.posting
}

func (tc *ThreadCache) fetch(feedbackID int) tea.Cmd {
	th := tc.thread(feedbackID)
	th.prev = th.state
	th.state = ThreadLoading
	return func() tea.Msg {
		comments, err := tc.svc.ListComments(context.Background(), feedbackID)
		return ThreadMsg{FeedbackID: feedbackID, Comments: comments, Err: err}
	}
}

func (tc *ThreadCache) thread(feedbackID int) *thread {
	th, ok := tc.threads[feedbackID]
	if !ok {
		th = &thread{}
		tc.threads[feedbackID] = th
	}
	return th
}
