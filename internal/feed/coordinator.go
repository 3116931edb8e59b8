// Package feed keeps the per-viewer browsing state of the social feed: which
// page of submissions is loaded, which post is on screen, and whether the
// viewer is looking at everyone's posts or only their own.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/sakif/climate-crew/internal/model"
)

// PageSize is how many submissions one Load fetches.
const PageSize = 20

// Source is the part of service.SubmissionService the feed needs.
type Source interface {
	ListSubmissions(ctx context.Context, userID string, limit int) ([]model.Submission, error)
	Upvote(ctx context.Context, id int64) (int, error)
}

// Coordinator is one viewer's feed. It is safe for concurrent use.
//
// The cursor never wraps: Next on the last post and Prev on the first are
// no-ops that report false.
type Coordinator struct {
	src      Source
	viewerID string
	pageSize int

	mu     sync.Mutex
	mine   bool
	posts  []model.Submission
	cursor int
}

func NewCoordinator(src Source, viewerID string) *Coordinator {
	return &Coordinator{src: src, viewerID: viewerID, pageSize: PageSize}
}

// State is a snapshot for rendering: the post on screen (nil on an empty
// page) plus everything the UI needs for its buttons.
type State struct {
	Post    *model.Submission `json:"post"`
	Index   int               `json:"index"`
	Total   int               `json:"total"`
	Mine    bool              `json:"mine"`
	HasNext bool              `json:"hasNext"`
	HasPrev bool              `json:"hasPrev"`
}

// Load fetches the page for the current filter and resets the cursor.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx)
}

func (c *Coordinator) loadLocked(ctx context.Context) error {
	filter := ""
	if c.mine {
		filter = c.viewerID
	}

	posts, err := c.src.ListSubmissions(ctx, filter, c.pageSize)
	if err != nil {
		return fmt.Errorf("feed: loading page: %w", err)
	}

	c.posts = posts
	c.cursor = 0
	return nil
}

// ToggleMine switches between all posts and the viewer's own, then reloads.
// On a failed reload the filter is switched back so state stays consistent.
func (c *Coordinator) ToggleMine(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mine = !c.mine
	if err := c.loadLocked(ctx); err != nil {
		c.mine = !c.mine
		return err
	}
	return nil
}

// Current returns the post under the cursor.
func (c *Coordinator) Current() (model.Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts) == 0 {
		return model.Submission{}, false
	}
	return c.posts[c.cursor], true
}

func (c *Coordinator) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor+1 >= len(c.posts) {
		return false
	}
	c.cursor++
	return true
}

func (c *Coordinator) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor == 0 {
		return false
	}
	c.cursor--
	return true
}

func (c *Coordinator) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor+1 < len(c.posts)
}

func (c *Coordinator) HasPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor > 0
}

// Upvote increments the post in the store and then patches the loaded copy
// with the returned count, so the page does not need a reload. The post does
// not have to be on the loaded page.
func (c *Coordinator) Upvote(ctx context.Context, id int64) (int, error) {
	n, err := c.src.Upvote(ctx, id)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.posts {
		if c.posts[i].ID == id {
			c.posts[i].Upvotes = n
			break
		}
	}
	return n, nil
}

// Snapshot returns the current State.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Index:   c.cursor,
		Total:   len(c.posts),
		Mine:    c.mine,
		HasNext: c.cursor+1 < len(c.posts),
		HasPrev: c.cursor > 0,
	}
	if len(c.posts) > 0 {
		post := c.posts[c.cursor]
		st.Post = &post
	}
	return st
}
