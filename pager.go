package main

import (
	"context"
	"sync"
)

// SwipeThreshold is the horizontal drag distance, in pixels, that counts as
// a swipe in the enlargement view.
const SwipeThreshold = 50

// FeedPager walks the public feed page by page. At most one page request is
// outstanding at a time; once the store returns a short page the pager
// latches done and never queries again. A failed page leaves the cursor and
// the loaded photos untouched.
type FeedPager struct {
	db       Database
	pageSize int

	mu       sync.Mutex
	inFlight bool
	done     bool
	closed   bool
	cursor   *Cursor
	photos   []Photo
}

func NewFeedPager(db Database, pageSize int) *FeedPager {
	if pageSize <= 0 {
		pageSize = FeedPageSize
	}

	return &FeedPager{db: db, pageSize: pageSize}
}

// LoadMore fetches the next page and appends it to the loaded photos. When a
// request is already in flight, or the feed is exhausted, it is a no-op and
// returns (nil, nil).
func (p *FeedPager) LoadMore(ctx context.Context) ([]Photo, error) {
	p.mu.Lock()
	if p.inFlight || p.done || p.closed {
		p.mu.Unlock()
		return nil, nil
	}
	p.inFlight = true
	cursor := p.cursor
	p.mu.Unlock()

	page, err := p.db.ListPublicPhotos(ctx, cursor, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	// The view was torn down while the request was out; drop the result.
	if p.closed {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if len(page) > 0 {
		last := page[len(page)-1]
		p.cursor = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		p.photos = append(p.photos, page...)
	}
	if len(page) < p.pageSize {
		p.done = true
	}

	return page, nil
}

// Close marks the pager's view as torn down. Results of a page request that
// is still in flight are discarded instead of merged.
func (p *FeedPager) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *FeedPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.done
}

func (p *FeedPager) Photos() []Photo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Photo, len(p.photos))
	copy(out, p.photos)

	return out
}

// nextIndex and prevIndex step through the enlargement view, wrapping around
// the loaded photo count.
func nextIndex(i, n int) int {
	if n <= 0 {
		return 0
	}

	return (i + 1) % n
}

func prevIndex(i, n int) int {
	if n <= 0 {
		return 0
	}

	return (i - 1 + n) % n
}

// swipeStep maps a horizontal drag to a navigation step: a drag past the
// threshold advances (+1) or retreats (-1), anything shorter is a no-op.
func swipeStep(dx, threshold int) int {
	switch {
	case dx <= -threshold:
		return 1
	case dx >= threshold:
		return -1
	default:
		return 0
	}
}
