package crawl

import (
	"sync"

	"github.com/gobwas/glob"

	"github.com/use-agent/pagepocket/urlutil"
)

type queueItem struct {
	url  string
	kind urlutil.ResourceKind
}

// CrawlQueue is a FIFO of (url, kind) work items with a dedup set keyed by
// URL alone (first kind wins, per §3) and an optional exclusion glob. It
// also tracks in-flight work so Next can tell callers "drained" apart from
// "temporarily empty, more may still arrive" (invariant 5).
type CrawlQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []queueItem
	seen     map[string]bool
	exclude  glob.Glob
	inFlight int
}

// NewCrawlQueue builds an empty queue. exclude may be nil to disable
// pattern-based skipping.
func NewCrawlQueue(exclude glob.Glob) *CrawlQueue {
	q := &CrawlQueue{
		seen:    make(map[string]bool),
		exclude: exclude,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends (url, kind) unless url is excluded or already enqueued.
// Reports whether the item was newly added.
func (q *CrawlQueue) Enqueue(url string, kind urlutil.ResourceKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.exclude != nil && q.exclude.Match(url) {
		return false
	}
	if q.seen[url] {
		return false
	}
	q.seen[url] = true
	q.items = append(q.items, queueItem{url: url, kind: kind})
	q.cond.Signal()
	return true
}

// Next blocks until an item is available, returning ok=false once the queue
// is empty and no worker is currently processing an item (i.e. the Run is
// genuinely done, not just momentarily starved).
func (q *CrawlQueue) Next() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.inFlight == 0 {
			return queueItem{}, false
		}
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.inFlight++
	return item, true
}

// Done marks one previously-dequeued item as finished and wakes any worker
// that might have been waiting to observe a "truly drained" state or newly
// enqueued work.
func (q *CrawlQueue) Done() {
	q.mu.Lock()
	q.inFlight--
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len reports the number of items currently queued (not counting in-flight).
func (q *CrawlQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
