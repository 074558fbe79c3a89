package crawl

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/pagepocket/httpcache"
	"github.com/use-agent/pagepocket/urlutil"
)

// RequestRecord is one logical HTTP request seen or synthesized during a Run.
// At most one of Response/Error is ever set (P2).
type RequestRecord struct {
	ID        string               `json:"id"` // stable identifier; lets a NetworkInterceptorAdapter correlate its own Events to this record
	URL       string               `json:"url"`
	Method    string               `json:"method"`
	Source    urlutil.RequestSource `json:"source"`
	Timestamp int64                `json:"timestamp"` // ms since Unix epoch
	Referrer  string               `json:"referrer,omitempty"`

	Response *httpcache.ResponseRecord `json:"response,omitempty"`
	Error    string                    `json:"error,omitempty"`
}

// RequestTable is the Run-wide, append-only record of every URL observed,
// indexed for O(1) dedup and update-in-place when a response or error
// arrives later for an already-seen URL (invariant 4).
type RequestTable struct {
	mu      sync.Mutex
	records []*RequestRecord
	byURL   map[string]*RequestRecord
}

// NewRequestTable returns an empty table.
func NewRequestTable() *RequestTable {
	return &RequestTable{byURL: make(map[string]*RequestRecord)}
}

// Record registers an observation of url from source, referred by referrer.
// The first observation of a URL fixes its insertion position; subsequent
// observations only update Source via the specificity tie-break in §9.
func (t *RequestTable) Record(url string, source urlutil.RequestSource, referrer string) *RequestRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byURL[url]; ok {
		existing.Source = urlutil.PreferredSource(existing.Source, source)
		return existing
	}

	rec := &RequestRecord{
		ID:        uuid.NewString(),
		URL:       url,
		Method:    "GET",
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Referrer:  referrer,
	}
	t.records = append(t.records, rec)
	t.byURL[url] = rec
	return rec
}

// AttachResponse sets the captured response on url's record. If url was
// never Record()ed (e.g. the root document, which is fetched through
// Engine.Fetch before any Record call), a bare record is created with
// source=unknown so the response is not lost.
func (t *RequestTable) AttachResponse(url string, resp *httpcache.ResponseRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byURL[url]
	if !ok {
		rec = &RequestRecord{ID: uuid.NewString(), URL: url, Method: "GET", Source: urlutil.SourceUnknown, Timestamp: time.Now().UnixMilli()}
		t.records = append(t.records, rec)
		t.byURL[url] = rec
	}
	rec.Response = resp
	rec.Error = ""
}

// AttachError marks url's record as failed. See AttachResponse for the
// defensive bare-record path.
func (t *RequestTable) AttachError(url string, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byURL[url]
	if !ok {
		rec = &RequestRecord{ID: uuid.NewString(), URL: url, Method: "GET", Source: urlutil.SourceUnknown, Timestamp: time.Now().UnixMilli()}
		t.records = append(t.records, rec)
		t.byURL[url] = rec
	}
	if rec.Response != nil {
		// P2: never stamp an error over an already-successful fetch.
		return
	}
	rec.Error = message
}

// Records returns a snapshot of the table in insertion order.
func (t *RequestTable) Records() []*RequestRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*RequestRecord, len(t.records))
	copy(out, t.records)
	return out
}
