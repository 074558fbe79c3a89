package httpcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_Fetch_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Write([]byte(`body { color: red; }`))
	}))
	defer srv.Close()

	c := New(srv.Client())
	result := c.Fetch(context.Background(), srv.URL)

	if !result.Ok {
		t.Fatalf("expected ok, got error %q", result.Error)
	}
	if result.Text != `body { color: red; }` {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Response.BodyEncoding != "text" {
		t.Errorf("expected text encoding, got %s", result.Response.BodyEncoding)
	}
}

func TestClient_Fetch_Binary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	c := New(srv.Client())
	result := c.Fetch(context.Background(), srv.URL)

	if !result.Ok {
		t.Fatalf("expected ok, got error %q", result.Error)
	}
	if result.Response.BodyEncoding != "base64" {
		t.Errorf("expected base64 encoding, got %s", result.Response.BodyEncoding)
	}
}

func TestClient_Fetch_NeverThrows(t *testing.T) {
	c := New(&erroringDoer{})
	result := c.Fetch(context.Background(), "https://example.invalid")
	if result.Ok {
		t.Fatal("expected ok=false")
	}
	if result.Error == "" {
		t.Error("expected an error message")
	}
}

type erroringDoer struct{}

func (e *erroringDoer) Do(req *http.Request) (*http.Response, error) {
	return nil, context.DeadlineExceeded
}

// TestClient_Fetch_SingleFlight is P4: for one URL, concurrent callers share
// a single underlying Do call.
func TestClient_Fetch_SingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release // hold the request open so every caller overlaps it
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Fetch(context.Background(), srv.URL)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected exactly one underlying call, got %d", got)
	}
}
