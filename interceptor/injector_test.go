package interceptor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ysmood/gson"
)

type fakePage struct {
	evaluated []string
	bound     func(gson.JSON) (interface{}, error)
	stopped   bool
}

func (f *fakePage) EvalOnNewDocument(js string) (interface{}, error) {
	f.evaluated = append(f.evaluated, js)
	return nil, nil
}

func (f *fakePage) Expose(binding string, fn func(gson.JSON) (interface{}, error)) (func() error, error) {
	f.bound = fn
	return func() error { f.stopped = true; return nil }, nil
}

func TestInstall_BridgesToInterceptor(t *testing.T) {
	fp := &fakePage{}

	var gotURL string
	var gotMeta Meta
	interceptorFn := func(ctx context.Context, url string, meta Meta) (interface{}, error) {
		gotURL = url
		gotMeta = meta
		return nil, nil
	}

	inj, err := Install(context.Background(), fp, interceptorFn)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	defer inj.Close()

	if len(fp.evaluated) != 1 {
		t.Fatalf("expected one EvalOnNewDocument call, got %d", len(fp.evaluated))
	}
	if fp.bound == nil {
		t.Fatal("expected Expose to bind a function")
	}

	payload, _ := json.Marshal(reportPayload{
		URL:      "https://example.com/bg.png",
		Source:   "css",
		Element:  "div",
		Referrer: "https://example.com/",
	})
	_, err = fp.bound(gson.New(string(payload)))
	if err != nil {
		t.Fatalf("bound callback returned error: %v", err)
	}

	if gotURL != "https://example.com/bg.png" {
		t.Errorf("got url %q", gotURL)
	}
	if gotMeta.Source != "css" || gotMeta.Element != "div" {
		t.Errorf("got meta %+v", gotMeta)
	}

	inj.Close()
	if !fp.stopped {
		t.Error("expected Close to stop the binding")
	}
}

func TestInstall_MalformedPayloadDoesNotPanic(t *testing.T) {
	fp := &fakePage{}
	inj, err := Install(context.Background(), fp, func(ctx context.Context, url string, meta Meta) (interface{}, error) {
		t.Fatal("interceptor should not be called for malformed payload")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	defer inj.Close()

	if _, err := fp.bound(gson.New("not json")); err != nil {
		t.Errorf("expected no error for malformed payload, got %v", err)
	}
}

func TestInstall_ProtocolErrorDefaultsToNil(t *testing.T) {
	fp := &fakePage{}
	inj, err := Install(context.Background(), fp, func(ctx context.Context, url string, meta Meta) (interface{}, error) {
		return 42, nil // not Buffer/string/nil -> protocol error
	})
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	defer inj.Close()

	payload, _ := json.Marshal(reportPayload{URL: "https://example.com/a", Source: "img"})
	result, err := fp.bound(gson.New(string(payload)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result for protocol error, got %v", result)
	}
}
