package replay

import "testing"

func TestBuilders_AreDeterministic(t *testing.T) {
	builders := []func(Context) string{
		PreloadFetchRecorder, PreloadXHRRecorder,
		ReplayFetchResponder, ReplayXHRResponder,
		ReplayBeaconStub, ReplayWebSocketStub, ReplayEventSourceStub,
		ReplaySVGImageRewriter, ReplayDOMRewrite,
	}
	for _, b := range builders {
		a := b(Context{})
		c := b(Context{})
		if a != c {
			t.Errorf("builder is not pure: two calls produced different output")
		}
		if a == "" {
			t.Errorf("builder produced empty source")
		}
	}
}

func TestFetchResponder_GatesOnReadyAndExposesOriginal(t *testing.T) {
	src := ReplayFetchResponder(Context{})
	if !contains(src, "await ready") {
		t.Error("expected fetch responder to await the ready promise before responding")
	}
	if !contains(src, "__pagepocketOriginal") {
		t.Error("expected default OriginalSuffix __pagepocketOriginal to be used")
	}
	if !contains(src, "404") {
		t.Error("expected a 404 fallback on miss")
	}
}

func TestFetchResponder_CustomSuffix(t *testing.T) {
	src := ReplayFetchResponder(Context{OriginalSuffix: "__customOriginal"})
	if !contains(src, "__customOriginal") {
		t.Error("expected custom OriginalSuffix to be used")
	}
	if contains(src, "__pagepocketOriginal") {
		t.Error("default suffix should not appear when a custom one is set")
	}
}

func TestXHRResponder_UsesBothEventPathways(t *testing.T) {
	src := ReplayXHRResponder(Context{})
	for _, want := range []string{"onreadystatechange", "dispatchEvent", "onload", "onloadend"} {
		if !contains(src, want) {
			t.Errorf("expected xhr responder to reference %q", want)
		}
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
