package cssutil

import "testing"

func TestExtractCssUrls(t *testing.T) {
	css := `body { background: url("/asset.png"); }
@import url(./theme.css);
.skip { background: url("data:image/png;base64,abc"); }
@import "legacy.css";`
	got := ExtractCssUrls(css, "https://example.com/styles.css")
	want := map[string]bool{
		"https://example.com/asset.png": true,
		"https://example.com/theme.css": true,
		"https://example.com/legacy.css": true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want keys %v", got, want)
	}
	for _, u := range got {
		if !want[u] {
			t.Errorf("unexpected url %q", u)
		}
	}
}

func TestExtractCssUrls_SkipsDataAndBlob(t *testing.T) {
	css := `a { background: url(data:image/gif;base64,R0lGOD); }
b { background: url(blob:https://example.com/123-456); }`
	got := ExtractCssUrls(css, "https://example.com/s.css")
	if len(got) != 0 {
		t.Errorf("expected no urls, got %v", got)
	}
}

func TestRewriteCssText(t *testing.T) {
	css := `body { background: url("/asset.png"); } @import url("/import.css"); .skip { background: url("data:image/png;base64,abc"); }`
	resolver := func(absolute string) (string, bool) {
		switch absolute {
		case "https://example.com/asset.png":
			return "/assets/asset.png", true
		case "https://example.com/import.css":
			return "/assets/import.css", true
		}
		return "", false
	}
	got := RewriteCssText(css, "https://example.com/styles.css", resolver)

	if want := `url("/assets/asset.png")`; !contains(got, want) {
		t.Errorf("expected %q in output, got %q", want, got)
	}
	if want := `url("/assets/import.css")`; !contains(got, want) {
		t.Errorf("expected %q in output, got %q", want, got)
	}
	if want := `url("data:image/png;base64,abc")`; !contains(got, want) {
		t.Errorf("expected data: url preserved verbatim, got %q", got)
	}
}

func TestRewriteCssText_UnresolvedLeftUnchanged(t *testing.T) {
	css := `a { background: url("/unknown.png"); }`
	resolver := func(absolute string) (string, bool) { return "", false }
	got := RewriteCssText(css, "https://example.com/s.css", resolver)
	if got != css {
		t.Errorf("expected unchanged output, got %q", got)
	}
}

func TestRewriteCssText_Idempotent(t *testing.T) {
	// P5: rewriting with the identity resolver twice equals rewriting once.
	css := `body { background: url(/a.png); } @import url(/b.css);`
	identity := func(absolute string) (string, bool) { return absolute, true }

	once := RewriteCssText(css, "https://example.com/s.css", identity)
	twice := RewriteCssText(once, "https://example.com/s.css", identity)

	if once != twice {
		t.Errorf("rewrite not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestRewriteCssText_PreservesSingleQuoteStyle(t *testing.T) {
	css := `a { background: url('/a.png'); }`
	resolver := func(absolute string) (string, bool) { return "/rewritten.png", true }
	got := RewriteCssText(css, "https://example.com/s.css", resolver)
	if want := `url('/rewritten.png')`; !contains(got, want) {
		t.Errorf("expected single-quote style preserved, got %q", got)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
