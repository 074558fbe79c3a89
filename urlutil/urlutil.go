// Package urlutil implements C1: absolute-URL resolution, srcset parsing,
// MIME/extension to ResourceKind inference, and text/binary body-encoding
// classification. These are the lexical primitives every other Lighterceptor
// component builds on.
package urlutil

import (
	"mime"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"
)

// RequestSource classifies which surface observed a URL.
type RequestSource string

const (
	SourceResource RequestSource = "resource"
	SourceImg      RequestSource = "img"
	SourceCSS      RequestSource = "css"
	SourceFetch    RequestSource = "fetch"
	SourceXHR      RequestSource = "xhr"
	SourceUnknown  RequestSource = "unknown"
)

// specificity ranks RequestSource for the dedup tie-break described in
// spec §9: a more specific source wins over "resource" when the same URL
// is observed twice for one RequestRecord.
var specificity = map[RequestSource]int{
	SourceUnknown:  0,
	SourceResource: 1,
	SourceCSS:      2,
	SourceImg:      2,
	SourceFetch:    3,
	SourceXHR:      3,
}

// PreferredSource picks the winning source between two observations of the
// same URL, preferring the more specific one. Ties keep the first.
func PreferredSource(first, second RequestSource) RequestSource {
	if specificity[second] > specificity[first] {
		return second
	}
	return first
}

// ResourceKind classifies the kind of resource a URL points to.
type ResourceKind string

const (
	KindHTML    ResourceKind = "html"
	KindCSS     ResourceKind = "css"
	KindJS      ResourceKind = "js"
	KindImg     ResourceKind = "img"
	KindFont    ResourceKind = "font"
	KindMedia   ResourceKind = "media"
	KindJSON    ResourceKind = "json"
	KindUnknown ResourceKind = "unknown"
)

// NormalizedUrl is an absolute http(s) URL string with its fragment
// stripped. Never constructed directly outside this package; always go
// through ResolveURL.
type NormalizedUrl = string

// ResolveURL resolves raw against base (if any) and returns an absolute,
// fragment-free NormalizedUrl. It returns "", false for empty input,
// unresolvable relatives, and any scheme other than http/https — including
// data: and blob:, which are never normalized, enqueued, or recorded per
// spec invariant 2.
func ResolveURL(base, raw string) (NormalizedUrl, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	var resolved *url.URL
	var err error

	if base != "" {
		baseURL, baseErr := url.Parse(base)
		if baseErr != nil {
			return "", false
		}
		rawURL, rawErr := url.Parse(raw)
		if rawErr != nil {
			return "", false
		}
		resolved = baseURL.ResolveReference(rawURL)
	} else {
		resolved, err = url.Parse(raw)
		if err != nil {
			return "", false
		}
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}

	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), true
}

// ParseSrcsetUrls splits a srcset attribute value into its candidate URLs,
// discarding descriptors ("1x", "2x", "480w"). Splitting happens on commas
// that are not inside parentheses; a comma elsewhere, including one inside a
// data: URL, always ends a candidate.
func ParseSrcsetUrls(srcset string) []string {
	candidates := splitSrcsetCandidates(srcset)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		fields := strings.Fields(c)
		if len(fields) == 0 {
			continue
		}
		urls = append(urls, fields[0])
	}
	return urls
}

func splitSrcsetCandidates(srcset string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range srcset {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, srcset[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, srcset[start:])
	return out
}

var extensionKinds = map[string]ResourceKind{
	".css":   KindCSS,
	".js":    KindJS,
	".mjs":   KindJS,
	".html":  KindHTML,
	".htm":   KindHTML,
	".json":  KindJSON,
	".png":   KindImg,
	".jpg":   KindImg,
	".jpeg":  KindImg,
	".gif":   KindImg,
	".webp":  KindImg,
	".svg":   KindImg,
	".avif":  KindImg,
	".ico":   KindImg,
	".bmp":   KindImg,
	".woff":  KindFont,
	".woff2": KindFont,
	".ttf":   KindFont,
	".otf":   KindFont,
	".eot":   KindFont,
	".mp4":   KindMedia,
	".webm":  KindMedia,
	".ogg":   KindMedia,
	".ogv":   KindMedia,
	".mp3":   KindMedia,
	".wav":   KindMedia,
	".m4a":   KindMedia,
}

// InferResourceKindFromUrl guesses a ResourceKind from the URL path's
// extension. Unknown or missing extensions yield KindUnknown.
func InferResourceKindFromUrl(rawURL string) ResourceKind {
	u, err := url.Parse(rawURL)
	p := rawURL
	if err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	return KindUnknown
}

// ElementInfo is the minimal element shape InferKindFromElement needs,
// decoupled from any concrete DOM library so both the rod-backed harness
// and the goquery-backed static walk can supply it.
type ElementInfo struct {
	Tag string
	Rel string // only meaningful for <link>
}

// InferKindFromElement classifies a ResourceKind from an element's tag
// (and, for <link>, its rel attribute).
func InferKindFromElement(el ElementInfo) ResourceKind {
	switch strings.ToLower(el.Tag) {
	case "script":
		return KindJS
	case "iframe":
		return KindHTML
	case "img", "source":
		return KindImg
	case "link":
		switch strings.ToLower(strings.TrimSpace(el.Rel)) {
		case "stylesheet":
			return KindCSS
		case "icon", "preload", "prefetch", "modulepreload":
			return KindUnknown
		}
	}
	return KindUnknown
}

// textualPrefixes are content-type prefixes whose bodies must be decoded as text, per
// §4.1. Anything else defaults to base64 — erring toward base64 is
// deliberate: misclassifying binary as text corrupts the archive
// irreversibly, the reverse merely bloats it.
var textualPrefixes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg+xml",
}

// BodyEncoding is how a captured response body is stored.
type BodyEncoding string

const (
	EncodingText   BodyEncoding = "text"
	EncodingBase64 BodyEncoding = "base64"
)

// ResolveBodyEncoding decides text vs base64 storage for a content-type.
func ResolveBodyEncoding(contentType string) BodyEncoding {
	ct, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		ct = strings.ToLower(strings.TrimSpace(contentType))
		if idx := strings.Index(ct, ";"); idx >= 0 {
			ct = ct[:idx]
		}
	}
	ct = strings.ToLower(ct)

	for _, prefix := range textualPrefixes {
		if strings.HasPrefix(ct, prefix) {
			return EncodingText
		}
	}
	if strings.HasSuffix(ct, "+json") {
		return EncodingText
	}
	return EncodingBase64
}

// DecodeText returns buffer as a UTF-8 string. The charset parameter of
// contentType is read, but no charset other than UTF-8 is decoded: whatever
// the declared charset, bytes that are not valid UTF-8 yield fallback (used
// by callers that would rather keep the original literal than mangle it).
func DecodeText(buffer []byte, contentType, fallback string) string {
	_, params, err := mime.ParseMediaType(contentType)
	charset := "utf-8"
	if err == nil {
		if cs, ok := params["charset"]; ok && cs != "" {
			charset = strings.ToLower(cs)
		}
	}

	if charset != "utf-8" && charset != "utf8" && charset != "" {
		// Only UTF-8 is decoded natively; anything else that isn't valid
		// UTF-8 falls back rather than silently mojibake-ing the archive.
		if !isValidUTF8Printable(buffer) {
			return fallback
		}
	}

	if !isValidUTF8Printable(buffer) {
		return fallback
	}
	return string(buffer)
}

// isValidUTF8Printable reports whether buffer round-trips cleanly as UTF-8.
func isValidUTF8Printable(buffer []byte) bool {
	return utf8.Valid(buffer)
}
