// Package cssutil implements C2: lexical extraction and rewriting of
// url(...) and @import targets in a CSS string. Full CSS parsing is
// unnecessary because url(...) syntax is self-contained; a single
// regex-directed tokenizer handles both extraction and in-place rewriting.
package cssutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/use-agent/pagepocket/urlutil"
)

// urlToken describes one url(...) or bare @import "..." occurrence found
// in a CSS string: its byte span and the raw (unresolved) target text.
type urlToken struct {
	start, end int // half-open span over the full match, including url(...)/quotes
	target     string
	quote      byte // '"', '\'', or 0 for unquoted
}

// cssURLRe matches url(...) with optional quoting and leading/trailing
// whitespace inside the parens.
var cssURLRe = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^'")\s]*))\s*\)`)

// cssImportStringRe matches the bare-string form of @import, e.g.
// @import "a.css"; or @import 'a.css';  (the url(...) form is already
// covered by cssURLRe).
var cssImportStringRe = regexp.MustCompile(`@import\s+(?:"([^"]*)"|'([^']*)')`)

func tokenize(cssText string) []urlToken {
	var tokens []urlToken

	for _, m := range cssURLRe.FindAllStringSubmatchIndex(cssText, -1) {
		start, end := m[0], m[1]
		var target string
		var quote byte
		switch {
		case m[2] >= 0:
			target = cssText[m[2]:m[3]]
			quote = '"'
		case m[4] >= 0:
			target = cssText[m[4]:m[5]]
			quote = '\''
		case m[6] >= 0:
			target = cssText[m[6]:m[7]]
			quote = 0
		}
		tokens = append(tokens, urlToken{start: start, end: end, target: target, quote: quote})
	}

	for _, m := range cssImportStringRe.FindAllStringSubmatchIndex(cssText, -1) {
		start, end := m[0], m[1]
		var target string
		var quote byte
		if m[2] >= 0 {
			target = cssText[m[2]:m[3]]
			quote = '"'
		} else {
			target = cssText[m[4]:m[5]]
			quote = '\''
		}
		tokens = append(tokens, urlToken{start: start, end: end, target: target, quote: quote})
	}

	// RewriteCssText walks tokens left to right, so they must be in source order.
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].start < tokens[j].start })
	return tokens
}

// ExtractCssUrls scans cssText for every url(...) and @import target,
// resolves each against baseUrl, and returns the resulting absolute URLs.
// data: and blob: targets are skipped, as are targets that fail to resolve.
func ExtractCssUrls(cssText, baseUrl string) []string {
	tokens := tokenize(cssText)
	urls := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if isDataOrBlob(tok.target) {
			continue
		}
		resolved, ok := urlutil.ResolveURL(baseUrl, tok.target)
		if !ok {
			continue
		}
		urls = append(urls, resolved)
	}
	return urls
}

func isDataOrBlob(raw string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	return strings.HasPrefix(trimmed, "data:") || strings.HasPrefix(trimmed, "blob:")
}

// RewriteCssText replaces every extracted URL in cssText with the value
// resolveURL returns for its absolute form, preserving quoting style and
// all surrounding text that did not match a URL token. If resolveURL
// returns "", false for a given absolute URL, the original literal is left
// unchanged — this includes data:/blob: targets, which are never passed to
// resolveURL at all.
func RewriteCssText(cssText, cssUrl string, resolveURL func(absolute string) (string, bool)) string {
	tokens := tokenize(cssText)
	if len(tokens) == 0 {
		return cssText
	}

	var b strings.Builder
	cursor := 0
	for _, tok := range tokens {
		b.WriteString(cssText[cursor:tok.start])

		replacement := cssText[tok.start:tok.end]
		if !isDataOrBlob(tok.target) {
			if absolute, ok := urlutil.ResolveURL(cssUrl, tok.target); ok {
				if rewritten, ok := resolveURL(absolute); ok {
					replacement = rebuildToken(cssText[tok.start:tok.end], tok, rewritten)
				}
			}
		}
		b.WriteString(replacement)
		cursor = tok.end
	}
	b.WriteString(cssText[cursor:])
	return b.String()
}

// rebuildToken substitutes the URL portion of the original token text with
// newTarget, keeping the token's original shape (url(...) vs @import "...")
// and quoting style.
func rebuildToken(original string, tok urlToken, newTarget string) string {
	quoted := newTarget
	switch tok.quote {
	case '"':
		quoted = `"` + newTarget + `"`
	case '\'':
		quoted = "'" + newTarget + "'"
	}

	idx := strings.Index(original, tok.rawLiteral())
	if idx < 0 {
		// Fall back to wrapping style consistent with the match kind.
		if strings.HasPrefix(original, "url(") {
			return "url(" + quoted + ")"
		}
		return "@import " + quoted
	}
	return original[:idx] + quoted + original[idx+len(tok.rawLiteral()):]
}

// rawLiteral reconstructs the exact substring (including quotes, if any)
// that appeared in the source for this token's target.
func (t urlToken) rawLiteral() string {
	switch t.quote {
	case '"':
		return `"` + t.target + `"`
	case '\'':
		return `'` + t.target + `'`
	default:
		return t.target
	}
}
