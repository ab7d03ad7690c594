// Package extract turns filing documents into typed facts via per-kind
// pattern extractors.
package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
	spaceRe   = regexp.MustCompile(`[\s\x{00a0}]+`)
	charsetRe = regexp.MustCompile(`(?i)charset=["']?([A-Za-z0-9_-]+)`)
)

// NormalizeHTML reduces a filing document to plain text so pattern matching
// is robust to markup variation: charset decoded, script/style dropped, tags
// stripped, entities decoded, whitespace collapsed.
func NormalizeHTML(raw []byte) string {
	content := decodeCharset(raw)
	content = scriptRe.ReplaceAllString(content, " ")
	content = styleRe.ReplaceAllString(content, " ")
	content = tagRe.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)
	content = spaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// decodeCharset honors a charset declared in the document head; EDGAR
// archives still carry windows-1252 filings. Unknown or missing charsets
// fall through as-is.
func decodeCharset(raw []byte) string {
	head := raw
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := charsetRe.FindSubmatch(head)
	if m == nil {
		return string(raw)
	}
	name := strings.ToLower(string(m[1]))
	if name == "utf-8" || name == "utf8" {
		return string(raw)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// maxExcerptLen bounds provenance excerpts.
const maxExcerptLen = 200

// excerptAround returns at most maxExcerptLen characters of text around the
// span [start, end), keeping the span itself intact.
func excerptAround(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	span := end - start
	if span >= maxExcerptLen {
		return text[start:runeStart(text, start+maxExcerptLen)]
	}
	pad := (maxExcerptLen - span) / 2
	lo := start - pad
	if lo < 0 {
		lo = 0
	}
	hi := lo + maxExcerptLen
	if hi > len(text) {
		hi = len(text)
		lo = hi - maxExcerptLen
		if lo < 0 {
			lo = 0
		}
	}
	return strings.TrimSpace(text[runeStart(text, lo):runeStart(text, hi)])
}

// runeStart backs i up to the nearest rune boundary so byte slicing never
// splits a multibyte character.
func runeStart(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
