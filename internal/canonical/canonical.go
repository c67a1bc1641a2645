// Copyright DTMBX, 2026. All rights reserved.

// Package canonical converts raw fetched bytes into the deterministic
// canonical text form that downstream hashing, indexing, and citation
// extraction depend on. The same (bytes, hint) input always yields
// byte-identical output, across calls and across process restarts.
// Implements: prd002-canonicalization (R1-R4);
//
//	docs/ARCHITECTURE § Canonicalizer.
package canonical

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Markup-stripping expressions. Script, style, and comment bodies carry no
// document text and are removed whole; remaining tags are dropped without
// inserting separators, so inter-tag text concatenates exactly as the
// source had it (R2.3).
var (
	scriptTag    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	allTags      = regexp.MustCompile(`<[^>]+>`)

	// tagMarker sniffs tag-like structure when no content type hint is given.
	tagMarker = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

	spaceRuns = regexp.MustCompile(`[ \t]+`)
)

// Canonicalize normalizes raw content to canonical UTF-8 text. Bytes that
// are not valid UTF-8 are treated as opaque binary: the raw bytes come
// back unchanged with empty canonical text (degraded mode, not an error).
// Markup is detected via the content type hint or structural sniffing and
// stripped before whitespace normalization. The function performs no I/O.
func Canonicalize(raw []byte, contentTypeHint string) (canonicalBytes []byte, canonicalText string) {
	if !utf8.Valid(raw) {
		return raw, ""
	}

	text := string(raw)
	if isMarkup(text, contentTypeHint) {
		text = stripMarkup(text)
	}
	text = normalizeWhitespace(text)

	return []byte(text), text
}

// isMarkup reports whether content should be treated as tagged markup.
func isMarkup(text, hint string) bool {
	h := strings.ToLower(hint)
	if strings.Contains(h, "html") || strings.Contains(h, "xml") {
		return true
	}
	// Hints like text/plain are authoritative; only sniff when absent.
	if h != "" {
		return false
	}
	return tagMarker.MatchString(text)
}

// stripMarkup removes tags while preserving text order. Entities are
// decoded so the canonical text reads as the rendered document would.
func stripMarkup(text string) string {
	text = scriptTag.ReplaceAllString(text, "")
	text = styleTag.ReplaceAllString(text, "")
	text = htmlComments.ReplaceAllString(text, "")
	text = allTags.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

// normalizeWhitespace applies the fixed normalization order: line endings
// to LF, space/tab runs to one space, per-line edge trim, then leading
// and trailing empty lines dropped (R3.1-R3.4). Form feeds survive: text
// producers use them as page boundaries and the retriever numbers pages
// by counting them.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Trim(line, " \t")
	}

	start := 0
	for start < len(lines) && lines[start] == "" {
		start++
	}
	end := len(lines)
	for end > start && lines[end-1] == "" {
		end--
	}

	return strings.Join(lines[start:end], "\n")
}
