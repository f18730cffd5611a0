package recovery

import (
	"strings"

	"coursecraft-backend/internal/domain"
)

const fence = "```"

// Normalize strips commentary and code fences around the structured part of
// raw model output. The result starts with the kind's opening character when
// one could be found; otherwise the fence interior is returned unchanged.
func Normalize(raw string, kind domain.Kind) string {
	text := strings.TrimSpace(extractFence(raw))
	if text == "" || startsStructured(text, kind) {
		return text
	}

	opener := kind.Opener()
	// list kinds also accept an object wrapper around the array
	if kind.IsList() {
		obj, arr := strings.IndexByte(text, '{'), strings.IndexByte(text, '[')
		if obj != -1 && (arr == -1 || obj < arr) {
			opener = '{'
		}
	}
	if span, ok := braceSpan(text, opener); ok {
		return span
	}
	return text
}

func startsStructured(text string, kind domain.Kind) bool {
	if text[0] == kind.Opener() {
		return true
	}
	return kind.IsList() && text[0] == '{'
}

// extractFence returns the interior of the first fenced block, preferring a
// block tagged as json. An unclosed fence runs to the end of the text, which
// is what a truncated response looks like.
func extractFence(text string) string {
	start := indexFold(text, fence+"json")
	if start == -1 {
		start = strings.Index(text, fence)
	}
	if start == -1 {
		return text
	}

	body := text[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		info := strings.TrimSpace(body[:nl])
		if !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, fence); end != -1 {
		body = body[:end]
	}
	return body
}

// braceSpan returns text from the first opener to the last matching closer.
// Without a closer the span runs to the end so the repairer can balance it.
func braceSpan(text string, opener byte) (string, bool) {
	start := strings.IndexByte(text, opener)
	if start == -1 {
		return "", false
	}
	end := strings.LastIndexByte(text, closerFor(opener))
	if end < start {
		return strings.TrimSpace(text[start:]), true
	}
	return text[start : end+1], true
}

func closerFor(opener byte) byte {
	if opener == '[' {
		return ']'
	}
	return '}'
}

func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
