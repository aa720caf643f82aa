// Package textutil holds the small text helpers shared by the chat engine
// and the transport.
package textutil

import (
	"html"
	"strconv"
	"strings"
	"unicode"
)

// CleanText makes user text safe to echo back in HTML parse mode: control
// characters are dropped, runs of whitespace collapse to one space and the
// result is trimmed and HTML-escaped. It has no side effects.
func CleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return html.EscapeString(b.String())
}

// Normalize prepares text for dank time matching.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// PadNumber zero-pads 0-9 to two digits and leaves other values as is.
func PadNumber(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
