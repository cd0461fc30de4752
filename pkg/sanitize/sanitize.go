package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Email (case-insensitive)
var reEmail = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)

// Common phone shapes: +xx..., (xxx) xxx-xxxx, 08xx...
// At least 9 digits overall so dates and amounts survive.
var rePhone = regexp.MustCompile(`\+?\d[\d\s\-\.()]{7,}\d`)

var (
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reBullet     = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// RedactPII masks emails and phone numbers, used before prompts reach logs.
func RedactPII(s string) string {
	if s == "" {
		return s
	}
	s = reEmail.ReplaceAllString(s, "[redacted email]")
	s = rePhone.ReplaceAllString(s, "[redacted phone]")
	return s
}

// Summary cuts s at a word boundary no later than max bytes.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + "..."
}

// Title returns the first n characters of s, with "..." appended when s is longer.
func Title(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// AIText tidies model output for markdown rendering: runs of blank lines
// collapse to one and every list bullet becomes "- ".
func AIText(s string) string {
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	s = reBullet.ReplaceAllString(s, "- ")
	return strings.TrimSpace(s)
}

// FileName reduces an uploaded name to a safe base name.
func FileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = reUnsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}

// Ext returns the lowercase extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
