package policyform

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxSanitizePasses bounds sanitizeText on pathological multi-encoded input.
const maxSanitizePasses = 8

// Sanitize returns a copy of f with markup stripped from every text field.
// Entities escaped by the policy are decoded again so names like O'Neill
// reach Velneo verbatim.
func Sanitize(f Form) Form {
	out := f
	for _, fd := range formFields {
		if fd.str == nil {
			continue
		}
		p := fd.str(&out)
		if *p == "" {
			continue
		}
		*p = sanitizeText(*p)
	}
	return out
}

// sanitizeText strips markup until decoding entities no longer reveals any,
// so "&lt;script&gt;" cannot come back as a live tag.
func sanitizeText(s string) string {
	for range maxSanitizePasses {
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if next == s {
			return s
		}
		s = next
	}
	// still changing: keep the escaped form
	return strings.TrimSpace(strict.Sanitize(s))
}
