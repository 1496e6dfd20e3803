// Package phi implements PHI (Protected Health Information) redaction for
// logs and error messages.
//
// The engine guarantees that PHI-shaped substrings (SSNs, emails, phone
// numbers, bare identifiers) and values stored under PHI-named fields never
// reach a log sink or an HTTP error body. Operational identifiers
// (correlation IDs such as encounter_id) survive redaction, but only through
// their approved structured fields, never as bare text.
//
// All types here are immutable after construction and safe for concurrent
// use. Compliant with HIPAA §164.312(e)(1) (transmission security).
package phi

import (
	"fmt"
	"regexp"
)

// Redaction markers. Identifier redaction is tagged separately because
// identifiers are legitimate in approved structured fields and only stripped
// from unstructured text. Neither marker matches any pattern below, which is
// what makes Redact idempotent.
const (
	Marker           = "[REDACTED]"
	IdentifierMarker = "[REDACTED-UUID]"
)

type phiPattern struct {
	name string
	re   *regexp.Regexp
}

// Redactor scrubs PHI-shaped substrings from arbitrary text.
type Redactor struct {
	patterns []phiPattern
	uuidRE   *regexp.Regexp
}

// NewRedactor compiles the PHI pattern set.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: compilePatterns(),
		// Canonical UUID: 8-4-4-4-12 hex groups, either case.
		uuidRE: regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`),
	}
}

// compilePatterns returns the PHI patterns in their fixed application order.
// Each pass rewrites the text seen by later passes, so the order is part of
// the contract: specific formats (dashed SSN, formatted phone) run before the
// catch-all 10-digit pattern can consume their digits.
func compilePatterns() []phiPattern {
	defs := []struct {
		name    string
		pattern string
	}{
		// SSN: 123-45-6789
		{"ssn_dash", `\b\d{3}-\d{2}-\d{4}\b`},

		// SSN: 123.45.6789
		{"ssn_dot", `\b\d{3}\.\d{2}\.\d{4}\b`},

		// Email
		{"email", `(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`},

		// Phone: 555-123-4567
		{"phone_dash", `\b\d{3}-\d{3}-\d{4}\b`},

		// Phone: (555) 123-4567 or (555)123-4567
		{"phone_paren", `\(\d{3}\)\s?\d{3}-\d{4}\b`},

		// 10 consecutive digits: unformatted phone or ID numbers
		{"ten_digit", `\b\d{10}\b`},
	}

	patterns := make([]phiPattern, 0, len(defs))
	for _, d := range defs {
		patterns = append(patterns, phiPattern{
			name: d.name,
			re:   regexp.MustCompile(d.pattern),
		})
	}
	return patterns
}

// Redact replaces every PHI pattern match with Marker, then every canonical
// UUID with IdentifierMarker. The UUID pass always runs last: UUIDs are not
// inherently PHI, but a bare identifier in free text is still a leak.
// Redact is idempotent.
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return ""
	}
	result := text
	for _, p := range r.patterns {
		result = p.re.ReplaceAllString(result, Marker)
	}
	return r.uuidRE.ReplaceAllString(result, IdentifierMarker)
}

// RedactAny stringifies v and redacts the result. Nil yields the empty
// string. This is the fallback path for values of unknown type; a redaction
// call never fails, whatever shape it is handed.
func (r *Redactor) RedactAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return r.Redact(s)
	}
	return r.Redact(fmt.Sprint(v))
}

// ContainsPHI reports whether text matches any PHI pattern or contains a
// bare UUID.
func (r *Redactor) ContainsPHI(text string) bool {
	for _, p := range r.patterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return r.uuidRE.MatchString(text)
}
