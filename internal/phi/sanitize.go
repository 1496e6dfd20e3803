package phi

import "fmt"

// phiContextSuffix flags that supplied context held PHI, without echoing it.
const phiContextSuffix = " [Context contains PHI - redacted]"

// Sanitizer produces user-safe strings for externally visible errors
// (HTTP error bodies). Every external-facing error path routes through it so
// no handler can echo a raw exception string or a user-identifying filter
// parameter.
type Sanitizer struct {
	red    *Redactor
	fields *Classifier
}

// NewSanitizer pairs a redactor with a field classifier.
func NewSanitizer(red *Redactor, fields *Classifier) *Sanitizer {
	return &Sanitizer{red: red, fields: fields}
}

// Sanitize redacts PHI patterns from an error message.
func (s *Sanitizer) Sanitize(msg string) string {
	return s.red.Redact(msg)
}

// SanitizeWithContext redacts the message and checks the context for PHI.
// The context is never included in the output: if its rendered form mentions
// any PHI field name, a fixed suffix notes that fact and nothing more.
// Extra field names broaden the PHI check for this call only.
func (s *Sanitizer) SanitizeWithContext(msg string, context map[string]any, extraPHI ...string) string {
	sanitized := s.red.Redact(msg)
	if len(context) == 0 {
		return sanitized
	}
	cl := s.fields.Extend(extraPHI...)
	if cl.MentionsPHI(fmt.Sprint(context)) {
		sanitized += phiContextSuffix
	}
	return sanitized
}
