package phi

import (
	"fmt"
	"strings"
)

// Fields that are known to contain PHI. A field name matches if any entry is
// a case-insensitive substring of it, so snake_case, camelCase, and suffixed
// variants (patient_id_old, legacyPatientIdentifier) are all caught.
var defaultPHIFields = []string{
	"patient_id",
	"patientId",
	"patient_name",
	"patientName",
	"patient_email",
	"patientEmail",
	"patient_phone",
	"patientPhone",
	"ssn",
	"social_security_number",
	"date_of_birth",
	"dateOfBirth",
	"dob",
	"address",
	"medical_record_number",
	"medicalRecordNumber",
}

// Fields whitelisted to carry identifier values for operational correlation.
var defaultApprovedIDFields = []string{
	"user_id",
	"userId",
	"provider_id",
	"providerId",
	"organization_id",
	"organizationId",
	"encounter_id",
	"encounterId",
	"event_id",
	"eventId",
	"resource_id",
	"resourceId",
}

// Classification is the verdict for a single field name.
type Classification int

const (
	// ClassOther is any field that is neither PHI nor approved.
	ClassOther Classification = iota
	// ClassPHI marks a field whose value must be dropped entirely.
	ClassPHI
	// ClassApprovedID marks a field whitelisted to carry an identifier.
	ClassApprovedID
)

// Classifier decides whether a field name indicates PHI or an approved
// identifier. Matching is substring-based and case-insensitive against
// precomputed lowercase entries. Immutable after construction; Extend
// returns a copy.
type Classifier struct {
	phi      []string // lowercase
	approved []string // lowercase
}

// NewClassifier builds a classifier from the default field sets plus any
// extra PHI field names. An empty or duplicate entry is a configuration
// error and should abort startup.
func NewClassifier(extraPHI ...string) (*Classifier, error) {
	phiSet, err := lowerSet("phi_fields", defaultPHIFields, extraPHI)
	if err != nil {
		return nil, err
	}
	approvedSet, err := lowerSet("approved_id_fields", defaultApprovedIDFields, nil)
	if err != nil {
		return nil, err
	}
	return &Classifier{phi: phiSet, approved: approvedSet}, nil
}

func lowerSet(name string, entries, extra []string) ([]string, error) {
	seen := make(map[string]bool, len(entries)+len(extra))
	out := make([]string, 0, len(entries)+len(extra))
	for _, e := range append(append([]string{}, entries...), extra...) {
		lower := strings.ToLower(strings.TrimSpace(e))
		if lower == "" {
			return nil, fmt.Errorf("%s: empty field name entry", name)
		}
		if seen[lower] {
			return nil, fmt.Errorf("%s: duplicate field name %q", name, lower)
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out, nil
}

// Extend returns a new classifier whose PHI set is the union of this one and
// fields. The receiver is unchanged; callers use this for one-off broadening
// without touching process-wide configuration. Unlike NewClassifier,
// duplicates are tolerated here: a caller re-listing a default field is a
// no-op, not an error.
func (c *Classifier) Extend(fields ...string) *Classifier {
	if len(fields) == 0 {
		return c
	}
	seen := make(map[string]bool, len(c.phi))
	phi := make([]string, len(c.phi), len(c.phi)+len(fields))
	copy(phi, c.phi)
	for _, e := range c.phi {
		seen[e] = true
	}
	for _, f := range fields {
		lower := strings.ToLower(strings.TrimSpace(f))
		if lower == "" || seen[lower] {
			continue
		}
		seen[lower] = true
		phi = append(phi, lower)
	}
	return &Classifier{phi: phi, approved: c.approved}
}

// IsPHIField reports whether name matches the PHI field set.
func (c *Classifier) IsPHIField(name string) bool {
	return matchesAny(name, c.phi)
}

// IsApprovedIDField reports whether name matches the approved identifier set.
func (c *Classifier) IsApprovedIDField(name string) bool {
	return matchesAny(name, c.approved)
}

// Classify returns the verdict for a field name. A name matching both sets
// (e.g. patient_user_id) is classified PHI: dropping is the safer default.
func (c *Classifier) Classify(name string) Classification {
	switch {
	case c.IsPHIField(name):
		return ClassPHI
	case c.IsApprovedIDField(name):
		return ClassApprovedID
	default:
		return ClassOther
	}
}

// MentionsPHI reports whether any PHI field name appears as a
// case-insensitive substring of text. Used by the error sanitizer to flag
// structured context without echoing it.
func (c *Classifier) MentionsPHI(text string) bool {
	return matchesAny(text, c.phi)
}

func matchesAny(name string, entries []string) bool {
	lower := strings.ToLower(name)
	for _, e := range entries {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}
