// Package encounter defines the clinical encounter domain model.
package encounter

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type is a valid encounter type.
type Type string

const (
	TypeInitialAssessment Type = "initial_assessment"
	TypeFollowUp          Type = "follow_up"
	TypeTreatmentSession  Type = "treatment_session"
	TypeConsultation      Type = "consultation"
	TypeDischarge         Type = "discharge"
)

// Valid reports whether t is a known encounter type.
func (t Type) Valid() bool {
	switch t {
	case TypeInitialAssessment, TypeFollowUp, TypeTreatmentSession,
		TypeConsultation, TypeDischarge:
		return true
	}
	return false
}

// Encounter is a stored clinical encounter record.
type Encounter struct {
	EncounterID   uuid.UUID      `json:"encounter_id"`
	PatientID     string         `json:"patient_id"`
	ProviderID    string         `json:"provider_id"`
	EncounterDate time.Time      `json:"encounter_date"`
	EncounterType Type           `json:"encounter_type"`
	ClinicalData  map[string]any `json:"clinical_data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CreatedBy     string         `json:"created_by"`
}

// CreateRequest is the request body for creating an encounter.
type CreateRequest struct {
	PatientID     string         `json:"patient_id"`
	ProviderID    string         `json:"provider_id"`
	EncounterDate time.Time      `json:"encounter_date"`
	EncounterType Type           `json:"encounter_type"`
	ClinicalData  map[string]any `json:"clinical_data"`
}

// Validate checks the request and normalizes its identifiers. Error messages
// here never echo submitted values: they can be PHI, and validation errors
// end up in HTTP responses.
func (r *CreateRequest) Validate() error {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.ProviderID = strings.TrimSpace(r.ProviderID)

	if r.PatientID == "" {
		return fmt.Errorf("patient_id cannot be empty or whitespace only")
	}
	if r.ProviderID == "" {
		return fmt.Errorf("provider_id cannot be empty or whitespace only")
	}
	if r.EncounterDate.IsZero() {
		return fmt.Errorf("encounter_date is required")
	}
	if !r.EncounterType.Valid() {
		return fmt.Errorf("encounter_type must be one of: initial_assessment, follow_up, treatment_session, consultation, discharge")
	}
	if !IsValidPatientID(r.PatientID) {
		return fmt.Errorf("unknown patient")
	}
	if !IsValidProviderID(r.ProviderID) {
		return fmt.Errorf("unknown provider")
	}
	if r.ClinicalData == nil {
		r.ClinicalData = map[string]any{}
	}
	return nil
}

// Filter selects encounters for listing. Zero fields are ignored.
type Filter struct {
	PatientID     string
	ProviderID    string
	EncounterType Type
	StartDate     *time.Time
	EndDate       *time.Time
}

// Empty reports whether the filter selects everything.
func (f Filter) Empty() bool {
	return f.PatientID == "" && f.ProviderID == "" && f.EncounterType == "" &&
		f.StartDate == nil && f.EndDate == nil
}

// Validate checks filter consistency.
func (f Filter) Validate() error {
	if f.EncounterType != "" && !f.EncounterType.Valid() {
		return fmt.Errorf("invalid encounter_type filter")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return fmt.Errorf("end_date must be after start_date")
	}
	return nil
}

// Matches reports whether e satisfies every set criterion.
func (f Filter) Matches(e Encounter) bool {
	if f.PatientID != "" && e.PatientID != f.PatientID {
		return false
	}
	if f.ProviderID != "" && e.ProviderID != f.ProviderID {
		return false
	}
	if f.EncounterType != "" && e.EncounterType != f.EncounterType {
		return false
	}
	if f.StartDate != nil && e.EncounterDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.EncounterDate.After(*f.EndDate) {
		return false
	}
	return true
}
