// Package audit defines the immutable audit trail event model.
//
// Every access to an encounter record produces an event. Events are
// append-only; each carries a SHA-256 chain hash over the previous event's
// hash and its own canonical fields, so tampering with a stored event breaks
// every hash after it.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the API.
const (
	EventEncounterCreated  = "encounter_created"
	EventEncounterAccessed = "encounter_accessed"
	EventEncounterListed   = "encounter_listed"
	EventAuditAccessed     = "audit_accessed"
)

// Event is one audit trail entry.
type Event struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id"`
	UserID         string         `json:"user_id"`
	Timestamp      time.Time      `json:"timestamp"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	AdditionalData map[string]any `json:"additional_data,omitempty"`
	ChainHash      string         `json:"chain_hash,omitempty"`
}

// NewEventID generates an event identifier: "audit_" plus 12 hex chars.
func NewEventID() string {
	return "audit_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ComputeChainHash returns the hex SHA-256 of the previous event's hash
// concatenated with this event's canonical fields. AdditionalData is
// excluded: it is free-form and has no canonical encoding.
func (e *Event) ComputeChainHash(prevHash string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s",
		prevHash, e.EventID, e.EventType, e.ResourceType, e.ResourceID,
		e.Timestamp.UTC().Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}

// Filter selects audit events for listing. Zero fields are ignored.
type Filter struct {
	ResourceType string
	ResourceID   string
	UserID       string
	EventType    string
	StartDate    *time.Time
	EndDate      *time.Time
}

// Validate checks filter consistency.
func (f Filter) Validate() error {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return fmt.Errorf("end_date must be after start_date")
	}
	return nil
}

// Matches reports whether e satisfies every set criterion.
func (f Filter) Matches(e Event) bool {
	if f.ResourceType != "" && e.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.StartDate != nil && e.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Timestamp.After(*f.EndDate) {
		return false
	}
	return true
}
