package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osiriscare/encounters/internal/audit"
	"github.com/osiriscare/encounters/internal/encounter"
)

// MemoryStore keeps encounters and audit events in process memory. Lookups
// by ID are O(1); by-patient, by-provider, and by-resource indexes keep
// common filters from scanning everything. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	encounters map[uuid.UUID]encounter.Encounter
	byPatient  map[string][]uuid.UUID
	byProvider map[string][]uuid.UUID

	auditEvents []audit.Event
	byResource  map[string][]int // resource_id -> indexes into auditEvents
	lastHash    string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		encounters: make(map[uuid.UUID]encounter.Encounter),
		byPatient:  make(map[string][]uuid.UUID),
		byProvider: make(map[string][]uuid.UUID),
		byResource: make(map[string][]int),
	}
}

// CreateEncounter implements Store.
func (s *MemoryStore) CreateEncounter(_ context.Context, req encounter.CreateRequest, createdBy string) (encounter.Encounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	e := encounter.Encounter{
		EncounterID:   uuid.New(),
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		EncounterDate: req.EncounterDate,
		EncounterType: req.EncounterType,
		ClinicalData:  req.ClinicalData,
		CreatedAt:     now,
		UpdatedAt:     now,
		CreatedBy:     createdBy,
	}
	if e.ClinicalData == nil {
		e.ClinicalData = map[string]any{}
	}

	s.encounters[e.EncounterID] = e
	s.byPatient[e.PatientID] = append(s.byPatient[e.PatientID], e.EncounterID)
	s.byProvider[e.ProviderID] = append(s.byProvider[e.ProviderID], e.EncounterID)
	return e, nil
}

// GetEncounter implements Store.
func (s *MemoryStore) GetEncounter(_ context.Context, id uuid.UUID) (encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.encounters[id]
	if !ok {
		return encounter.Encounter{}, ErrNotFound
	}
	return e, nil
}

// ListEncounters implements Store. Results are in creation order for a
// patient or provider index hit, otherwise unordered.
func (s *MemoryStore) ListEncounters(_ context.Context, f encounter.Filter) ([]encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Narrow by the most selective index first.
	var candidates []encounter.Encounter
	switch {
	case f.PatientID != "":
		for _, id := range s.byPatient[f.PatientID] {
			candidates = append(candidates, s.encounters[id])
		}
	case f.ProviderID != "":
		for _, id := range s.byProvider[f.ProviderID] {
			candidates = append(candidates, s.encounters[id])
		}
	default:
		for _, e := range s.encounters {
			candidates = append(candidates, e)
		}
	}

	out := make([]encounter.Encounter, 0, len(candidates))
	for _, e := range candidates {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendAudit implements Store.
func (s *MemoryStore) AppendAudit(_ context.Context, e audit.Event) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.EventID == "" {
		e.EventID = audit.NewEventID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.AdditionalData == nil {
		e.AdditionalData = map[string]any{}
	}
	e.ChainHash = e.ComputeChainHash(s.lastHash)
	s.lastHash = e.ChainHash

	s.auditEvents = append(s.auditEvents, e)
	s.byResource[e.ResourceID] = append(s.byResource[e.ResourceID], len(s.auditEvents)-1)
	return e, nil
}

// ListAuditEvents implements Store. Results are in append order.
func (s *MemoryStore) ListAuditEvents(_ context.Context, f audit.Filter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Event, 0)
	if f.ResourceID != "" {
		for _, i := range s.byResource[f.ResourceID] {
			if f.Matches(s.auditEvents[i]) {
				out = append(out, s.auditEvents[i])
			}
		}
		return out, nil
	}
	for _, e := range s.auditEvents {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// VerifyAuditChain recomputes every chain hash and reports whether the trail
// is intact.
func (s *MemoryStore) VerifyAuditChain() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prev := ""
	for _, e := range s.auditEvents {
		if e.ComputeChainHash(prev) != e.ChainHash {
			return false
		}
		prev = e.ChainHash
	}
	return true
}

// Clear drops all data. Useful for tests.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.encounters = make(map[uuid.UUID]encounter.Encounter)
	s.byPatient = make(map[string][]uuid.UUID)
	s.byProvider = make(map[string][]uuid.UUID)
	s.auditEvents = nil
	s.byResource = make(map[string][]int)
	s.lastHash = ""
}

// Close implements Store.
func (s *MemoryStore) Close() {}
