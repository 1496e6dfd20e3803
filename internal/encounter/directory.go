package encounter

import (
	"sort"

	"github.com/google/uuid"
)

// Patient is a directory entry for a known patient.
type Patient struct {
	Name   string
	Status string
}

// Provider is a directory entry for a known provider.
type Provider struct {
	Name      string
	Specialty string
	Status    string
}

// Hard-coded directories used for request validation. A real deployment
// would back these with a registry service; the IDs below are the seeded
// demo population.
var knownPatients = map[string]Patient{
	"550e8400-e29b-41d4-a716-446655440000": {Name: "Patient One", Status: "active"},
	"550e8400-e29b-41d4-a716-446655440001": {Name: "Patient Two", Status: "active"},
	"550e8400-e29b-41d4-a716-446655440002": {Name: "Patient Three", Status: "active"},
	"550e8400-e29b-41d4-a716-446655440003": {Name: "Patient Four", Status: "active"},
	"550e8400-e29b-41d4-a716-446655440004": {Name: "Patient Five", Status: "active"},
}

var knownProviders = map[string]Provider{
	"750e8400-e29b-41d4-a716-446655440000": {Name: "Dr. Smith", Specialty: "Psychiatry", Status: "active"},
	"750e8400-e29b-41d4-a716-446655440001": {Name: "Dr. Jones", Specialty: "Psychology", Status: "active"},
	"750e8400-e29b-41d4-a716-446655440002": {Name: "Dr. Williams", Specialty: "Therapy", Status: "active"},
	"750e8400-e29b-41d4-a716-446655440003": {Name: "Dr. Brown", Specialty: "Counseling", Status: "active"},
}

// IsValidPatientID reports whether id is a well-formed UUID belonging to a
// known patient.
func IsValidPatientID(id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	_, ok := knownPatients[id]
	return ok
}

// IsValidProviderID reports whether id is a well-formed UUID belonging to a
// known provider.
func IsValidProviderID(id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	_, ok := knownProviders[id]
	return ok
}

// PatientIDs returns all known patient IDs, sorted.
func PatientIDs() []string {
	ids := make([]string, 0, len(knownPatients))
	for id := range knownPatients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProviderIDs returns all known provider IDs, sorted.
func ProviderIDs() []string {
	ids := make([]string, 0, len(knownProviders))
	for id := range knownProviders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
