package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/osiriscare/encounters/internal/audit"
	"github.com/osiriscare/encounters/internal/encounter"
	"github.com/osiriscare/encounters/internal/storage"
)

// handleCreateEncounter creates an encounter record and logs an audit event.
func (s *Server) handleCreateEncounter(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req encounter.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		s.log.Warnf("validation error creating encounter: %s", err.Error())
		s.writeError(w, http.StatusUnprocessableEntity, "Validation error: "+err.Error(), nil)
		return
	}

	created, err := s.store.CreateEncounter(r.Context(), req, claims.UserID)
	if err != nil {
		s.log.ErrorStack("creating encounter failed", err, map[string]any{"user_id": claims.UserID})
		s.writeError(w, http.StatusInternalServerError,
			"An error occurred while creating the encounter",
			map[string]any{"error_type": "storage"})
		return
	}

	s.recordAudit(r, audit.Event{
		EventType:    audit.EventEncounterCreated,
		ResourceType: "encounter",
		ResourceID:   created.EncounterID.String(),
		UserID:       claims.UserID,
		AdditionalData: map[string]any{
			"encounter_type": string(created.EncounterType),
		},
	})

	s.log.Info("encounter created", map[string]any{
		"encounter_id": created.EncounterID.String(),
		"user_id":      claims.UserID,
	})
	writeJSON(w, http.StatusCreated, created)
}

// handleGetEncounter returns one encounter, optionally checked against
// filter criteria, and logs an audit event.
func (s *Server) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	id, err := uuid.Parse(mux.Vars(r)["encounter_id"])
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid encounter identifier", nil)
		return
	}

	filter, err := encounterFilterFromQuery(r)
	if err != nil {
		s.log.Warnf("invalid filter parameter: %s", err.Error())
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid filter parameter: "+err.Error(), nil)
		return
	}

	e, err := s.store.GetEncounter(r.Context(), id)
	if err == storage.ErrNotFound {
		s.log.Warn("encounter not found", map[string]any{"encounter_id": id.String()})
		s.writeError(w, http.StatusNotFound, "Encounter not found", nil)
		return
	}
	if err != nil {
		s.log.ErrorStack("retrieving encounter failed", err, map[string]any{"encounter_id": id.String()})
		s.writeError(w, http.StatusInternalServerError,
			"An error occurred while retrieving the encounter",
			map[string]any{"error_type": "storage"})
		return
	}

	if !filter.Empty() && !filter.Matches(e) {
		s.writeError(w, http.StatusNotFound, "Encounter does not match filter criteria", nil)
		return
	}

	s.recordAudit(r, audit.Event{
		EventType:    audit.EventEncounterAccessed,
		ResourceType: "encounter",
		ResourceID:   id.String(),
		UserID:       claims.UserID,
		AdditionalData: map[string]any{
			"filters_applied": !filter.Empty(),
		},
	})

	s.log.Info("encounter accessed", map[string]any{
		"encounter_id": id.String(),
		"user_id":      claims.UserID,
	})
	writeJSON(w, http.StatusOK, e)
}

// handleListEncounters returns encounters matching the query filters and
// logs an audit event.
func (s *Server) handleListEncounters(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	filter, err := encounterFilterFromQuery(r)
	if err != nil {
		s.log.Warnf("invalid filter parameter: %s", err.Error())
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid filter parameter: "+err.Error(), nil)
		return
	}

	encounters, err := s.store.ListEncounters(r.Context(), filter)
	if err != nil {
		s.log.ErrorStack("listing encounters failed", err, map[string]any{"user_id": claims.UserID})
		s.writeError(w, http.StatusInternalServerError,
			"An error occurred while listing encounters",
			map[string]any{"error_type": "storage"})
		return
	}
	if encounters == nil {
		encounters = []encounter.Encounter{}
	}

	s.recordAudit(r, audit.Event{
		EventType:    audit.EventEncounterListed,
		ResourceType: "encounter",
		ResourceID:   "*",
		UserID:       claims.UserID,
		AdditionalData: map[string]any{
			"result_count": len(encounters),
		},
	})

	s.log.Info("encounters listed", map[string]any{
		"user_id": claims.UserID,
		"count":   len(encounters),
	})
	writeJSON(w, http.StatusOK, encounters)
}

// recordAudit appends an audit event with request metadata. A failed append
// is logged but does not fail the request.
func (s *Server) recordAudit(r *http.Request, e audit.Event) {
	e.IPAddress = clientIP(r)
	e.UserAgent = r.Header.Get("User-Agent")
	if _, err := s.store.AppendAudit(r.Context(), e); err != nil {
		s.log.ErrorStack("audit append failed", err, map[string]any{
			"event_type":  e.EventType,
			"resource_id": e.ResourceID,
		})
	}
}

// encounterFilterFromQuery builds an encounter filter from query
// parameters. Dates are RFC 3339.
func encounterFilterFromQuery(r *http.Request) (encounter.Filter, error) {
	q := r.URL.Query()
	f := encounter.Filter{
		PatientID:     q.Get("patient_id"),
		ProviderID:    q.Get("provider_id"),
		EncounterType: encounter.Type(q.Get("encounter_type")),
	}

	var err error
	if f.StartDate, err = parseTimeParam(q.Get("start_date")); err != nil {
		return encounter.Filter{}, err
	}
	if f.EndDate, err = parseTimeParam(q.Get("end_date")); err != nil {
		return encounter.Filter{}, err
	}
	if err := f.Validate(); err != nil {
		return encounter.Filter{}, err
	}
	return f, nil
}

// parseTimeParam parses an optional RFC 3339 query value. The error does
// not echo the raw value: a malformed date parameter could be anything.
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errInvalidDate
	}
	return &t, nil
}
