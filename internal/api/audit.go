package api

import (
	"errors"
	"net/http"

	"github.com/osiriscare/encounters/internal/audit"
)

var errInvalidDate = errors.New("dates must be RFC 3339 timestamps")

// handleAuditTrail returns audit events for encounter resources. Access to
// the trail is itself audited.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	q := r.URL.Query()

	f := audit.Filter{
		ResourceType: "encounter",
		ResourceID:   q.Get("resource_id"),
		UserID:       q.Get("user_id"),
		EventType:    q.Get("event_type"),
	}

	var err error
	if f.StartDate, err = parseTimeParam(q.Get("start_date")); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid filter parameter: "+err.Error(), nil)
		return
	}
	if f.EndDate, err = parseTimeParam(q.Get("end_date")); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid filter parameter: "+err.Error(), nil)
		return
	}
	if err := f.Validate(); err != nil {
		s.log.Warnf("invalid audit filter parameter: %s", err.Error())
		s.writeError(w, http.StatusUnprocessableEntity, "Invalid filter parameter: "+err.Error(), nil)
		return
	}

	events, err := s.store.ListAuditEvents(r.Context(), f)
	if err != nil {
		s.log.ErrorStack("retrieving audit trail failed", err, map[string]any{"user_id": claims.UserID})
		s.writeError(w, http.StatusInternalServerError,
			"An error occurred while retrieving the audit trail",
			map[string]any{"error_type": "storage"})
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	s.recordAudit(r, audit.Event{
		EventType:    audit.EventAuditAccessed,
		ResourceType: "audit",
		ResourceID:   "encounter_trail",
		UserID:       claims.UserID,
		AdditionalData: map[string]any{
			"result_count": len(events),
		},
	})

	s.log.Info("audit trail accessed", map[string]any{
		"user_id":     claims.UserID,
		"resource_id": f.ResourceID,
		"event_type":  f.EventType,
	})
	writeJSON(w, http.StatusOK, events)
}
