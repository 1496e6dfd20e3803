package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/osiriscare/encounters/internal/audit"
	"github.com/osiriscare/encounters/internal/config"
	"github.com/osiriscare/encounters/internal/encounter"
	"github.com/osiriscare/encounters/internal/phi"
	"github.com/osiriscare/encounters/internal/storage"
)

type captureSink struct {
	lines []string
}

func (s *captureSink) Emit(_ phi.Level, line string) {
	s.lines = append(s.lines, line)
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore, *captureSink) {
	t.Helper()
	cfg := config.DefaultConfig()
	store := storage.NewMemoryStore()
	sink := &captureSink{}
	fields, err := phi.NewClassifier()
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return NewServer(&cfg, store, phi.NewRedactor(), fields, sink), store, sink
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func loginToken(t *testing.T, srv *Server, username, password string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	req.SetBasicAuth(username, password)
	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}
	var tok TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if tok.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", tok.TokenType)
	}
	if tok.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return tok.AccessToken
}

func authedRequest(t *testing.T, method, target, token string, body any) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, target, strings.NewReader(string(data)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Detail
}

func validCreateBody() map[string]any {
	return map[string]any{
		"patient_id":     "550e8400-e29b-41d4-a716-446655440000",
		"provider_id":    "750e8400-e29b-41d4-a716-446655440000",
		"encounter_date": "2026-08-20T10:30:00Z",
		"encounter_type": "initial_assessment",
		"clinical_data":  map[string]any{"chief_complaint": "headache", "pain_scale": 6},
	}
}

func TestHealthAndRoot(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health body = %q", rec.Body.String())
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("root returned %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HIPAA Encounter API") {
		t.Errorf("root body = %q", rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Valid credentials issue a usable token.
	token := loginToken(t, srv, "admin", "admin")
	claims, err := srv.parseToken(token)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.UserID != "850e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("claims.UserID = %q", claims.UserID)
	}
	if claims.Role != "ADMIN" {
		t.Errorf("claims.Role = %q", claims.Role)
	}

	// Wrong password and unknown user get the same response.
	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "admin"},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
		req.SetBasicAuth(tc.user, tc.pass)
		rec := doRequest(srv, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("login %s/%s returned %d, want 401", tc.user, tc.pass, rec.Code)
		}
		if got := errorDetail(t, rec); got != "Invalid username or password" {
			t.Errorf("login %s/%s detail = %q", tc.user, tc.pass, got)
		}
	}

	// Missing credentials entirely.
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/login", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login without credentials returned %d, want 401", rec.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/encounters", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := doRequest(srv, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("returned %d, want 401", rec.Code)
			}
			if got := errorDetail(t, rec); got != "Could not validate credentials" {
				t.Errorf("detail = %q", got)
			}
		})
	}

	// A token signed with a different key is rejected.
	other := config.DefaultConfig()
	other.SecretKey = "some-other-secret"
	otherSrv := NewServer(&other, storage.NewMemoryStore(), phi.NewRedactor(), mustClassifier(t), nil)
	forged, err := otherSrv.issueToken(mockUsers["admin"])
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	rec := doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters", forged, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token returned %d, want 401", rec.Code)
	}
}

func mustClassifier(t *testing.T) *phi.Classifier {
	t.Helper()
	c, err := phi.NewClassifier()
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestCreateAndGetEncounter(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, validCreateBody()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var created encounter.Encounter
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created encounter: %v", err)
	}
	if created.EncounterID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("encounter_id not assigned")
	}
	if created.CreatedBy != "850e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("created_by = %q", created.CreatedBy)
	}
	if created.ClinicalData["chief_complaint"] != "headache" {
		t.Errorf("clinical_data round trip lost data: %v", created.ClinicalData)
	}

	rec = doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters/"+created.EncounterID.String(), token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", rec.Code, rec.Body.String())
	}
	var got encounter.Encounter
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode encounter: %v", err)
	}
	if got.EncounterID != created.EncounterID {
		t.Errorf("got encounter %s, want %s", got.EncounterID, created.EncounterID)
	}
}

func TestGetEncounterErrors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	// Malformed ID.
	rec := doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters/not-a-uuid", token, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed id returned %d, want 422", rec.Code)
	}

	// Unknown ID.
	rec = doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters/650e8400-e29b-41d4-a716-446655440099", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id returned %d, want 404", rec.Code)
	}
	if got := errorDetail(t, rec); got != "Encounter not found" {
		t.Errorf("detail = %q", got)
	}

	// Existing encounter that fails the filter reads as not found.
	rec = doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, validCreateBody()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d", rec.Code)
	}
	var created encounter.Encounter
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec = doRequest(srv, authedRequest(t, http.MethodGet,
		"/api/v1/encounters/"+created.EncounterID.String()+"?encounter_type=discharge", token, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("filter mismatch returned %d, want 404", rec.Code)
	}
	if got := errorDetail(t, rec); got != "Encounter does not match filter criteria" {
		t.Errorf("detail = %q", got)
	}

	// Matching filter still returns it.
	rec = doRequest(srv, authedRequest(t, http.MethodGet,
		"/api/v1/encounters/"+created.EncounterID.String()+"?encounter_type=initial_assessment", token, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("matching filter returned %d, want 200", rec.Code)
	}
}

func TestCreateEncounterValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	tests := []struct {
		name   string
		mutate func(map[string]any)
		detail string
	}{
		{
			"empty patient_id",
			func(m map[string]any) { m["patient_id"] = "   " },
			"Validation error: patient_id cannot be empty or whitespace only",
		},
		{
			"bad encounter_type",
			func(m map[string]any) { m["encounter_type"] = "surgery" },
			"Validation error: encounter_type must be one of: initial_assessment, follow_up, treatment_session, consultation, discharge",
		},
		{
			"unknown patient",
			func(m map[string]any) { m["patient_id"] = "650e8400-e29b-41d4-a716-446655440099" },
			"Validation error: unknown patient",
		},
		{
			"unknown provider",
			func(m map[string]any) { m["provider_id"] = "650e8400-e29b-41d4-a716-446655440099" },
			"Validation error: unknown provider",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validCreateBody()
			tt.mutate(body)
			rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, body))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("returned %d, want 422: %s", rec.Code, rec.Body.String())
			}
			if got := errorDetail(t, rec); got != tt.detail {
				t.Errorf("detail = %q, want %q", got, tt.detail)
			}
		})
	}

	// A submitted SSN never comes back in the error body.
	body := validCreateBody()
	body["patient_id"] = "123-45-6789"
	rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, body))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ssn patient_id returned %d, want 422", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "123-45-6789") {
		t.Errorf("error body echoes submitted value: %s", rec.Body.String())
	}

	// Broken JSON.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/encounters", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = doRequest(srv, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("broken JSON returned %d, want 400", rec.Code)
	}
}

func TestListEncounters(t *testing.T) {
	srv, _, _ := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	// Empty store lists as an empty array, not null.
	rec := doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", rec.Body.String())
	}

	bodies := []map[string]any{validCreateBody(), validCreateBody(), validCreateBody()}
	bodies[1]["patient_id"] = "550e8400-e29b-41d4-a716-446655440001"
	bodies[2]["encounter_type"] = "follow_up"
	bodies[2]["encounter_date"] = "2026-08-25T09:00:00Z"
	for _, b := range bodies {
		rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, b))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
		}
	}

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by patient", "?patient_id=550e8400-e29b-41d4-a716-446655440000", 2},
		{"by type", "?encounter_type=follow_up", 1},
		{"by date range", "?start_date=2026-08-24T00:00:00Z&end_date=2026-08-26T00:00:00Z", 1},
		{"no match", "?patient_id=550e8400-e29b-41d4-a716-446655440004", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters"+tt.query, token, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("list returned %d: %s", rec.Code, rec.Body.String())
			}
			var got []encounter.Encounter
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode list: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d encounters, want %d", len(got), tt.want)
			}
		})
	}

	// Inconsistent date range is rejected.
	rec = doRequest(srv, authedRequest(t, http.MethodGet,
		"/api/v1/encounters?start_date=2026-08-26T00:00:00Z&end_date=2026-08-24T00:00:00Z", token, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("inverted date range returned %d, want 422", rec.Code)
	}

	// Malformed dates are rejected without echoing the raw value.
	rec = doRequest(srv, authedRequest(t, http.MethodGet,
		"/api/v1/encounters?start_date=yesterday", token, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed date returned %d, want 422", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "yesterday") {
		t.Errorf("error body echoes raw date: %s", rec.Body.String())
	}
}

func TestAuditTrail(t *testing.T) {
	srv, store, _ := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, validCreateBody()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d", rec.Code)
	}
	var created encounter.Encounter
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := authedRequest(t, http.MethodGet, "/api/v1/audit/encounters", token, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec = doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit trail returned %d: %s", rec.Code, rec.Body.String())
	}
	var events []audit.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d encounter events, want 1", len(events))
	}
	e := events[0]
	if e.EventType != audit.EventEncounterCreated {
		t.Errorf("event_type = %q", e.EventType)
	}
	if e.ResourceID != created.EncounterID.String() {
		t.Errorf("resource_id = %q, want %q", e.ResourceID, created.EncounterID)
	}
	if e.UserID != "850e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("user_id = %q", e.UserID)
	}
	if e.ChainHash == "" {
		t.Error("chain_hash not set")
	}

	// Reading the trail appended its own meta event and kept the chain valid.
	all, err := store.ListAuditEvents(req.Context(), audit.Filter{})
	if err != nil {
		t.Fatalf("ListAuditEvents: %v", err)
	}
	var metaSeen bool
	for _, ev := range all {
		if ev.EventType == audit.EventAuditAccessed {
			metaSeen = true
			if ev.IPAddress != "203.0.113.9" {
				t.Errorf("meta event ip = %q, want forwarded address", ev.IPAddress)
			}
		}
	}
	if !metaSeen {
		t.Error("no audit_accessed meta event recorded")
	}
	if !store.VerifyAuditChain() {
		t.Error("audit chain verification failed")
	}

	// Filtering by event type.
	rec = doRequest(srv, authedRequest(t, http.MethodGet,
		"/api/v1/audit/encounters?event_type=encounter_accessed", token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered trail returned %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("filtered trail body = %q, want []", rec.Body.String())
	}
}

func TestLogsAndErrorsContainNoPHI(t *testing.T) {
	srv, _, sink := newTestServer(t)
	token := loginToken(t, srv, "admin", "admin")

	body := validCreateBody()
	body["clinical_data"] = map[string]any{
		"patient_name": "John Smith",
		"ssn":          "123-45-6789",
		"email":        "john@example.com",
		"notes":        "Call patient at 555-123-4567",
	}
	rec := doRequest(srv, authedRequest(t, http.MethodPost, "/api/v1/encounters", token, body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}

	// Approved identifiers (user_id, encounter_id) may appear in log lines;
	// the submitted PHI values must not.
	for _, line := range sink.lines {
		for _, leak := range []string{"123-45-6789", "john@example.com", "555-123-4567", "John Smith"} {
			if strings.Contains(line, leak) {
				t.Errorf("log line leaks %q: %s", leak, line)
			}
		}
	}
}

func TestRecoverPanics(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic(fmt.Errorf("state for SSN 123-45-6789"))
	})

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panicking handler returned %d, want 500", rec.Code)
	}
	if got := errorDetail(t, rec); got != "An internal error occurred" {
		t.Errorf("detail = %q", got)
	}
	if strings.Contains(rec.Body.String(), "123-45-6789") {
		t.Errorf("panic value leaked into response: %s", rec.Body.String())
	}
}

func TestTokenExpiry(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.TokenExpiryMinutes = -1
	srv := NewServer(&cfg, storage.NewMemoryStore(), phi.NewRedactor(), mustClassifier(t), &captureSink{})

	expired, err := srv.issueToken(mockUsers["admin"])
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}
	if _, err := srv.parseToken(expired); err == nil {
		t.Error("expired token accepted")
	}

	rec := doRequest(srv, authedRequest(t, http.MethodGet, "/api/v1/encounters", expired, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token returned %d, want 401", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "192.0.2.1:5000", nil, "192.0.2.1"},
		{"x-forwarded-for", "10.0.0.1:5000", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"x-real-ip", "10.0.0.1:5000", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderLogin(t *testing.T) {
	srv, _, _ := newTestServer(t)

	token := loginToken(t, srv, "provider1", "admin")
	claims, err := srv.parseToken(token)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if claims.Role != "USER" {
		t.Errorf("claims.Role = %q, want USER", claims.Role)
	}
	if claims.Email != "provider1@example.com" {
		t.Errorf("claims.Email = %q", claims.Email)
	}
}
