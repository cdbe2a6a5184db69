// Package api exposes the learning dashboard over HTTP.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/learnlog/internal/domain"
	"example.com/learnlog/internal/export"
)

const maxBodyBytes = 1 << 20

// Option configures optional Handler behaviour.
type Option func(*Handler)

// WithClock overrides the clock used to stamp exports.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithTrendDays sets the default analytics window.
func WithTrendDays(days int) Option {
	return func(h *Handler) {
		if days > 0 {
			h.trendDays = days
		}
	}
}

// WithLogger overrides the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// Handler coordinates HTTP requests with the store.
type Handler struct {
	store     *domain.Store
	now       func() time.Time
	trendDays int
	logger    *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(store *domain.Store, opts ...Option) *Handler {
	h := &Handler{
		store:     store,
		now:       time.Now,
		trendDays: domain.DefaultTrendDays,
		logger:    log.New(log.Writer(), "[api] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", healthz)
	mux.HandleFunc("/v1/dashboard", h.dashboard)
	mux.HandleFunc("/v1/records", h.records)
	mux.HandleFunc("/v1/records/", h.recordByID)
	mux.HandleFunc("/v1/students", h.students)
	mux.HandleFunc("/v1/students/", h.studentByID)
	mux.HandleFunc("/v1/suggestions/students", h.studentSuggestion)
	mux.HandleFunc("/v1/analytics", h.analytics)
	mux.HandleFunc("/v1/export/csv", h.exportCSV)
	mux.HandleFunc("/v1/export/json", h.exportJSON)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	limit := queryInt(r, "limit", domain.DefaultRecentLimit, 100)
	top := queryInt(r, "top", domain.DefaultTopLimit, 50)

	resp := DashboardResponse{
		Summary:          h.store.DashboardSummary(),
		RecentActivities: toRecordViews(h.store.RecentActivities(limit)),
		TopPerformers:    toRankedViews(h.store.TopPerformers(top)),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) records(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordActivity(w, r)
	case http.MethodGet:
		limit := queryInt(r, "limit", domain.DefaultRecentLimit, 1000)
		writeJSON(w, http.StatusOK, RecordListResponse{Items: toRecordViews(h.store.RecentActivities(limit))})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	var req RecordActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec, err := h.store.RecordActivity(r.Context(), req.toInput())
	persisted, warning, err := h.persistOutcome(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := RecordResponse{Record: toRecordView(rec), Persisted: persisted, Warning: warning}
	if student, lookupErr := h.store.LookupStudent(rec.StudentID); lookupErr == nil {
		view := toStudentView(student)
		resp.Student = &view
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) recordByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing record id")
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	rec, err := h.store.DeleteRecord(r.Context(), id)
	persisted, warning, err := h.persistOutcome(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse{Record: toRecordView(rec), Persisted: persisted, Warning: warning})
}

func (h *Handler) students(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addStudent(w, r)
	case http.MethodGet:
		matches := h.store.FilterStudents(r.URL.Query().Get("query"))
		items := make([]StudentView, 0, len(matches))
		for _, student := range matches {
			items = append(items, toStudentView(student))
		}
		writeJSON(w, http.StatusOK, StudentListResponse{Items: items})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) addStudent(w http.ResponseWriter, r *http.Request) {
	var req AddStudentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	student, err := h.store.AddStudent(r.Context(), domain.AddStudentInput(req))
	persisted, warning, err := h.persistOutcome(err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := toStudentView(student)
	writeJSON(w, http.StatusCreated, StudentResponse{Student: &view, Persisted: persisted, Warning: warning})
}

func (h *Handler) studentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/students/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing student id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := queryInt(r, "limit", domain.DefaultDetailsLimit, 100)
		details, err := h.store.StudentDetails(id, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StudentDetailsResponse{
			Student:       toStudentView(details.Student),
			RecentRecords: toRecordViews(details.RecentRecords),
		})
	case http.MethodDelete:
		err := h.store.DeleteStudent(r.Context(), id)
		persisted, warning, err := h.persistOutcome(err)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StudentResponse{Persisted: persisted, Warning: warning})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) studentSuggestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	resp := SuggestionResponse{}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id != "" {
		if student, err := h.store.LookupStudent(id); err == nil {
			view := toStudentView(student)
			resp.Suggestion = &view
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	days := queryInt(r, "days", h.trendDays, 366)
	writeJSON(w, http.StatusOK, AnalyticsResponse{
		Days:                  days,
		Trend:                 h.store.DailyTrendSeries(days),
		CourseAverages:        h.store.GroupedAverage(domain.ByCourse),
		SemesterAverages:      h.store.GroupedAverage(domain.BySemester),
		ActivityTypeAverages:  h.store.GroupedAverage(domain.ByActivityType),
		ObjectiveFrequency:    h.store.FrequencyCount(domain.ByObjective),
		ActivityTypeFrequency: h.store.FrequencyCount(domain.ActivityTypeKeys),
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	snap := h.store.Snapshot()
	if len(snap.Records) == 0 {
		writeError(w, http.StatusNotFound, "no_data", "no data to export")
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, snap.Records); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeAttachment(w, export.CSVFileName, export.CSVContentType, buf.Bytes())
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	snap := h.store.Snapshot()
	if len(snap.Records) == 0 {
		writeError(w, http.StatusNotFound, "no_data", "no data to export")
		return
	}
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, export.NewDocument(snap, h.now())); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeAttachment(w, export.JSONFileName, export.JSONContentType, buf.Bytes())
}

// persistOutcome separates a save failure, which still counts as success, from
// errors that reject the request.
func (h *Handler) persistOutcome(err error) (bool, string, error) {
	if err == nil {
		return true, "", nil
	}
	var persistErr *domain.PersistenceError
	if errors.As(err, &persistErr) {
		h.logger.Printf("change applied but not saved: %v", persistErr)
		return false, "change applied but could not be saved; it will be lost on restart", nil
	}
	return false, "", err
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if parsed > max {
		return max
	}
	return parsed
}

func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		duplicateErr  *domain.DuplicateError
		notFoundErr   *domain.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.As(err, &duplicateErr):
		writeError(w, http.StatusConflict, "conflict", duplicateErr.Error())
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, "not_found", notFoundErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
