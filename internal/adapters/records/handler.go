// Package records exposes the research dashboard over HTTP: per-category
// record listings and submissions, status updates, the combined overview,
// async exports, and a connectivity diagnostics endpoint.
package records

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"researchdash/internal/core"
	"researchdash/pkg/domain"
)

// Handler provides HTTP access to the dashboard service.
type Handler struct {
	Service *core.Service
	Exports ExportScheduler
	// Driver names the configured table store backend for diagnostics.
	Driver string
}

// NewHandler constructs a records HTTP handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "dashboard service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/categories":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleCategories(w)
	case path == "/api/v1/dashboard":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleDashboard(w, r)
	case path == "/api/v1/dashboard/summary":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleSummary(w, r)
	case path == "/api/v1/diagnostics":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleDiagnostics(w, r)
	case path == "/api/v1/exports" || strings.HasPrefix(path, "/api/v1/exports/"):
		if h.Exports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleExports(w, r, path)
	case strings.HasPrefix(path, "/api/v1/records/"):
		h.handleRecords(w, r, strings.TrimPrefix(path, "/api/v1/records/"))
	default:
		http.NotFound(w, r)
	}
}

type categoryDescriptor struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Columns  []string `json:"columns"`
	Statuses []string `json:"statuses"`
}

func (h *Handler) handleCategories(w http.ResponseWriter) {
	descriptors := make([]categoryDescriptor, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		descriptors = append(descriptors, categoryDescriptor{
			Slug:     c.Slug(),
			Name:     string(c),
			Columns:  c.Columns(),
			Statuses: c.Statuses(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": descriptors,
		"periods":    domain.Periods(),
		"faculty":    domain.FacultyRoster(),
	})
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	category, ok := domain.CategoryFromSlug(segments[0])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown category %q", segments[0]))
		return
	}

	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		h.handleList(w, r, category)
	case len(segments) == 1 && r.Method == http.MethodPost:
		h.handleSubmit(w, r, category)
	case len(segments) == 2 && segments[1] == "status" && r.Method == http.MethodPost:
		h.handleSetStatus(w, r, category)
	case len(segments) == 1 || (len(segments) == 2 && segments[1] == "status"):
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, category domain.Category) {
	period, ok := singlePeriod(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown academic year")
		return
	}
	table, err := h.Service.Records(r.Context(), category, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if wantsCSV(r) {
		streamCSV(w, category.Slug(), table)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category.Slug(),
		"period":   period,
		"columns":  table.Columns,
		"rows":     table.Rows,
	})
}

type submitRequest struct {
	Faculty      string                 `json:"faculty"`
	Period       domain.Period          `json:"period"`
	Title        string                 `json:"title"`
	Status       string                 `json:"status"`
	StatusDate   string                 `json:"status_date"`
	Remarks      string                 `json:"remarks"`
	UploadedFile string                 `json:"uploaded_file"`
	Journal      *domain.JournalDetails `json:"journal"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, category domain.Category) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission payload")
		return
	}
	if req.Period == "" {
		req.Period = domain.DefaultPeriod
	}
	entry := domain.Entry{
		Category:     category,
		Faculty:      req.Faculty,
		Period:       req.Period,
		Title:        req.Title,
		Status:       req.Status,
		StatusDate:   req.StatusDate,
		Remarks:      req.Remarks,
		UploadedFile: req.UploadedFile,
		Journal:      req.Journal,
	}
	if err := h.Service.Submit(r.Context(), entry); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"category": category.Slug(),
		"period":   req.Period,
		"status":   "submitted",
	})
}

type statusRequest struct {
	Period   domain.Period `json:"period"`
	RowIndex *int          `json:"row_index"`
	Status   string        `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request, category domain.Category) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid status payload")
		return
	}
	if req.RowIndex == nil {
		writeError(w, http.StatusBadRequest, "row_index required")
		return
	}
	if req.Period == "" {
		req.Period = domain.DefaultPeriod
	}
	if err := h.Service.SetStatus(r.Context(), category, req.Period, *req.RowIndex, req.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category":  category.Slug(),
		"period":    req.Period,
		"row_index": *req.RowIndex,
		"status":    req.Status,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	periods, ok := multiPeriods(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown academic year")
		return
	}
	table, err := h.Service.Overview(r.Context(), periods)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if wantsCSV(r) {
		streamCSV(w, "dashboard", table)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns": table.Columns,
		"rows":    table.Rows,
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	periods, ok := multiPeriods(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown academic year")
		return
	}
	summaries, err := h.Service.Summary(r.Context(), periods)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summaries})
}

func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	if path == "/api/v1/exports" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.handleExportCreate(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(path, "/api/v1/exports/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

type exportRequest struct {
	Periods     []domain.Period `json:"periods"`
	Formats     []string        `json:"formats"`
	RequestedBy string          `json:"requested_by"`
	Reason      string          `json:"reason"`
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export payload")
		return
	}
	formats := make([]ExportFormat, 0, len(req.Formats))
	for _, f := range req.Formats {
		format, ok := parseFormat(f)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported export format %q", f))
			return
		}
		formats = append(formats, format)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), ExportInput{
		Periods:     req.Periods,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

type diagnosticsReport struct {
	SheetKey   string   `json:"sheet_key"`
	Driver     string   `json:"driver"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Worksheets []string `json:"worksheets,omitempty"`
}

// handleDiagnostics reports remote connectivity. Failures come back inside a
// 200 response so operators can read the actionable message even when the
// remote is misconfigured.
func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	report := diagnosticsReport{
		SheetKey: h.Service.Accessor().Key(),
		Driver:   h.Driver,
		Status:   "ok",
	}
	names, err := h.Service.Accessor().Worksheets(r.Context())
	if err != nil {
		report.Status = "error"
		report.Error = err.Error()
	} else {
		report.Worksheets = names
	}
	writeJSON(w, http.StatusOK, map[string]any{"diagnostics": report})
}

func singlePeriod(r *http.Request) (domain.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return domain.DefaultPeriod, true
	}
	p := domain.Period(raw)
	return p, p.Valid()
}

func multiPeriods(r *http.Request) ([]domain.Period, bool) {
	values := r.URL.Query()["period"]
	periods := make([]domain.Period, 0, len(values))
	for _, raw := range values {
		p := domain.Period(raw)
		if !p.Valid() {
			return nil, false
		}
		periods = append(periods, p)
	}
	return periods, true
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

func streamCSV(w http.ResponseWriter, name string, table domain.Table) {
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(table.Columns); err != nil {
		return
	}
	for _, row := range table.Rows {
		cells := make([]string, len(table.Columns))
		for i, col := range table.Columns {
			cells[i] = row[col]
		}
		if err := writer.Write(cells); err != nil {
			return
		}
	}
}

// writeServiceError maps service failures onto HTTP statuses: duplicates
// conflict, missing rows 404, remote misconfiguration 502, sustained rate
// limiting 503, anything else a 400 validation failure.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrDuplicateEntry):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrRowNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.NotFound(err), domain.PermissionDenied(err):
		writeError(w, http.StatusBadGateway, err.Error())
	case domain.RateLimited(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
