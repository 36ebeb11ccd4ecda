package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"researchdash/internal/blob"
	"researchdash/internal/core"
	"researchdash/internal/infra/tablestore/memory"
	"researchdash/pkg/domain"
)

const testKey = "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"

func newTestHandler(t *testing.T) (*Handler, *memory.Store) {
	t.Helper()
	store := memory.NewStore(testKey)
	acc, err := core.NewAccessor(core.AccessorConfig{
		Opener:    store,
		SheetKey:  testKey,
		ReadRetry: core.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Microsecond},
	})
	if err != nil {
		t.Fatalf("NewAccessor: %v", err)
	}
	svc, err := core.NewService(acc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h := NewHandler(svc)
	h.Driver = "memory"
	return h, store
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Categories []categoryDescriptor `json:"categories"`
		Periods    []string             `json:"periods"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Categories) != 7 {
		t.Fatalf("categories = %d, want 7", len(payload.Categories))
	}
	for _, c := range payload.Categories {
		if c.Slug == "journal-publications" && len(c.Columns) != 16 {
			t.Fatalf("journal columns = %d, want 16", len(c.Columns))
		}
	}
	if len(payload.Periods) != 3 {
		t.Fatalf("periods = %v", payload.Periods)
	}
}

func TestSubmitAndListRecords(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"faculty":"Dr. Meera Iyer","title":"Adaptive irrigation controller","status":"Filed","status_date":"2026-01-15"}`
	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/records/patents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var payload struct {
		Columns []string     `json:"columns"`
		Rows    []domain.Row `json:"rows"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(payload.Rows))
	}
	if payload.Rows[0]["Patents Title"] != "Adaptive irrigation controller" {
		t.Fatalf("title cell = %q", payload.Rows[0]["Patents Title"])
	}
	if len(payload.Columns) != 9 {
		t.Fatalf("columns = %v", payload.Columns)
	}
}

func TestListRecordsCSV(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"faculty":"Dr. Rao","title":"Primer","status":"Published"}`
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records/book-book-chapter", body); rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/records/book-book-chapter?format=csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want 2:\n%s", len(lines), rec.Body.String())
	}
	if !strings.HasPrefix(lines[0], "Faculty,Academic Year,") {
		t.Fatalf("csv header = %q", lines[0])
	}
}

func TestSubmitDuplicateConflict(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"faculty":"Dr. Meera Iyer","title":"Adaptive irrigation controller","status":"Filed"}`
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", body); rec.Code != http.StatusCreated {
		t.Fatalf("first submit = %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate submit = %d, want 409", rec.Code)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents",
		`{"faculty":"","title":"x","status":"Filed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUnknownCategory(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/records/grants", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatusUpdate(t *testing.T) {
	h, _ := newTestHandler(t)

	submit := `{"faculty":"Dr. Meera Iyer","title":"Adaptive irrigation controller","status":"Filed"}`
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", submit); rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents/status",
		`{"row_index":0,"status":"Granted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status update = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/records/patents", "")
	var payload struct {
		Rows []domain.Row `json:"rows"`
	}
	decodeBody(t, rec, &payload)
	if payload.Rows[0]["Status"] != "Granted" {
		t.Fatalf("status cell = %q", payload.Rows[0]["Status"])
	}
}

func TestStatusUpdateMissingRow(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents/status",
		`{"row_index":5,"status":"Granted"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatusUpdateRequiresRowIndex(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents/status",
		`{"status":"Granted"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDashboardCombined(t *testing.T) {
	h, _ := newTestHandler(t)

	submissions := []struct{ path, body string }{
		{"/api/v1/records/patents", `{"faculty":"Dr. Meera Iyer","title":"Controller","status":"Filed"}`},
		{"/api/v1/records/book-book-chapter", `{"faculty":"Dr. Rao","title":"Primer","status":"Published"}`},
	}
	for _, s := range submissions {
		if rec := doJSON(t, h, http.MethodPost, s.path, s.body); rec.Code != http.StatusCreated {
			t.Fatalf("submit %s = %d", s.path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rec.Code)
	}
	var payload struct {
		Columns []string     `json:"columns"`
		Rows    []domain.Row `json:"rows"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Rows) != 2 {
		t.Fatalf("dashboard rows = %d, want 2", len(payload.Rows))
	}
	if payload.Columns[0] != "Type" {
		t.Fatalf("first column = %q", payload.Columns[0])
	}
}

func TestDashboardRejectsUnknownPeriod(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/dashboard?period=1999-00", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"faculty":"Dr. Meera Iyer","title":"Controller","status":"Filed"}`
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", body); rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/dashboard/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d", rec.Code)
	}
	var payload struct {
		Summary []core.FacultySummary `json:"summary"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Summary) != 1 || payload.Summary[0].Total != 1 {
		t.Fatalf("summary = %+v", payload.Summary)
	}
}

func TestDiagnosticsHealthy(t *testing.T) {
	h, _ := newTestHandler(t)

	// Create a worksheet so the listing has content.
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/records/patents", ""); rec.Code != http.StatusOK {
		t.Fatalf("warmup list = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/diagnostics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("diagnostics = %d", rec.Code)
	}
	var payload struct {
		Diagnostics diagnosticsReport `json:"diagnostics"`
	}
	decodeBody(t, rec, &payload)
	if payload.Diagnostics.Status != "ok" {
		t.Fatalf("status = %q, error %q", payload.Diagnostics.Status, payload.Diagnostics.Error)
	}
	if payload.Diagnostics.SheetKey != testKey || payload.Diagnostics.Driver != "memory" {
		t.Fatalf("report = %+v", payload.Diagnostics)
	}
	if len(payload.Diagnostics.Worksheets) != 1 {
		t.Fatalf("worksheets = %v", payload.Diagnostics.Worksheets)
	}
}

func TestDiagnosticsPermissionDenied(t *testing.T) {
	h, store := newTestHandler(t)
	store.InjectFaults(10, 403)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/diagnostics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("diagnostics = %d", rec.Code)
	}
	var payload struct {
		Diagnostics diagnosticsReport `json:"diagnostics"`
	}
	decodeBody(t, rec, &payload)
	if payload.Diagnostics.Status != "error" {
		t.Fatalf("status = %q, want error", payload.Diagnostics.Status)
	}
	if !strings.Contains(payload.Diagnostics.Error, "share it with the service account") {
		t.Fatalf("error = %q missing guidance", payload.Diagnostics.Error)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h, http.MethodDelete, "/api/v1/records/patents", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestExportEndpoints(t *testing.T) {
	h, _ := newTestHandler(t)
	artifacts := blob.NewMemory()
	audit := &MemoryAuditLog{}
	worker := NewWorker(h.Service, artifacts, audit)
	worker.Start()
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := worker.Stop(stopCtx); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	h.Exports = worker

	body := `{"faculty":"Dr. Meera Iyer","title":"Controller","status":"Filed"}`
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/records/patents", body); rec.Code != http.StatusCreated {
		t.Fatalf("submit = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/exports", `{"formats":["csv","html"],"requested_by":"hod"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("export create = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Export ExportRecord `json:"export"`
	}
	decodeBody(t, rec, &created)
	if created.Export.ID == "" || created.Export.Status != ExportStatusQueued {
		t.Fatalf("created export = %+v", created.Export)
	}

	record := waitForExport(t, worker, created.Export.ID)
	if record.Status != ExportStatusSucceeded {
		t.Fatalf("export status = %q, error %q", record.Status, record.Error)
	}
	if len(record.Artifacts) != 2 {
		t.Fatalf("artifacts = %+v", record.Artifacts)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/exports/"+created.Export.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export get = %d", rec.Code)
	}

	stored, err := artifacts.List(context.Background(), "exports/"+created.Export.ID+"/")
	if err != nil {
		t.Fatalf("List artifacts: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored artifacts = %+v", stored)
	}

	entries := audit.Entries()
	if len(entries) < 2 {
		t.Fatalf("audit entries = %d, want at least queued+succeeded", len(entries))
	}
	last := entries[len(entries)-1]
	if last.Status != ExportStatusSucceeded || last.Actor != "hod" {
		t.Fatalf("last audit entry = %+v", last)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	h, _ := newTestHandler(t)
	worker := NewWorker(h.Service, blob.NewMemory(), nil)
	h.Exports = worker

	rec := doJSON(t, h, http.MethodPost, "/api/v1/exports", `{"formats":["xlsx"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExportNotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Exports = NewWorker(h.Service, blob.NewMemory(), nil)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/exports/deadbeef", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func waitForExport(t *testing.T, worker *Worker, id string) ExportRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := worker.GetExport(id)
		if !ok {
			t.Fatalf("export %s disappeared", id)
		}
		if record.Status == ExportStatusSucceeded || record.Status == ExportStatusFailed {
			return record
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return ExportRecord{}
}
