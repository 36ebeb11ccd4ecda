package records

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"researchdash/internal/blob"
	"researchdash/internal/core"
	"researchdash/pkg/domain"
)

// ExportFormat identifies a dashboard artifact encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatHTML ExportFormat = "html"
)

func parseFormat(s string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, true
	case FormatJSON:
		return FormatJSON, true
	case FormatHTML:
		return FormatHTML, true
	}
	return "", false
}

func (f ExportFormat) contentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html"
	}
	return "application/octet-stream"
}

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact captures one stored dashboard artifact.
type ExportArtifact struct {
	Key         string       `json:"key"`
	Format      ExportFormat `json:"format"`
	ContentType string       `json:"content_type"`
	SizeBytes   int64        `json:"size_bytes"`
	URL         string       `json:"url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ExportRecord tracks an export request and its resulting artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	Periods     []domain.Period  `json:"periods"`
	Formats     []ExportFormat   `json:"formats"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	RequestedBy string           `json:"requested_by,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Periods = append([]domain.Period(nil), r.Periods...)
	dup.Formats = append([]ExportFormat(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	return dup
}

// ExportInput represents an enqueue request for the worker.
type ExportInput struct {
	Periods     []domain.Period
	Formats     []ExportFormat
	RequestedBy string
	Reason      string
}

// ExportScheduler queues dashboard export requests and exposes status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string       `json:"id"`
	Action     string       `json:"action"`
	Actor      string       `json:"actor"`
	Status     ExportStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Worker materializes combined-dashboard exports asynchronously: it renders
// the overview in the requested formats and stores the artifacts in the blob
// store under exports/<id>/.
type Worker struct {
	service *core.Service
	store   blob.Store
	audit   AuditLogger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

// NewWorker constructs an export worker over the dashboard service.
func NewWorker(service *core.Service, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		audit:   audit,
		queue:   make(chan exportTask, 32),
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.service == nil {
		return ExportRecord{}, fmt.Errorf("export service not configured")
	}
	for _, p := range input.Periods {
		if !p.Valid() {
			return ExportRecord{}, fmt.Errorf("unknown academic year %q", p)
		}
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []ExportFormat{FormatCSV, FormatJSON}
	}
	uniq := make([]ExportFormat, 0, len(formats))
	seen := make(map[ExportFormat]struct{})
	for _, f := range formats {
		if _, dup := seen[f]; dup {
			continue
		}
		switch f {
		case FormatCSV, FormatJSON, FormatHTML:
		default:
			return ExportRecord{}, fmt.Errorf("unsupported export format %q", f)
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Periods:     append([]domain.Period(nil), input.Periods...),
		Formats:     uniq,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, ExportStatusQueued, "")

	select {
	case w.queue <- exportTask{id: id, input: input}:
	default:
		return ExportRecord{}, fmt.Errorf("export queue full")
	}
	return queued, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, ExportStatusRunning, "")

	overview, err := w.service.Overview(w.ctx, task.input.Periods)
	if err != nil {
		w.fail(task.id, fmt.Sprintf("build overview: %v", err))
		return
	}

	record, ok := w.GetExport(task.id)
	if !ok {
		return
	}
	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := materialize(format, overview)
		if err != nil {
			w.fail(task.id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/overview.%s", task.id, format)
		artifact := ExportArtifact{
			Key:         key,
			Format:      format,
			ContentType: format.contentType(),
			SizeBytes:   int64(len(payload)),
			CreatedAt:   time.Now().UTC(),
		}
		if w.store != nil {
			info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
				ContentType: format.contentType(),
				Metadata:    map[string]string{"rows": fmt.Sprint(len(overview.Rows))},
			})
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact: %v", err))
				return
			}
			artifact.URL = info.URL
			if url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
				artifact.URL = url
			}
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(task.id, artifacts)
}

func (w *Worker) updateStatus(id string, status ExportStatus, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, status, message)
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, ExportStatusSucceeded, "")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, id, ExportStatusFailed, reason)
}

func (w *Worker) recordAudit(ctx context.Context, id string, status ExportStatus, note string) {
	if w.audit == nil {
		return
	}
	var actor, reason string
	w.mu.RLock()
	if record, ok := w.jobs[id]; ok {
		actor = record.RequestedBy
		reason = record.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         newID(),
		Action:     "dashboard_export",
		Actor:      actor,
		Status:     status,
		Reason:     reason,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}

func materialize(format ExportFormat, table domain.Table) ([]byte, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(map[string]any{
			"columns": table.Columns,
			"rows":    table.Rows,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(table.Columns); err != nil {
			return nil, err
		}
		for _, row := range table.Rows {
			cells := make([]string, len(table.Columns))
			for i, col := range table.Columns {
				cells[i] = row[col]
			}
			if err := writer.Write(cells); err != nil {
				return nil, err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatHTML:
		return buildHTML(table), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func buildHTML(table domain.Table) []byte {
	buf := &strings.Builder{}
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>Research Dashboard</title></head><body><table>`)
	buf.WriteString("<thead><tr>")
	for _, col := range table.Columns {
		buf.WriteString("<th>")
		buf.WriteString(html.EscapeString(col))
		buf.WriteString("</th>")
	}
	buf.WriteString("</tr></thead><tbody>")
	for _, row := range table.Rows {
		buf.WriteString("<tr>")
		for _, col := range table.Columns {
			buf.WriteString("<td>")
			buf.WriteString(html.EscapeString(row[col]))
			buf.WriteString("</td>")
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString("</tbody></table></body></html>")
	return []byte(buf.String())
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
