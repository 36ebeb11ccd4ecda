package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"

	"researchdash/pkg/domain"
)

// timestampLayout is the wall-clock format stamped into Submitted On and
// Updated On.
const timestampLayout = "2006-01-02 15:04:05"

// ErrDuplicateEntry marks a submission that matches an existing record on
// faculty, period, and title.
var ErrDuplicateEntry = errors.New("duplicate entry for faculty, period, and title")

// ErrRowNotFound marks a status update aimed at a row index outside the
// table.
var ErrRowNotFound = errors.New("row index out of range")

// overviewColumns is the shape of the combined dashboard table: the common
// columns with every per-category title column folded into Title, plus a
// leading Type discriminator.
var overviewColumns = []string{
	"Type",
	domain.ColFaculty,
	domain.ColAcademicYear,
	"Title",
	domain.ColStatus,
	domain.ColStatusDate,
	domain.ColRemarks,
	domain.ColUploadedFile,
	domain.ColSubmittedOn,
	domain.ColUpdatedOn,
}

// Service implements the dashboard operations on top of the accessor:
// submissions with duplicate detection, status updates, per-category reads,
// and the combined overview and summary aggregations.
type Service struct {
	accessor *Accessor
	clock    clockwork.Clock
	log      Logger
}

// ServiceOption adjusts optional Service collaborators.
type ServiceOption func(*Service)

// WithServiceClock injects the clock used for submission timestamps.
func WithServiceClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

// WithServiceLogger injects the service logger.
func WithServiceLogger(log Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService constructs a Service over the accessor.
func NewService(accessor *Accessor, opts ...ServiceOption) (*Service, error) {
	if accessor == nil {
		return nil, errors.New("service: accessor is required")
	}
	s := &Service{
		accessor: accessor,
		clock:    clockwork.NewRealClock(),
		log:      noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Accessor exposes the underlying accessor for diagnostics.
func (s *Service) Accessor() *Accessor {
	return s.accessor
}

// Submit validates the entry, rejects duplicates on (faculty, period, title)
// ignoring case and surrounding whitespace, stamps the submission
// timestamps, and appends the row to the category worksheet.
func (s *Service) Submit(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	table, err := s.accessor.Load(ctx, entry.Category, entry.Period)
	if err != nil {
		return err
	}

	titleCol := entry.Category.TitleColumn()
	for _, row := range table.Rows {
		if foldEqual(row[domain.ColFaculty], entry.Faculty) &&
			foldEqual(row[domain.ColAcademicYear], string(entry.Period)) &&
			foldEqual(row[titleCol], entry.Title) {
			return fmt.Errorf("%w: %s / %s / %s", ErrDuplicateEntry,
				entry.Faculty, entry.Period, entry.Title)
		}
	}

	now := s.clock.Now().Format(timestampLayout)
	entry.SubmittedOn = now
	entry.UpdatedOn = now
	if err := s.accessor.Save(ctx, entry.Category, entry.Period, table.Append(entry.Row())); err != nil {
		return err
	}
	s.log.Info("entry submitted",
		"category", entry.Category.Slug(),
		"period", string(entry.Period),
		"faculty", entry.Faculty)
	return nil
}

// SetStatus updates Status and Updated On on the rowIndex-th record of the
// category worksheet and rewrites the table. rowIndex counts data rows from
// zero, header excluded.
func (s *Service) SetStatus(ctx context.Context, category Category, period Period, rowIndex int, status string) error {
	if !category.AllowsStatus(status) {
		return fmt.Errorf("status %q not allowed for category %q", status, category)
	}
	table, err := s.accessor.Load(ctx, category, period)
	if err != nil {
		return err
	}
	if rowIndex < 0 || rowIndex >= len(table.Rows) {
		return fmt.Errorf("%w: %d of %d rows", ErrRowNotFound, rowIndex, len(table.Rows))
	}

	updated := table.Clone()
	updated.Rows[rowIndex][domain.ColStatus] = status
	updated.Rows[rowIndex][domain.ColStatusDate] = s.clock.Now().Format("2006-01-02")
	updated.Rows[rowIndex][domain.ColUpdatedOn] = s.clock.Now().Format(timestampLayout)
	if err := s.accessor.Save(ctx, category, period, updated); err != nil {
		return err
	}
	s.log.Info("status updated",
		"category", category.Slug(),
		"period", string(period),
		"row", rowIndex,
		"status", status)
	return nil
}

// Records returns the normalized table for one category and period.
func (s *Service) Records(ctx context.Context, category Category, period Period) (Table, error) {
	return s.accessor.Load(ctx, category, period)
}

// Overview combines every category across the given periods into one table
// with a leading Type column; each category's title column is folded into a
// shared Title column. Empty periods default to all known periods.
func (s *Service) Overview(ctx context.Context, periods []Period) (Table, error) {
	if len(periods) == 0 {
		periods = domain.Periods()
	}
	combined := domain.NewTable(overviewColumns)
	for _, category := range domain.Categories() {
		titleCol := category.TitleColumn()
		for _, period := range periods {
			table, err := s.accessor.Load(ctx, category, period)
			if err != nil {
				return Table{}, err
			}
			for _, row := range table.Rows {
				out := make(Row, len(overviewColumns))
				for _, col := range overviewColumns {
					switch col {
					case "Type":
						out[col] = string(category)
					case "Title":
						out[col] = row[titleCol]
					default:
						out[col] = row[col]
					}
				}
				combined = combined.Append(out)
			}
		}
	}
	return combined, nil
}

// CategoryCount is one cell of the summary: records of one category
// attributed to one faculty member.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// FacultySummary aggregates one faculty member's record counts.
type FacultySummary struct {
	Faculty string          `json:"faculty"`
	Total   int             `json:"total"`
	Counts  []CategoryCount `json:"counts"`
}

// Summary counts records per faculty member and category across the given
// periods, sorted by descending total then faculty name. Empty periods
// default to all known periods.
func (s *Service) Summary(ctx context.Context, periods []Period) ([]FacultySummary, error) {
	if len(periods) == 0 {
		periods = domain.Periods()
	}
	counts := make(map[string]map[Category]int)
	for _, category := range domain.Categories() {
		for _, period := range periods {
			table, err := s.accessor.Load(ctx, category, period)
			if err != nil {
				return nil, err
			}
			for _, row := range table.Rows {
				faculty := strings.TrimSpace(row[domain.ColFaculty])
				if faculty == "" {
					continue
				}
				if counts[faculty] == nil {
					counts[faculty] = make(map[Category]int)
				}
				counts[faculty][category]++
			}
		}
	}

	summaries := make([]FacultySummary, 0, len(counts))
	for faculty, perCategory := range counts {
		summary := FacultySummary{Faculty: faculty}
		for _, category := range domain.Categories() {
			n := perCategory[category]
			if n == 0 {
				continue
			}
			summary.Counts = append(summary.Counts, CategoryCount{Category: category, Count: n})
			summary.Total += n
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Total != summaries[j].Total {
			return summaries[i].Total > summaries[j].Total
		}
		return summaries[i].Faculty < summaries[j].Faculty
	})
	return summaries, nil
}

// foldEqual compares two cell values ignoring case and surrounding
// whitespace.
func foldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
