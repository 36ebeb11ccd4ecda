package domain

import (
	"context"
	"errors"
	"fmt"
)

// APIError is the distinguishable failure signal raised by remote table
// store clients. Status carries the remote numeric status: 429 marks a
// transient rate limit, 404 a missing spreadsheet, 403 a missing sharing
// grant. Anything else is a generic remote failure.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote table store error (status %d)", e.Status)
	}
	return fmt.Sprintf("remote table store error (status %d): %s", e.Status, e.Message)
}

// RateLimited reports whether err is a transient rate-limit signal that the
// caller should retry after a delay.
func RateLimited(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == 429
}

// NotFound reports whether err marks a missing spreadsheet.
func NotFound(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

// PermissionDenied reports whether err marks a missing sharing grant.
func PermissionDenied(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == 403
}

// ErrWorksheetNotFound is returned by Connection.Worksheet when the named
// worksheet does not exist inside an otherwise reachable spreadsheet.
var ErrWorksheetNotFound = errors.New("worksheet not found")

// Opener opens a spreadsheet by its resource key. Implementations are
// credential-gated remote clients or local stand-ins.
type Opener interface {
	OpenByKey(ctx context.Context, key string) (Connection, error)
}

// Connection is the opaque handle over one spreadsheet.
type Connection interface {
	// Worksheets lists the names of all worksheets in the spreadsheet.
	Worksheets(ctx context.Context) ([]string, error)
	// Worksheet returns a handle to the named worksheet, or an error
	// wrapping ErrWorksheetNotFound.
	Worksheet(ctx context.Context, name string) (Worksheet, error)
	// AddWorksheet creates a worksheet sized to the given row and column
	// capacities. Creation is not idempotent against concurrent creators.
	AddWorksheet(ctx context.Context, name string, rows, cols int) (Worksheet, error)
}

// Worksheet is a handle to one remote worksheet grid.
type Worksheet interface {
	Name() string
	// ReadAll fetches the full grid, header row included.
	ReadAll(ctx context.Context) ([][]string, error)
	// WriteAll replaces the full grid contents, header row included.
	WriteAll(ctx context.Context, grid [][]string) error
}
