package domain

// Row maps a declared column name to its string value. Missing declared
// columns are treated as empty.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether the row has no value under any of the given columns.
func (r Row) IsEmpty(columns []string) bool {
	for _, c := range columns {
		if r[c] != "" {
			return false
		}
	}
	return true
}

// Table is an ordered row-set: a declared column list plus data rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table carrying exactly the given columns.
func NewTable(columns []string) Table {
	return Table{Columns: append([]string(nil), columns...)}
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := NewTable(t.Columns)
	if len(t.Rows) > 0 {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}

// Append returns the table with an additional row. The receiver is not
// modified.
func (t Table) Append(r Row) Table {
	out := t.Clone()
	out.Rows = append(out.Rows, r.Clone())
	return out
}

// Normalize restricts and reorders the table to exactly the given columns,
// backfilling declared columns missing from a row with empty strings and
// dropping values under undeclared columns.
func (t Table) Normalize(columns []string) Table {
	out := NewTable(columns)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(Row, len(columns))
		for _, c := range columns {
			row[c] = r[c]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// DropEmpty removes rows that carry no value under any declared column.
func (t Table) DropEmpty() Table {
	out := NewTable(t.Columns)
	for _, r := range t.Rows {
		if r.IsEmpty(t.Columns) {
			continue
		}
		out.Rows = append(out.Rows, r.Clone())
	}
	return out
}
