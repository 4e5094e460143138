package graphvalue

// Row is one result record: a fixed-width sequence of top-level values whose
// positional meaning is defined by the query projection.
//
// Rows handed out by a cursor are views over a reused buffer. Use Clone to
// keep a row past the next cursor advance.
type Row []Value

// Clone returns a copy that does not alias the cursor buffer. Values
// themselves are immutable, so a shallow copy is enough.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	cp := make(Row, len(r))
	copy(cp, r)
	return cp
}

// Len returns the field count.
func (r Row) Len() int { return len(r) }
