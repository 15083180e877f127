package models

// ListingRow maps every schema column to a string value. Columns and Values are
// parallel slices; Columns is always the schema's column sequence, so the key
// set and order of a row never differ from the schema.
type ListingRow struct {
	Columns []string
	Values  []string
}

// NewListingRow returns a row with every column set to the empty string.
func NewListingRow(columns []string) ListingRow {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return ListingRow{Columns: cols, Values: make([]string, len(cols))}
}

// Set assigns value to every column named name. It reports whether the column
// exists; unknown columns are ignored.
func (r ListingRow) Set(name, value string) bool {
	found := false
	for i, c := range r.Columns {
		if c == name {
			r.Values[i] = value
			found = true
		}
	}
	return found
}

// SetAt assigns value to the column at index i, ignoring out-of-range indexes.
func (r ListingRow) SetAt(i int, value string) {
	if i >= 0 && i < len(r.Values) {
		r.Values[i] = value
	}
}

// Get returns the value of the first column named name.
func (r ListingRow) Get(name string) (string, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return "", false
}

// Record returns a copy of the values in column order, ready for csv.Writer.
func (r ListingRow) Record() []string {
	out := make([]string, len(r.Values))
	copy(out, r.Values)
	return out
}
