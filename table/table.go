// Copyright 2023 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table implements a dynamic-schema table for data whose exact
// column set is only known at runtime, such as flattened JSON API responses.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Value is a single table cell: a string, float64, bool, nil, a
// fmt.Stringer, or a raw []any for array-valued cells.
type Value = any

// Row maps column names to cell values. Columns absent from a row are
// treated as empty cells.
type Row = map[string]Value

// Table is an ordered sequence of rows with a deterministic column order.
//
// A typical use:
//
//	t := New("name", "age")
//	t.AddRow(Row{"name": "John", "age": 25.0})
//	t.WriteText(os.Stdout, Params{})
type Table struct {
	cols   []string
	colSet map[string]struct{}
	rows   []Row
	index  string // optional key column; see SetIndex
}

// New creates an empty Table with optional initial columns.
func New(cols ...string) *Table {
	t := &Table{colSet: make(map[string]struct{})}
	for _, c := range cols {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(col string) {
	if _, ok := t.colSet[col]; ok {
		return
	}
	t.cols = append(t.cols, col)
	t.colSet[col] = struct{}{}
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	cols := make([]string, len(t.cols))
	copy(cols, t.cols)
	return cols
}

// NumRows is the current number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// Empty is true when the table has no rows.
func (t *Table) Empty() bool { return len(t.rows) == 0 }

// Row returns the i'th row. The caller may modify cell values in place, but
// must not add or remove columns.
func (t *Table) Row(i int) Row { return t.rows[i] }

// AddRow appends one or more rows. Columns not yet present in the table are
// appended to the column order, alphabetically within each row, so that the
// resulting order does not depend on map iteration.
func (t *Table) AddRow(rows ...Row) {
	for _, r := range rows {
		var unseen []string
		for col := range r {
			if _, ok := t.colSet[col]; !ok {
				unseen = append(unseen, col)
			}
		}
		sort.Strings(unseen)
		for _, col := range unseen {
			t.addColumn(col)
		}
		t.rows = append(t.rows, r)
	}
}

// AddConst appends a column with the same value in every row. It is an error
// if the column already exists.
func (t *Table) AddConst(col string, v Value) error {
	if _, ok := t.colSet[col]; ok {
		return errors.Reason("column %q already exists", col)
	}
	t.addColumn(col)
	for _, r := range t.rows {
		r[col] = v
	}
	return nil
}

// Rename changes the name of a column keeping its position. The old name is
// discarded. It is an error if the old column is missing or the new one
// already exists.
func (t *Table) Rename(old, new string) error {
	if _, ok := t.colSet[old]; !ok {
		return errors.Reason("no column %q to rename", old)
	}
	if _, ok := t.colSet[new]; ok {
		return errors.Reason("column %q already exists", new)
	}
	for i, c := range t.cols {
		if c == old {
			t.cols[i] = new
		}
	}
	delete(t.colSet, old)
	t.colSet[new] = struct{}{}
	for _, r := range t.rows {
		if v, ok := r[old]; ok {
			r[new] = v
			delete(r, old)
		}
	}
	if t.index == old {
		t.index = new
	}
	return nil
}

// Select restricts and reorders the columns to exactly the given sequence.
// Cell values of dropped columns are removed from the rows.
func (t *Table) Select(cols ...string) error {
	keep := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, ok := t.colSet[c]; !ok {
			return errors.Reason("no column %q to select", c)
		}
		keep[c] = struct{}{}
	}
	for _, r := range t.rows {
		for c := range r {
			if _, ok := keep[c]; !ok {
				delete(r, c)
			}
		}
	}
	t.cols = make([]string, len(cols))
	copy(t.cols, cols)
	t.colSet = keep
	if _, ok := keep[t.index]; !ok {
		t.index = ""
	}
	return nil
}

// Convert replaces each cell of the column by f(cell). A row missing the
// column is an error, as is any error returned by f.
func (t *Table) Convert(col string, f func(Value) (Value, error)) error {
	if _, ok := t.colSet[col]; !ok {
		return errors.Reason("no column %q to convert", col)
	}
	for i, r := range t.rows {
		v, ok := r[col]
		if !ok {
			return errors.Reason("row %d has no value for column %q", i, col)
		}
		v2, err := f(v)
		if err != nil {
			return errors.Annotate(err, "failed to convert %q in row %d", col, i)
		}
		r[col] = v2
	}
	return nil
}

// SetIndex designates col as the key column and moves it to the front of the
// column order.
func (t *Table) SetIndex(col string) error {
	if _, ok := t.colSet[col]; !ok {
		return errors.Reason("no column %q to use as index", col)
	}
	cols := []string{col}
	for _, c := range t.cols {
		if c != col {
			cols = append(cols, c)
		}
	}
	t.cols = cols
	t.index = col
	return nil
}

// Index returns the name of the key column, or "" when not set.
func (t *Table) Index() string { return t.index }

// Find returns the first row whose index cell equals v, or nil when the
// index is not set or no row matches.
func (t *Table) Find(v Value) Row {
	if t.index == "" {
		return nil
	}
	for _, r := range t.rows {
		if r[t.index] == v {
			return r
		}
	}
	return nil
}

// Concat appends all rows of t2, unioning the columns: columns of t2 unseen
// in t are appended in t2's order. The index is reset, since the combined
// table generally has no unique key.
func (t *Table) Concat(t2 *Table) {
	for _, c := range t2.cols {
		t.addColumn(c)
	}
	t.rows = append(t.rows, t2.rows...)
	t.index = ""
}

// FormatValue renders a single cell for CSV or text output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func (t *Table) csvRow(r Row) []string {
	res := make([]string, len(t.cols))
	for i, c := range t.cols {
		res[i] = FormatValue(r[c])
	}
	return res
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.cols) > 0 {
		if err := cw.Write(t.cols); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.csvRow(r)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	numRows := len(t.rows)
	if p.Rows > 0 && p.Rows < numRows {
		numRows = p.Rows
	}
	widths := make([]int, len(t.cols))
	update := func(row []string) {
		for i := range widths {
			if widths[i] < len(row[i]) {
				widths[i] = len(row[i])
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	if !p.NoHeader {
		update(t.cols)
	}
	for i := 0; i < numRows; i++ {
		update(t.csvRow(t.rows[i]))
	}

	if !p.NoHeader && len(t.cols) > 0 {
		if err := write(t.cols); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		dashed := make([]string, len(widths))
		for i, w := range widths {
			dashed[i] = strings.Repeat("-", w)
		}
		if err := write(dashed); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i := 0; i < numRows; i++ {
		if err := write(t.csvRow(t.rows[i])); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
