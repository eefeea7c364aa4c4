package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Options controls how tabular input is read.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t' from the header line.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// DefaultOptions returns reasonable defaults for dataset ingestion.
func DefaultOptions() Options {
	return Options{MaxRows: 0}
}

// Dataset is an ordered set of records with normalized column names.
// Rows are padded to the header width on ingestion.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New builds a dataset, normalizing headers (lower-cased, trimmed) once.
func New(columns []string, rows [][]string) *Dataset {
	d := &Dataset{Columns: make([]string, len(columns)), Rows: rows}
	for i, c := range columns {
		d.Columns[i] = NormalizeHeader(c)
	}
	for i, r := range d.Rows {
		if len(r) < len(columns) {
			tmp := make([]string, len(columns))
			copy(tmp, r)
			d.Rows[i] = tmp
		}
	}
	d.reindex()
	return d
}

// FromRecords builds a dataset from keyed records with columns in keys order.
// Missing keys read as empty values.
func FromRecords(keys []string, records []map[string]string) *Dataset {
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(keys))
		for j, k := range keys {
			row[j] = rec[k]
		}
		rows[i] = row
	}
	return New(keys, rows)
}

// NormalizeHeader lower-cases and trims a column header.
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(s))
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		if _, dup := d.index[c]; !dup {
			d.index[c] = i
		}
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.Rows) }

// Has reports whether a normalized column exists.
func (d *Dataset) Has(col string) bool {
	_, ok := d.index[NormalizeHeader(col)]
	return ok
}

// Index returns the position of a column, or -1.
func (d *Dataset) Index(col string) int {
	if i, ok := d.index[NormalizeHeader(col)]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the raw values of a column.
func (d *Dataset) Column(col string) ([]string, bool) {
	j := d.Index(col)
	if j < 0 {
		return nil, false
	}
	out := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[j]
	}
	return out, true
}

// Rename returns a shallow copy with columns renamed through m (keys and values
// are normalized). Columns not in m keep their name.
func (d *Dataset) Rename(m map[string]string) *Dataset {
	norm := make(map[string]string, len(m))
	for k, v := range m {
		norm[NormalizeHeader(k)] = NormalizeHeader(v)
	}
	cols := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		if to, ok := norm[c]; ok {
			cols[i] = to
		} else {
			cols[i] = c
		}
	}
	out := &Dataset{Name: d.Name, Columns: cols, Rows: d.Rows}
	out.reindex()
	return out
}

// LoadCSV reads a CSV/TSV file from disk.
func LoadCSV(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	d, err := ReadCSV(f, opt)
	if err != nil {
		return nil, err
	}
	d.Name = filepath.Base(path)
	return d, nil
}

// ReadCSV reads CSV content with a header row.
func ReadCSV(r io.Reader, opt Options) (*Dataset, error) {
	br := bufio.NewReader(r)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(4096)
		delim = sniffDelimiter(head)
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read header: empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var rows [][]string
	for len(rows) < maxRows {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	return New(header, rows), nil
}

// sniffDelimiter picks the most frequent of ',', ';', '\t' on the first line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestN := ',', 0
	for _, c := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(head), string(c)); n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// ParseNumeric parses a number tolerating locale separators and percent signs.
// When opt leaves the decimal separator unset it is guessed from s alone; use
// ColumnOptions to settle it once for a whole column.
func ParseNumeric(s string, opt Options) (float64, bool) {
	raw := cleanNumber(s)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		dec = decimalFor(thou, []string{raw})
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ColumnOptions fixes the decimal separator for every value of a column. The
// explicit separators in opt win; otherwise the values vote and a column with no
// telling value reads '.' as decimal and ',' as grouping.
func ColumnOptions(vals []string, opt Options) Options {
	if opt.DecimalSeparator != 0 {
		return opt
	}
	cleaned := make([]string, 0, len(vals))
	for _, v := range vals {
		if c := cleanNumber(v); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	opt.DecimalSeparator = decimalFor(opt.ThousandsSeparator, cleaned)
	return opt
}

func cleanNumber(s string) string {
	raw := strings.ReplaceAll(s, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	return strings.TrimSpace(raw)
}

func decimalFor(thou rune, vals []string) rune {
	switch thou {
	case '.':
		return ','
	case ',':
		return '.'
	}
	votes := map[rune]int{}
	for _, v := range vals {
		if dec, ok := decimalHint(v); ok {
			votes[dec]++
		}
	}
	if votes[','] > votes['.'] {
		return ','
	}
	return '.'
}

// decimalHint reports the decimal separator a single value implies. A separator
// repeated within the value is grouping; a lone one followed by exactly three
// digits is ambiguous.
func decimalHint(v string) (rune, bool) {
	c, p := strings.Count(v, ","), strings.Count(v, ".")
	switch {
	case c > 0 && p > 0:
		if strings.LastIndex(v, ",") > strings.LastIndex(v, ".") {
			return ',', true
		}
		return '.', true
	case c > 1:
		return '.', true
	case p > 1:
		return ',', true
	case c == 1:
		if len(v)-strings.Index(v, ",")-1 != 3 {
			return ',', true
		}
	case p == 1:
		if len(v)-strings.Index(v, ".")-1 != 3 {
			return '.', true
		}
	}
	return 0, false
}

// IsNumericColumn reports whether every non-empty value of col parses as a
// number. A column with no values is not numeric.
func (d *Dataset) IsNumericColumn(col string, opt Options) bool {
	vals, ok := d.Column(col)
	if !ok {
		return false
	}
	opt = ColumnOptions(vals, opt)
	seen := 0
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := ParseNumeric(v, opt); !ok {
			return false
		}
		seen++
	}
	return seen > 0
}
