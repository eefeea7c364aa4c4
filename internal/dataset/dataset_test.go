package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCSVNormalizesHeaderAndPadsRows(t *testing.T) {
	in := " Age ,SEX, Credit Amount\n22,male,1000\n35,female\n"
	d, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := []string{"age", "sex", "credit amount"}
	for i, c := range want {
		if d.Columns[i] != c {
			t.Fatalf("column %d = %q, want %q", i, d.Columns[i], c)
		}
	}
	if d.Len() != 2 {
		t.Fatalf("rows = %d, want 2", d.Len())
	}
	if len(d.Rows[1]) != 3 || d.Rows[1][2] != "" {
		t.Fatalf("short row not padded: %#v", d.Rows[1])
	}
	if !d.Has("  CREDIT amount ") {
		t.Fatalf("Has should normalize its argument")
	}
}

func TestReadCSVSniffsSemicolon(t *testing.T) {
	in := "a;b;c\n1;2;3\n"
	d, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(d.Columns) != 3 || d.Rows[0][2] != "3" {
		t.Fatalf("unexpected parse: %#v %#v", d.Columns, d.Rows)
	}
}

func TestLoadCSVMaxRowsAndName(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "credit.csv")
	if err := os.WriteFile(p, []byte("x\n1\n2\n3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	opt := DefaultOptions()
	opt.MaxRows = 2
	d, err := LoadCSV(p, opt)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if d.Name != "credit.csv" || d.Len() != 2 {
		t.Fatalf("name=%q rows=%d", d.Name, d.Len())
	}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" 3.5 ", 3.5, true},
		{"1.000,5", 1000.5, true},
		{"1,000.5", 1000.5, true},
		{"0,25", 0.25, true},
		{"1,169", 1169, true},
		{"5,951", 5951, true},
		{"1,234,567", 1234567, true},
		{"1.234.567", 1234567, true},
		{"2,500.50", 2500.5, true},
		{"1.169", 1.169, true},
		{"12%", 12, true},
		{"", 0, false},
		{"male", 0, false},
		{"NaN", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseNumeric(c.in, DefaultOptions())
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseNumeric(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestColumnOptionsSettlesLocale(t *testing.T) {
	cases := []struct {
		name string
		vals []string
		want []float64
	}{
		{"us grouping", []string{"1,169", "2,500.50", "", "800"}, []float64{1169, 2500.5, 0, 800}},
		{"eu grouping", []string{"1.169", "2.500,50", "800"}, []float64{1169, 2500.5, 800}},
		{"comma decimals", []string{"1,5", "2,25", "1,169"}, []float64{1.5, 2.25, 1.169}},
		{"grouped millions", []string{"1,234,567", "5,951"}, []float64{1234567, 5951}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			opt := ColumnOptions(c.vals, DefaultOptions())
			for i, v := range c.vals {
				if v == "" {
					continue
				}
				got, ok := ParseNumeric(v, opt)
				if !ok || got != c.want[i] {
					t.Errorf("ParseNumeric(%q) = %v,%v want %v", v, got, ok, c.want[i])
				}
			}
		})
	}
	opt := DefaultOptions()
	opt.DecimalSeparator = ','
	if got := ColumnOptions([]string{"1,169"}, opt); got.DecimalSeparator != ',' {
		t.Fatalf("explicit decimal separator overridden: %q", got.DecimalSeparator)
	}
}

func TestRenameAndNumericColumn(t *testing.T) {
	d := New([]string{"Sex", "Age"}, [][]string{{"male", "30"}, {"female", ""}})
	r := d.Rename(map[string]string{"SEX": "gender"})
	if !r.Has("gender") || r.Has("sex") {
		t.Fatalf("rename failed: %#v", r.Columns)
	}
	if d.Columns[0] != "sex" {
		t.Fatalf("rename mutated the source dataset")
	}
	if !r.IsNumericColumn("age", DefaultOptions()) {
		t.Fatalf("age should be numeric")
	}
	if r.IsNumericColumn("gender", DefaultOptions()) {
		t.Fatalf("gender should not be numeric")
	}
}
