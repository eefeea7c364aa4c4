// Package analysis summarizes a training dataset before a model is fit.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/encoding"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
)

// TopValues caps the categorical values listed per column.
const TopValues = 5

// Report is a markdown-friendly description of a dataset and its schema mapping.
type Report struct {
	Name    string
	Rows    int
	Profile string
	// Roles maps canonical role to the raw column it resolved to.
	Roles    map[string]string
	Cols     []ColumnSummary
	Label    *LabelBalance
	Warnings []string
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Role    string
	Kind    string // numeric|categorical
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	Median float64
	// Categorical stats
	TopValues []ValueCount
}

// ValueCount is one categorical value and its frequency.
type ValueCount struct {
	Value string
	Count int
}

// LabelBalance counts approved and rejected outcomes.
type LabelBalance struct {
	Column   string
	Approved int
	Rejected int
}

// Rate is the approved fraction.
func (l LabelBalance) Rate() float64 {
	n := l.Approved + l.Rejected
	if n == 0 {
		return 0
	}
	return float64(l.Approved) / float64(n)
}

// Describe summarizes every column of d. When res is non-nil the canonical
// roles are attached and the label balance is computed.
func Describe(d *dataset.Dataset, res *schema.Resolution, opt dataset.Options) *Report {
	r := &Report{Name: d.Name, Rows: d.Len(), Roles: map[string]string{}}
	roleOf := map[string]string{}
	if res != nil {
		r.Profile = res.Profile.Name
		for role, raw := range res.Columns {
			r.Roles[role] = raw
			roleOf[raw] = role
		}
	}
	for _, col := range d.Columns {
		vals, _ := d.Column(col)
		c := summarize(col, vals, d.IsNumericColumn(col, opt), opt)
		c.Role = roleOf[col]
		if c.Missing > 0 && c.Role != "" {
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s has %d missing values; they encode as 0 or as their own category", col, c.Missing))
		}
		r.Cols = append(r.Cols, c)
	}
	if res != nil {
		label := res.Profile.LabelRole()
		if raw, ok := res.Columns[label.Name]; ok {
			vals, _ := d.Column(raw)
			lb := &LabelBalance{Column: raw}
			for _, v := range vals {
				if encoding.IsPositiveLabel(v) {
					lb.Approved++
				} else {
					lb.Rejected++
				}
			}
			r.Label = lb
			if lb.Approved == 0 || lb.Rejected == 0 {
				r.Warnings = append(r.Warnings, "label has a single class; training will fail")
			}
		}
	}
	return r
}

func summarize(name string, vals []string, numeric bool, opt dataset.Options) ColumnSummary {
	c := ColumnSummary{Name: name, Kind: "categorical"}
	opt = dataset.ColumnOptions(vals, opt)
	counts := map[string]int{}
	var nums []float64
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			c.Missing++
			continue
		}
		c.NonNull++
		counts[encoding.NormalizeValue(v)]++
		if numeric {
			if f, ok := dataset.ParseNumeric(v, opt); ok {
				nums = append(nums, f)
			}
		}
	}
	c.Unique = len(counts)
	if numeric && len(nums) > 0 {
		c.Kind = "numeric"
		sorted := model.Sorted(nums)
		c.Min, c.Max = sorted[0], sorted[len(sorted)-1]
		c.Median = model.Quantile(sorted, 0.5)
		c.Mean, c.Std = stat.MeanStdDev(nums, nil)
		if math.IsNaN(c.Std) {
			c.Std = 0
		}
		return c
	}
	for v, n := range counts {
		c.TopValues = append(c.TopValues, ValueCount{Value: v, Count: n})
	}
	sort.Slice(c.TopValues, func(i, j int) bool {
		if c.TopValues[i].Count != c.TopValues[j].Count {
			return c.TopValues[i].Count > c.TopValues[j].Count
		}
		return c.TopValues[i].Value < c.TopValues[j].Value
	})
	if len(c.TopValues) > TopValues {
		c.TopValues = c.TopValues[:TopValues]
	}
	return c
}

// Markdown renders the report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", len(r.Cols)))
	if r.Profile != "" {
		b.WriteString(fmt.Sprintf("Profile: %s\n", r.Profile))
	}
	b.WriteString("\n[SCHEMA]\n")
	for _, c := range r.Cols {
		missPct := 0.0
		if total := c.NonNull + c.Missing; total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		name := c.Name
		if c.Role != "" && c.Role != c.Name {
			name = fmt.Sprintf("%s -> %s", c.Name, c.Role)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, std %.4g, median %.4g", c.Min, c.Max, c.Mean, c.Std, c.Median))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", kv.Value, kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if r.Label != nil {
		b.WriteString("\n[LABEL]\n")
		b.WriteString(fmt.Sprintf("%s: approved %d, rejected %d (approval rate %.3f)\n",
			r.Label.Column, r.Label.Approved, r.Label.Rejected, r.Label.Rate()))
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range r.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}
