package encoding

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
)

// Sentinel is the value used at inference for anything that cannot be mapped.
const Sentinel = -1.0

// PositiveLabels are the case-folded label values counted as approved.
var PositiveLabels = []string{"good", "approved", "1"}

// Meta records every transform applied at training so inference can replay it.
type Meta struct {
	Profile      string   `json:"profile" yaml:"profile"`
	FeatureOrder []string `json:"feature_order" yaml:"feature_order"`
	Label        string   `json:"label" yaml:"label"`
	// ColumnMapping maps normalized raw column name to canonical role name.
	ColumnMapping    map[string]string         `json:"column_mapping" yaml:"column_mapping"`
	ColumnCandidates map[string][]string       `json:"column_candidates" yaml:"column_candidates"`
	ValueMapping     map[string]map[string]int `json:"value_mapping" yaml:"value_mapping"`
	Kinds            map[string]schema.Kind    `json:"feature_kinds" yaml:"feature_kinds"`
	Continuous       []string                  `json:"continuous_features" yaml:"continuous_features"`
	// Decimal holds the decimal separator settled per numeric feature at fit.
	Decimal map[string]string `json:"decimal_separators,omitempty" yaml:"decimal_separators,omitempty"`
}

// FeatureSet is the encoded training input.
type FeatureSet struct {
	Matrix [][]float64
	Labels []int
	Meta   Meta
}

// NormalizeValue lower-cases and trims a categorical value.
func NormalizeValue(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// IsPositiveLabel reports whether a raw label value means approved.
func IsPositiveLabel(s string) bool {
	v := NormalizeValue(s)
	for _, p := range PositiveLabels {
		if v == p {
			return true
		}
	}
	return false
}

// Fit encodes a resolved dataset. Categorical code tables are built in first-seen
// order; numeric coercion failures become 0.
func Fit(d *dataset.Dataset, res *schema.Resolution, opt dataset.Options) (*FeatureSet, error) {
	if d == nil || d.Len() == 0 {
		return nil, errors.New("encode: empty dataset")
	}
	p := res.Profile
	label := p.LabelRole()
	labelCol, ok := res.Columns[label.Name]
	if !ok {
		return nil, &schema.MissingColumnError{Role: label.Name, Candidates: label.Candidates}
	}
	meta := Meta{
		Profile:          p.Name,
		Label:            label.Name,
		ColumnMapping:    res.RawToCanonical(),
		ColumnCandidates: p.Candidates(),
		ValueMapping:     map[string]map[string]int{},
		Kinds:            map[string]schema.Kind{},
		Decimal:          map[string]string{},
	}

	var cols [][]float64
	for _, r := range p.Features() {
		raw, ok := res.Columns[r.Name]
		if !ok {
			continue
		}
		vals, _ := d.Column(raw)
		var enc []float64
		switch r.Kind {
		case schema.Indicator:
			var m map[string]int
			enc, m = indicator(vals, r.PositiveToken)
			meta.ValueMapping[r.Name] = m
		case schema.Factor:
			var m map[string]int
			enc, m = factorize(vals)
			meta.ValueMapping[r.Name] = m
		default:
			copt := dataset.ColumnOptions(vals, opt)
			meta.Decimal[r.Name] = string(copt.DecimalSeparator)
			enc = numeric(vals, copt)
		}
		if r.Continuous {
			meta.Continuous = append(meta.Continuous, r.Name)
		}
		meta.Kinds[r.Name] = r.Kind
		meta.FeatureOrder = append(meta.FeatureOrder, r.Name)
		cols = append(cols, enc)
	}
	if len(cols) == 0 {
		return nil, errors.New("encode: no feature columns resolved")
	}

	lv, _ := d.Column(labelCol)
	labels := make([]int, len(lv))
	for i, v := range lv {
		if IsPositiveLabel(v) {
			labels[i] = 1
		}
	}
	return &FeatureSet{Matrix: transpose(cols, d.Len()), Labels: labels, Meta: meta}, nil
}

// Replay reshapes an inference dataset into the training feature space. Columns
// are renamed through ColumnMapping, then resolved through ColumnCandidates.
// Unmappable values become Sentinel. It returns the canonical features that are
// still missing; the matrix is nil in that case.
func Replay(d *dataset.Dataset, meta Meta, opt dataset.Options) ([][]float64, []string) {
	rd := d.Rename(meta.ColumnMapping)
	var missing []string
	cols := make([][]float64, len(meta.FeatureOrder))
	for j, feat := range meta.FeatureOrder {
		raw := feat
		if !rd.Has(raw) {
			r, err := schema.Resolve(rd, feat, meta.ColumnCandidates[feat])
			if err != nil {
				missing = append(missing, feat)
				continue
			}
			raw = r
		}
		vals, _ := rd.Column(raw)
		cols[j] = meta.replayColumn(feat, vals, opt)
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return transpose(cols, rd.Len()), nil
}

func (m Meta) replayColumn(feat string, vals []string, opt dataset.Options) []float64 {
	out := make([]float64, len(vals))
	codes, categorical := m.ValueMapping[feat]
	if !categorical {
		opt = m.numberOptions(feat, vals, opt)
	}
	for i, v := range vals {
		if categorical {
			if c, ok := codes[NormalizeValue(v)]; ok {
				out[i] = float64(c)
			} else {
				out[i] = Sentinel
			}
			continue
		}
		if f, ok := dataset.ParseNumeric(v, opt); ok {
			out[i] = f
		} else {
			out[i] = Sentinel
		}
	}
	return out
}

// numberOptions prefers the separator recorded at fit over one guessed from
// the inference values.
func (m Meta) numberOptions(feat string, vals []string, opt dataset.Options) dataset.Options {
	if opt.DecimalSeparator != 0 {
		return opt
	}
	if d := []rune(m.Decimal[feat]); len(d) == 1 {
		opt.DecimalSeparator = d[0]
		return opt
	}
	return dataset.ColumnOptions(vals, opt)
}

// IsCategorical reports whether a feature was encoded through a code table.
func (m Meta) IsCategorical(feat string) bool {
	_, ok := m.ValueMapping[feat]
	return ok
}

// IsContinuous reports whether a feature is binned for fairness slicing.
func (m Meta) IsContinuous(feat string) bool {
	for _, c := range m.Continuous {
		if c == feat {
			return true
		}
	}
	return false
}

// Decode renders an encoded value for display. Categorical codes are mapped
// back through the value table; when several raw values share a code they are
// joined with "/".
func (m Meta) Decode(feat string, v float64) string {
	if codes, ok := m.ValueMapping[feat]; ok {
		var names []string
		for k, c := range codes {
			if float64(c) == v {
				names = append(names, k)
			}
		}
		if len(names) > 0 {
			sort.Strings(names)
			return strings.Join(names, "/")
		}
		if v == Sentinel {
			return "unknown"
		}
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Index returns the position of a feature in FeatureOrder, or -1.
func (m Meta) Index(feat string) int {
	for i, f := range m.FeatureOrder {
		if f == feat {
			return i
		}
	}
	return -1
}

func indicator(vals []string, positive string) ([]float64, map[string]int) {
	pos := NormalizeValue(positive)
	m := map[string]int{pos: 1}
	out := make([]float64, len(vals))
	for i, v := range vals {
		n := NormalizeValue(v)
		if n == pos {
			out[i] = 1
			continue
		}
		if n != "" {
			m[n] = 0
		}
	}
	return out, m
}

func factorize(vals []string) ([]float64, map[string]int) {
	m := map[string]int{}
	out := make([]float64, len(vals))
	for i, v := range vals {
		n := NormalizeValue(v)
		c, ok := m[n]
		if !ok {
			c = len(m)
			m[n] = c
		}
		out[i] = float64(c)
	}
	return out, m
}

func numeric(vals []string, opt dataset.Options) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if f, ok := dataset.ParseNumeric(v, opt); ok {
			out[i] = f
		}
	}
	return out
}

func transpose(cols [][]float64, n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		rows[i] = row
	}
	return rows
}

// Summary describes the encoded feature space in one line.
func (m Meta) Summary() string {
	return fmt.Sprintf("%s: %d features (%d categorical, %d continuous)",
		m.Profile, len(m.FeatureOrder), len(m.ValueMapping), len(m.Continuous))
}
