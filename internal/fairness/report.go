package fairness

import (
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
)

// MaxSensitiveDistinct is the largest distinct-value count at which a numeric
// column is still considered a sensitive attribute candidate.
const MaxSensitiveDistinct = 15

// DetectSensitive returns, in order, the features whose raw column is
// non-numeric or holds at most MaxSensitiveDistinct distinct values. columns
// maps feature name to raw column.
func DetectSensitive(d *dataset.Dataset, order []string, columns map[string]string, opt dataset.Options) []string {
	var out []string
	for _, feat := range order {
		raw, ok := columns[feat]
		if !ok {
			continue
		}
		if !d.IsNumericColumn(raw, opt) {
			out = append(out, feat)
			continue
		}
		vals, _ := d.Column(raw)
		copt := dataset.ColumnOptions(vals, opt)
		distinct := map[float64]struct{}{}
		for _, v := range vals {
			if f, ok := dataset.ParseNumeric(v, copt); ok {
				distinct[f] = struct{}{}
			}
		}
		if len(distinct) <= MaxSensitiveDistinct {
			out = append(out, feat)
		}
	}
	return out
}

// Report is the fairness evaluation of a model on its held-out split.
type Report struct {
	// PrimaryAttribute is the axis the bias flag is computed on.
	PrimaryAttribute string `json:"primary_fairness_axis" yaml:"primary_fairness_axis"`
	// Selection rates and accuracies per group of the primary axis.
	SelectionRates map[string]float64 `json:"selection_rates" yaml:"selection_rates"`
	Accuracies     map[string]float64 `json:"accuracies" yaml:"accuracies"`
	// PrimarySelectionRateGap is the primary slice's selection-rate gap.
	PrimarySelectionRateGap     float64          `json:"selection_rate_gap" yaml:"selection_rate_gap"`
	DemographicParityDifference float64          `json:"demographic_parity_difference" yaml:"demographic_parity_difference"`
	StatisticalParityRatio      *float64         `json:"statistical_parity_ratio" yaml:"statistical_parity_ratio"`
	BiasFlag                    bool             `json:"bias_flag" yaml:"bias_flag"`
	BiasThreshold               float64          `json:"bias_threshold" yaml:"bias_threshold"`
	SensitiveFeatures           []string         `json:"sensitive_features" yaml:"sensitive_features"`
	Slices                      map[string]Slice `json:"fairness_slices" yaml:"fairness_slices"`
}

// Evaluate slices every attribute and derives the primary-axis summary. When
// primary is empty or not among attrs, the first sensitive attribute is used,
// then the first attribute.
func Evaluate(attrs []Attribute, primary string, sensitive []string, yTrue, yPred []int, threshold float64) Report {
	r := Report{
		BiasThreshold:     threshold,
		SensitiveFeatures: sensitive,
		Slices:            make(map[string]Slice, len(attrs)),
		SelectionRates:    map[string]float64{},
		Accuracies:        map[string]float64{},
	}
	for _, a := range attrs {
		r.Slices[a.Name] = SliceAttribute(a, yTrue, yPred)
	}
	r.PrimaryAttribute = pickPrimary(attrs, primary, sensitive)
	if p, ok := r.Slices[r.PrimaryAttribute]; ok {
		r.SelectionRates = p.SelectionRates()
		r.Accuracies = p.Accuracies()
		r.PrimarySelectionRateGap = p.SelectionRateGap
		r.DemographicParityDifference = p.DemographicParityDifference
		r.StatisticalParityRatio = p.StatisticalParityRatio
	}
	r.BiasFlag = BiasFlag(r.PrimarySelectionRateGap, threshold)
	return r
}

func pickPrimary(attrs []Attribute, primary string, sensitive []string) string {
	has := func(name string) bool {
		for _, a := range attrs {
			if a.Name == name {
				return true
			}
		}
		return false
	}
	if primary != "" && has(primary) {
		return primary
	}
	for _, s := range sensitive {
		if has(s) {
			return s
		}
	}
	if len(attrs) > 0 {
		return attrs[0].Name
	}
	return ""
}
