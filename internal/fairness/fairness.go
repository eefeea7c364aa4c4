package fairness

import (
	"math"
	"sort"
	"strconv"
)

// DefaultBiasThreshold is the selection-rate gap above which a model is flagged.
const DefaultBiasThreshold = 0.15

// biasTolerance absorbs float noise when a gap equals the threshold.
const biasTolerance = 1e-9

// BiasFlag reports whether gap strictly exceeds threshold.
func BiasFlag(gap, threshold float64) bool { return gap-threshold > biasTolerance }

// GroupStats are the confusion statistics of one group. Rates are nil when
// their denominator is zero.
type GroupStats struct {
	Group         string   `json:"group" yaml:"group"`
	Count         int      `json:"count" yaml:"count"`
	SelectionRate float64  `json:"selection_rate" yaml:"selection_rate"`
	Accuracy      float64  `json:"accuracy" yaml:"accuracy"`
	TP            int      `json:"tp" yaml:"tp"`
	TN            int      `json:"tn" yaml:"tn"`
	FP            int      `json:"fp" yaml:"fp"`
	FN            int      `json:"fn" yaml:"fn"`
	TPR           *float64 `json:"tpr" yaml:"tpr"`
	FPR           *float64 `json:"fpr" yaml:"fpr"`
	TNR           *float64 `json:"tnr" yaml:"tnr"`
	FNR           *float64 `json:"fnr" yaml:"fnr"`
	Precision     *float64 `json:"precision" yaml:"precision"`
	NPV           *float64 `json:"npv" yaml:"npv"`
	FDR           *float64 `json:"fdr" yaml:"fdr"`
	FOR           *float64 `json:"for" yaml:"for"`
}

// Confusion computes group statistics from aligned true and predicted labels.
func Confusion(group string, yTrue, yPred []int) GroupStats {
	g := GroupStats{Group: group, Count: len(yTrue)}
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			g.TP++
		case yTrue[i] == 0 && yPred[i] == 0:
			g.TN++
		case yTrue[i] == 0 && yPred[i] == 1:
			g.FP++
		default:
			g.FN++
		}
	}
	if g.Count > 0 {
		g.SelectionRate = float64(g.TP+g.FP) / float64(g.Count)
		g.Accuracy = float64(g.TP+g.TN) / float64(g.Count)
	}
	g.TPR = ratio(g.TP, g.TP+g.FN)
	g.FPR = ratio(g.FP, g.FP+g.TN)
	g.TNR = ratio(g.TN, g.TN+g.FP)
	g.FNR = ratio(g.FN, g.FN+g.TP)
	g.Precision = ratio(g.TP, g.TP+g.FP)
	g.NPV = ratio(g.TN, g.TN+g.FN)
	g.FDR = ratio(g.FP, g.FP+g.TP)
	g.FOR = ratio(g.FN, g.FN+g.TN)
	return g
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// Slice is the fairness breakdown of one attribute.
type Slice struct {
	Attribute string       `json:"attribute" yaml:"attribute"`
	Binning   string       `json:"binning" yaml:"binning"`
	Edges     []float64    `json:"edges,omitempty" yaml:"edges,omitempty"`
	Groups    []GroupStats `json:"groups" yaml:"groups"`
	// SelectionRateGap is max minus min selection rate within this slice.
	SelectionRateGap            float64  `json:"selection_rate_gap" yaml:"selection_rate_gap"`
	DemographicParityDifference float64  `json:"demographic_parity_difference" yaml:"demographic_parity_difference"`
	StatisticalParityRatio      *float64 `json:"statistical_parity_ratio" yaml:"statistical_parity_ratio"`
	EqualOpportunityDifference  float64  `json:"equal_opportunity_difference" yaml:"equal_opportunity_difference"`
	AverageOddsDifference       float64  `json:"average_odds_difference" yaml:"average_odds_difference"`
	// Degenerate is set when fewer than two groups are present.
	Degenerate bool `json:"degenerate" yaml:"degenerate"`
}

// Group returns the statistics of the named group.
func (s Slice) Group(name string) (GroupStats, bool) {
	for _, g := range s.Groups {
		if g.Group == name {
			return g, true
		}
	}
	return GroupStats{}, false
}

// SelectionRates maps group name to selection rate.
func (s Slice) SelectionRates() map[string]float64 {
	out := make(map[string]float64, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Group] = g.SelectionRate
	}
	return out
}

// Accuracies maps group name to accuracy.
func (s Slice) Accuracies() map[string]float64 {
	out := make(map[string]float64, len(s.Groups))
	for _, g := range s.Groups {
		out[g.Group] = g.Accuracy
	}
	return out
}

// Summarize computes the cross-group metrics from a slice's groups.
func Summarize(s *Slice) {
	s.Degenerate = len(s.Groups) < 2
	rates := make([]*float64, len(s.Groups))
	var tprs, fprs []*float64
	for i := range s.Groups {
		r := s.Groups[i].SelectionRate
		rates[i] = &r
		tprs = append(tprs, s.Groups[i].TPR)
		fprs = append(fprs, s.Groups[i].FPR)
	}
	s.SelectionRateGap = spread(rates)
	s.DemographicParityDifference = s.SelectionRateGap
	s.StatisticalParityRatio = nil
	if !s.Degenerate {
		lo, hi := bounds(rates)
		if hi > 0 {
			v := lo / hi
			s.StatisticalParityRatio = &v
		}
	}
	s.EqualOpportunityDifference = spread(tprs)
	s.AverageOddsDifference = (spread(tprs) + spread(fprs)) / 2
}

// spread is max minus min over defined values, 0 with fewer than two.
func spread(vals []*float64) float64 {
	n := 0
	for _, v := range vals {
		if v != nil {
			n++
		}
	}
	if n < 2 {
		return 0
	}
	lo, hi := bounds(vals)
	return hi - lo
}

func bounds(vals []*float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if v == nil {
			continue
		}
		lo = math.Min(lo, *v)
		hi = math.Max(hi, *v)
	}
	return lo, hi
}

// Attribute is one sensitive attribute observed on the evaluation rows.
type Attribute struct {
	Name string
	// Values has one entry per evaluation row.
	Values     []float64
	Continuous bool
	// Label renders a raw value as a group name; nil formats the number.
	Label func(float64) string
}

// SliceAttribute partitions evaluation rows by attribute and computes a Slice.
// Continuous attributes are binned first. Groups are ordered by bin or by value.
func SliceAttribute(a Attribute, yTrue, yPred []int) Slice {
	s := Slice{Attribute: a.Name, Binning: BinNone}
	keys := a.Values
	label := a.Label
	if label == nil {
		label = formatValue
	}
	if a.Continuous {
		b := Bin(a.Values)
		s.Binning, s.Edges = b.Method, b.Edges
		if b.Method != BinRaw {
			keys = b.Index
			label = b.Label
		}
	}

	rows := map[float64][]int{}
	var order []float64
	for i, k := range keys {
		if _, ok := rows[k]; !ok {
			order = append(order, k)
		}
		rows[k] = append(rows[k], i)
	}
	sort.Float64s(order)
	for _, k := range order {
		idx := rows[k]
		t := make([]int, len(idx))
		p := make([]int, len(idx))
		for j, i := range idx {
			t[j], p[j] = yTrue[i], yPred[i]
		}
		s.Groups = append(s.Groups, Confusion(label(k), t, p))
	}
	Summarize(&s)
	return s
}

func formatValue(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
