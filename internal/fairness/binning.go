package fairness

import (
	"fmt"

	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// Binning methods, in fallback order.
const (
	BinNone       = "none"
	BinQuartile   = "quartile"
	BinEqualWidth = "equal_width"
	BinRaw        = "raw"
)

// Bins is the discretization of a continuous attribute.
type Bins struct {
	Method string
	Edges  []float64
	// Index holds the 1-based bin of each value.
	Index []float64
}

// Label names bin k as q1..q4 or w1..w4.
func (b Bins) Label(k float64) string {
	prefix := "q"
	if b.Method == BinEqualWidth {
		prefix = "w"
	}
	return fmt.Sprintf("%s%d", prefix, int(k))
}

// Bin discretizes values into quartiles. When duplicate quantile edges leave
// fewer than four bins it falls back to four equal-width bins, and when all
// values are equal it keeps the raw values.
func Bin(values []float64) Bins {
	if len(values) == 0 {
		return Bins{Method: BinRaw}
	}
	sorted := model.Sorted(values)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return Bins{Method: BinRaw}
	}
	edges := []float64{lo}
	for _, q := range []float64{0.25, 0.5, 0.75, 1} {
		e := model.Quantile(sorted, q)
		if e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	method := BinQuartile
	if len(edges) < 5 {
		method = BinEqualWidth
		w := (hi - lo) / 4
		edges = []float64{lo, lo + w, lo + 2*w, lo + 3*w, hi}
	}
	idx := make([]float64, len(values))
	for i, v := range values {
		idx[i] = float64(assign(edges, v))
	}
	return Bins{Method: method, Edges: edges, Index: idx}
}

// assign returns the right-closed bin (edges[k-1], edges[k]] holding v; the
// first bin also includes its lower edge.
func assign(edges []float64, v float64) int {
	for k := 1; k < len(edges)-1; k++ {
		if v <= edges[k] {
			return k
		}
	}
	return len(edges) - 1
}
