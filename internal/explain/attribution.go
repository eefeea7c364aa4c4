package explain

import (
	"math"

	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// Attributions holds per-row feature contributions to a prediction.
type Attributions struct {
	Features []string
	// Values[i][j] is the contribution of feature j to row i.
	Values [][]float64
	// Inputs are the feature values the contributions were computed on.
	Inputs [][]float64
}

// Linear attributes logistic scores exactly: w_j * (x_j - mean_j), with the
// mean taken over the background rows.
func Linear(m *model.LogisticRegression, background, X [][]float64, names []string) Attributions {
	p := len(m.Weights)
	mean := make([]float64, p)
	for _, row := range background {
		for j := 0; j < p; j++ {
			mean[j] += row[j]
		}
	}
	if len(background) > 0 {
		for j := range mean {
			mean[j] /= float64(len(background))
		}
	}
	vals := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, p)
		for j := 0; j < p; j++ {
			row[j] = m.Weights[j] * (x[j] - mean[j])
		}
		vals[i] = row
	}
	return Attributions{Features: names, Values: vals, Inputs: X}
}

// Tree attributes tree probabilities along each row's decision path.
func Tree(t *model.DecisionTree, X [][]float64, names []string) Attributions {
	vals := make([][]float64, len(X))
	for i, x := range X {
		vals[i], _ = t.Contributions(x)
	}
	return Attributions{Features: names, Values: vals, Inputs: X}
}

// MeanAbs is the mean absolute contribution per feature.
func (a Attributions) MeanAbs() []float64 {
	out := make([]float64, len(a.Features))
	if len(a.Values) == 0 {
		return out
	}
	for _, row := range a.Values {
		for j := range out {
			if j < len(row) {
				out[j] += math.Abs(row[j])
			}
		}
	}
	for j := range out {
		out[j] /= float64(len(a.Values))
	}
	return out
}
