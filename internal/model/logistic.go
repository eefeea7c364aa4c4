package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an L2-regularised binary logistic model fit by Newton's
// method (iteratively reweighted least squares). The intercept is not penalised.
type LogisticRegression struct {
	Weights   []float64
	Intercept float64
	// C is the inverse regularisation strength.
	C       float64
	MaxIter int
	Tol     float64
	// Iterations is the number of Newton steps taken by the last Fit.
	Iterations int
}

// NewLogisticRegression returns a model with C=1, 100 iterations and tol 1e-8.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, MaxIter: 100, Tol: 1e-8}
}

// Fit minimises log-loss + ||w||²/(2C).
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return fmt.Errorf("logistic: %w", err)
	}
	if m.C <= 0 {
		m.C = 1
	}
	if m.MaxIter <= 0 {
		m.MaxIter = 100
	}
	lambda := 1 / m.C
	d := p + 1 // last coordinate is the intercept
	beta := make([]float64, d)
	grad := make([]float64, d)
	hess := make([]float64, d*d)

	m.Iterations = 0
	for it := 0; it < m.MaxIter; it++ {
		for i := range grad {
			grad[i] = 0
		}
		for i := range hess {
			hess[i] = 0
		}
		for i, x := range X {
			z := beta[p]
			for j, v := range x {
				z += beta[j] * v
			}
			pr := sigmoid(z)
			r := pr - float64(y[i])
			w := pr * (1 - pr)
			for a := 0; a < d; a++ {
				xa := feature(x, a, p)
				grad[a] += r * xa
				for b := a; b < d; b++ {
					hess[a*d+b] += w * xa * feature(x, b, p)
				}
			}
		}
		for j := 0; j < p; j++ {
			grad[j] += lambda * beta[j]
			hess[j*d+j] += lambda
		}
		hess[p*d+p] += 1e-10
		for a := 0; a < d; a++ {
			for b := 0; b < a; b++ {
				hess[a*d+b] = hess[b*d+a]
			}
		}

		step, err := solveSym(d, hess, grad)
		if err != nil {
			return fmt.Errorf("logistic: newton step %d: %w", it+1, err)
		}
		// Halve the step until the objective stops increasing.
		prev := objective(X, y, beta, lambda)
		next := make([]float64, d)
		scale := 1.0
		for k := 0; k < 30; k++ {
			for i := range beta {
				next[i] = beta[i] - scale*step[i]
			}
			if objective(X, y, next, lambda) <= prev+1e-12 {
				break
			}
			scale /= 2
		}
		maxStep := 0.0
		for i := range beta {
			if a := math.Abs(beta[i] - next[i]); a > maxStep {
				maxStep = a
			}
			beta[i] = next[i]
		}
		m.Iterations = it + 1
		if maxStep < m.Tol {
			break
		}
	}
	m.Weights = beta[:p]
	m.Intercept = beta[p]
	return nil
}

func objective(X [][]float64, y []int, beta []float64, lambda float64) float64 {
	p := len(beta) - 1
	loss := 0.0
	for i, x := range X {
		z := beta[p]
		for j, v := range x {
			z += beta[j] * v
		}
		// log(1+e^z) - y*z, computed without overflow
		if z > 0 {
			loss += z + math.Log1p(math.Exp(-z))
		} else {
			loss += math.Log1p(math.Exp(z))
		}
		loss -= float64(y[i]) * z
	}
	for j := 0; j < p; j++ {
		loss += 0.5 * lambda * beta[j] * beta[j]
	}
	return loss
}

func feature(x []float64, a, p int) float64 {
	if a == p {
		return 1
	}
	return x[a]
}

func solveSym(d int, h, g []float64) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(mat.NewSymDense(d, h)); !ok {
		return nil, errors.New("hessian is not positive definite")
	}
	var step mat.VecDense
	if err := chol.SolveVecTo(&step, mat.NewVecDense(d, g)); err != nil {
		return nil, err
	}
	out := make([]float64, d)
	for i := range out {
		out[i] = step.AtVec(i)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Decision returns the linear score w·x + b.
func (m *LogisticRegression) Decision(x []float64) float64 {
	z := m.Intercept
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return z
}

func (m *LogisticRegression) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(m.Decision(x))
	}
	return out
}

func (m *LogisticRegression) Predict(X [][]float64) []int { return Threshold(m.PredictProba(X)) }

// Coefficient is one feature's weight and the sign of its influence.
type Coefficient struct {
	Feature     string  `json:"feature" yaml:"feature"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
	Influence   int     `json:"influence" yaml:"influence"`
}

// Coefficients pairs weights with feature names in feature order.
func (m *LogisticRegression) Coefficients(names []string) []Coefficient {
	out := make([]Coefficient, len(m.Weights))
	for j, w := range m.Weights {
		name := fmt.Sprintf("x%d", j)
		if j < len(names) {
			name = names[j]
		}
		out[j] = Coefficient{Feature: name, Coefficient: w, Influence: sign(w)}
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Equation renders "logit(p) = (c * feature) + ... + (intercept)" with three decimals.
func (m *LogisticRegression) Equation(names []string) string {
	terms := make([]string, 0, len(m.Weights)+1)
	for _, c := range m.Coefficients(names) {
		terms = append(terms, fmt.Sprintf("(%.3f * %s)", c.Coefficient, c.Feature))
	}
	terms = append(terms, fmt.Sprintf("(%.3f)", m.Intercept))
	return "logit(p) = " + strings.Join(terms, " + ")
}

// DecisionLogic describes which features push towards approval and rejection,
// strongest first.
func (m *LogisticRegression) DecisionLogic(names []string) string {
	coefs := m.Coefficients(names)
	sort.SliceStable(coefs, func(i, j int) bool {
		return math.Abs(coefs[i].Coefficient) > math.Abs(coefs[j].Coefficient)
	})
	var pos, neg []string
	for _, c := range coefs {
		switch c.Influence {
		case 1:
			pos = append(pos, fmt.Sprintf("%s (%+.3f)", c.Feature, c.Coefficient))
		case -1:
			neg = append(neg, fmt.Sprintf("%s (%+.3f)", c.Feature, c.Coefficient))
		}
	}
	var b strings.Builder
	b.WriteString("Logistic regression on standardized features. ")
	b.WriteString("Higher values increase approval odds: ")
	b.WriteString(listOrNone(pos))
	b.WriteString(". Higher values decrease approval odds: ")
	b.WriteString(listOrNone(neg))
	b.WriteString(".")
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
