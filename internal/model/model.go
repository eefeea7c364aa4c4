package model

import (
	"errors"
	"fmt"
)

// Classifier is a binary classifier over dense float rows.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	// PredictProba returns p(y=1) for each row.
	PredictProba(X [][]float64) []float64
	Predict(X [][]float64) []int
}

// Transformer is a preprocessing step fit on the training split and applied to both.
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) [][]float64
}

// ApprovalThreshold is the probability at or above which a row is approved.
const ApprovalThreshold = 0.5

// Threshold maps probabilities to class labels.
func Threshold(proba []float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= ApprovalThreshold {
			out[i] = 1
		}
	}
	return out
}

func checkXY(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("empty X")
	}
	if len(y) != len(X) {
		return 0, fmt.Errorf("X has %d rows but y has %d", len(X), len(y))
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return 0, fmt.Errorf("row %d has %d features, want %d", i, len(X[i]), p)
		}
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return 0, fmt.Errorf("label %d at row %d is not binary", v, i)
		}
	}
	return p, nil
}
