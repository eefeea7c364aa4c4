package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column and scales it to unit population variance.
// Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return nil
	}
	r, c := len(X), len(X[0])
	s.Mean = make([]float64, c)
	s.Std = make([]float64, c)
	for j := 0; j < c; j++ {
		mean, variance := stat.MeanVariance(Column(X, j), nil)
		s.Mean[j] = mean
		if r < 2 || math.IsNaN(variance) {
			s.Std[j] = 1
			continue
		}
		std := math.Sqrt(variance * float64(r-1) / float64(r))
		if std == 0 {
			std = 1
		}
		s.Std[j] = std
	}
	return nil
}

// Transform returns a scaled copy. An unfitted scaler returns X unchanged.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	if s == nil || len(s.Mean) == 0 {
		return X
	}
	Y := make([][]float64, len(X))
	for i, x := range X {
		row := make([]float64, len(x))
		for j, v := range x {
			row[j] = (v - s.Mean[j]) / s.Std[j]
		}
		Y[i] = row
	}
	return Y
}

func (s *StandardScaler) FitTransform(X [][]float64) [][]float64 { _ = s.Fit(X); return s.Transform(X) }
