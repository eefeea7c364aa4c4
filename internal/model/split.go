package model

import (
	"math"
	"math/rand"
)

// TrainTestSplit permutes row indices with a seeded source and holds out
// ceil(n*testFraction) of them. The same seed always yields the same split.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest > n {
		nTest = n
	}
	if nTest < 0 {
		nTest = 0
	}
	test = append(test, indices[:nTest]...)
	train = append(train, indices[nTest:]...)
	return train, test
}

// Rows selects rows of X by index.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

// Labels selects entries of y by index.
func Labels(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// Column extracts column j of X.
func Column(X [][]float64, j int) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = row[j]
	}
	return out
}
