package model

import (
	"math/rand"
	"sort"
)

// SMOTE oversamples the minority class until both classes are the same size.
// Each synthetic row interpolates a random minority row towards one of its k
// nearest minority neighbours. Inputs are not modified; the result appends the
// synthetic rows after the originals.
func SMOTE(X [][]float64, y []int, k int, seed int64) ([][]float64, []int) {
	var byClass [2][]int
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	minority, majority := byClass[0], byClass[1]
	label := 0
	if len(minority) > len(majority) {
		minority, majority = majority, minority
		label = 1
	}
	need := len(majority) - len(minority)
	if need == 0 || len(minority) < 2 {
		return X, y
	}
	if k <= 0 {
		k = 5
	}
	if k > len(minority)-1 {
		k = len(minority) - 1
	}

	neighbours := make([][]int, len(minority))
	for a, i := range minority {
		type cand struct {
			j int
			d float64
		}
		cands := make([]cand, 0, len(minority)-1)
		for b, j := range minority {
			if a == b {
				continue
			}
			cands = append(cands, cand{b, sqDist(X[i], X[j])})
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].d < cands[q].d })
		nb := make([]int, k)
		for c := 0; c < k; c++ {
			nb[c] = cands[c].j
		}
		neighbours[a] = nb
	}

	rng := rand.New(rand.NewSource(seed))
	outX := make([][]float64, 0, len(X)+need)
	outX = append(outX, X...)
	outY := make([]int, 0, len(y)+need)
	outY = append(outY, y...)
	for s := 0; s < need; s++ {
		a := rng.Intn(len(minority))
		base := X[minority[a]]
		other := X[minority[neighbours[a][rng.Intn(k)]]]
		gap := rng.Float64()
		row := make([]float64, len(base))
		for j := range base {
			row[j] = base[j] + gap*(other[j]-base[j])
		}
		outX = append(outX, row)
		outY = append(outY, label)
	}
	return outX, outY
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for j := range a {
		d := a[j] - b[j]
		s += d * d
	}
	return s
}
