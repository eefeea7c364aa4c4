package model

import (
	"bytes"
	"encoding/gob"
	"math"
	"strings"
	"testing"
)

func TestTrainTestSplitDeterministic(t *testing.T) {
	tr1, te1 := TrainTestSplit(101, 0.2, 42)
	tr2, te2 := TrainTestSplit(101, 0.2, 42)
	if len(te1) != 21 || len(tr1) != 80 {
		t.Fatalf("sizes train=%d test=%d, want 80/21", len(tr1), len(te1))
	}
	for i := range te1 {
		if te1[i] != te2[i] {
			t.Fatalf("split not reproducible at %d", i)
		}
	}
	seen := map[int]bool{}
	for _, i := range append(append([]int{}, tr1...), te1...) {
		if seen[i] {
			t.Fatalf("index %d appears twice", i)
		}
		seen[i] = true
	}
	if len(tr2) != len(tr1) {
		t.Fatalf("train sizes differ")
	}
	_, te3 := TrainTestSplit(101, 0.2, 7)
	same := true
	for i := range te1 {
		if te1[i] != te3[i] {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds should give different splits")
	}
}

func TestStandardScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {3, 5}, {5, 5}}
	s := NewStandardScaler()
	Y := s.FitTransform(X)
	if s.Mean[0] != 3 || math.Abs(s.Std[0]-math.Sqrt(8.0/3.0)) > 1e-12 {
		t.Fatalf("mean/std = %v/%v", s.Mean, s.Std)
	}
	if s.Std[1] != 1 {
		t.Fatalf("constant column should keep scale 1, got %v", s.Std[1])
	}
	if Y[1][0] != 0 || Y[0][1] != 0 {
		t.Fatalf("unexpected transform %v", Y)
	}
	if X[0][0] != 1 {
		t.Fatalf("Transform must not modify its input")
	}
}

func separable() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < 40; i++ {
		v := float64(i) / 2
		X = append(X, []float64{v, float64(i % 3)})
		if v > 10 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return X, y
}

func TestLogisticRegressionLearnsDirection(t *testing.T) {
	X, y := separable()
	X = NewStandardScaler().FitTransform(X)
	m := NewLogisticRegression()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if m.Weights[0] <= 0 {
		t.Fatalf("weight on the informative feature should be positive: %v", m.Weights)
	}
	if acc := Accuracy(y, m.Predict(X)); acc < 0.9 {
		t.Fatalf("training accuracy %.2f too low", acc)
	}
	for _, p := range m.PredictProba(X) {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Fatalf("probability out of range: %v", p)
		}
	}
	eq := m.Equation([]string{"income", "job"})
	if !strings.HasPrefix(eq, "logit(p) = (") || !strings.Contains(eq, " * income)") {
		t.Fatalf("equation = %q", eq)
	}
	coefs := m.Coefficients([]string{"income", "job"})
	if coefs[0].Feature != "income" || coefs[0].Influence != 1 {
		t.Fatalf("coefficients = %+v", coefs)
	}
	if !strings.Contains(m.DecisionLogic([]string{"income", "job"}), "increase approval odds: income") {
		t.Fatalf("decision logic = %q", m.DecisionLogic([]string{"income", "job"}))
	}
}

func TestLogisticRejectsBadInput(t *testing.T) {
	m := NewLogisticRegression()
	if err := m.Fit(nil, nil); err == nil {
		t.Fatalf("expected error on empty input")
	}
	if err := m.Fit([][]float64{{1}, {2}}, []int{0, 2}); err == nil {
		t.Fatalf("expected error on non-binary label")
	}
}

func TestDecisionTreeRulesAndDepth(t *testing.T) {
	X, y := separable()
	tr := NewDecisionTree(10)
	if tr.MaxDepth != MaxTreeDepth {
		t.Fatalf("depth should clamp to %d, got %d", MaxTreeDepth, tr.MaxDepth)
	}
	tr = NewDecisionTree(0)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if tr.Depth() > DefaultTreeDepth || tr.Depth() < 1 {
		t.Fatalf("depth = %d", tr.Depth())
	}
	if acc := Accuracy(y, tr.Predict(X)); acc != 1 {
		t.Fatalf("a threshold split should fit exactly, acc=%.2f", acc)
	}
	rules := tr.Rules([]string{"income", "job"})
	want := "|--- income <= 10.25\n|   |--- class: Rejected\n|--- income >  10.25\n|   |--- class: Approved"
	if rules != want {
		t.Fatalf("rules:\n%s\nwant:\n%s", rules, want)
	}
}

func TestTreeContributionsSumToLeaf(t *testing.T) {
	X, y := separable()
	tr := NewDecisionTree(3)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i, x := range X {
		c, bias := tr.Contributions(x)
		sum := bias
		for _, v := range c {
			sum += v
		}
		if p := tr.PredictProba([][]float64{x})[0]; math.Abs(sum-p) > 1e-12 {
			t.Fatalf("row %d: bias+contrib=%v, proba=%v", i, sum, p)
		}
	}
}

func TestModelsGobRoundTrip(t *testing.T) {
	X, y := separable()
	tr := NewDecisionTree(3)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tr); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var back DecisionTree
	if err := gob.NewDecoder(&buf).Decode(&back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	a, b := tr.PredictProba(X), back.PredictProba(X)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d differs after round trip", i)
		}
	}
}

func TestSMOTEBalancesClasses(t *testing.T) {
	X := [][]float64{{0, 0}, {1, 1}, {2, 2}, {10, 10}, {11, 11}, {12, 12}, {13, 13}, {14, 14}}
	y := []int{1, 1, 1, 0, 0, 0, 0, 0}
	X2, y2 := SMOTE(X, y, 5, 42)
	var counts [2]int
	for _, v := range y2 {
		counts[v]++
	}
	if counts[0] != counts[1] || len(X2) != 10 {
		t.Fatalf("counts = %v rows=%d", counts, len(X2))
	}
	for _, row := range X2[8:] {
		if row[0] < 0 || row[0] > 2 {
			t.Fatalf("synthetic row outside minority hull: %v", row)
		}
	}
	X3, _ := SMOTE(X, y, 5, 42)
	for i := range X2 {
		if X2[i][0] != X3[i][0] {
			t.Fatalf("SMOTE not deterministic for a fixed seed")
		}
	}
	if len(X) != 8 {
		t.Fatalf("input modified")
	}
}

func TestIQRClip(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}, {100}}
	b := IQRBounds(X, []int{0})
	if b[0].Lo != -1 || b[0].Hi != 7 {
		t.Fatalf("bounds = %+v", b[0])
	}
	out := Clip(X, b)
	if out[4][0] != 7 || X[4][0] != 100 {
		t.Fatalf("clip = %v (input %v)", out[4][0], X[4][0])
	}
}

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	if q := Quantile(s, 0.25); q != 1.75 {
		t.Fatalf("q25 = %v", q)
	}
	if q := Quantile(s, 0.5); q != 2.5 {
		t.Fatalf("q50 = %v", q)
	}
}
