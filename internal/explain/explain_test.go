package explain

import (
	"bytes"
	"math"
	"testing"

	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func sample() ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < 30; i++ {
		x := []float64{float64(i), float64(i % 4), float64(30 - i)}
		X = append(X, x)
		if i > 14 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	return X, y
}

func TestLinearAttributionCentersOnBackground(t *testing.T) {
	m := &model.LogisticRegression{Weights: []float64{2, -1}, Intercept: 0.5}
	bg := [][]float64{{0, 0}, {2, 4}}
	a := Linear(m, bg, [][]float64{{1, 2}, {3, 0}}, []string{"a", "b"})
	if a.Values[0][0] != 0 || a.Values[0][1] != 0 {
		t.Fatalf("a row at the background mean should attribute 0: %v", a.Values[0])
	}
	if a.Values[1][0] != 4 || a.Values[1][1] != 2 {
		t.Fatalf("attribution = %v", a.Values[1])
	}
	imp := a.MeanAbs()
	if imp[0] != 2 || imp[1] != 1 {
		t.Fatalf("mean abs = %v", imp)
	}
}

func TestSummaryPlotIsPNG(t *testing.T) {
	X, y := sample()
	tr := model.NewDecisionTree(3)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	img, err := SummaryPlot(Tree(tr, X, []string{"age", "job", "duration"}), "Feature attribution")
	if err != nil {
		t.Fatalf("SummaryPlot: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("expected PNG payload")
	}
}

func TestTreeDiagramIsPNG(t *testing.T) {
	X, y := sample()
	tr := model.NewDecisionTree(3)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	img, err := TreeDiagram(tr, []string{"age", "job", "duration"})
	if err != nil {
		t.Fatalf("TreeDiagram: %v", err)
	}
	if !bytes.HasPrefix(img, pngMagic) {
		t.Fatalf("expected PNG payload")
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := SummaryPlot(Attributions{}, "x"); err == nil {
		t.Fatalf("empty attributions should fail")
	}
	if _, err := TreeDiagram(&model.DecisionTree{}, nil); err == nil {
		t.Fatalf("unfitted tree should fail")
	}
}

func TestLayoutCentersParents(t *testing.T) {
	X, y := sample()
	tr := model.NewDecisionTree(3)
	if err := tr.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	var nodes []placed
	next := 0.0
	layout(tr.Root, 0, &next, &nodes)
	if int(next) != tr.Leaves() {
		t.Fatalf("leaves placed = %v, want %d", next, tr.Leaves())
	}
	for _, n := range nodes {
		if n.left < 0 {
			continue
		}
		mid := (nodes[n.left].x + nodes[n.right].x) / 2
		if math.Abs(n.x-mid) > 1e-12 {
			t.Fatalf("parent not centered")
		}
	}
}
