package model

import (
	"fmt"
	"sort"
	"strings"
)

// Tree depth bounds. Deeper trees stop being readable as rules.
const (
	MinTreeDepth     = 3
	MaxTreeDepth     = 5
	DefaultTreeDepth = 3
)

// ClampDepth bounds d to [MinTreeDepth, MaxTreeDepth]; 0 means the default.
func ClampDepth(d int) int {
	switch {
	case d == 0:
		return DefaultTreeDepth
	case d < MinTreeDepth:
		return MinTreeDepth
	case d > MaxTreeDepth:
		return MaxTreeDepth
	}
	return d
}

// DecisionTree is a binary CART classifier using gini impurity and
// "x <= threshold goes left" splits.
type DecisionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Root            *Node
}

// Node is a tree node. Counts holds the class counts {rejected, approved} of the
// training rows that reached it.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	Samples   int
	Counts    [2]int
	Impurity  float64
}

// Value is the fraction of approved rows at the node.
func (n *Node) Value() float64 {
	if n.Samples == 0 {
		return 0
	}
	return float64(n.Counts[1]) / float64(n.Samples)
}

// Class is the predicted class at the node, consistent with Predict.
func (n *Node) Class() int {
	if n.Value() >= ApprovalThreshold {
		return 1
	}
	return 0
}

// NewDecisionTree returns a tree with the given depth clamped to the readable range.
func NewDecisionTree(maxDepth int) *DecisionTree {
	return &DecisionTree{MaxDepth: ClampDepth(maxDepth), MinSamplesSplit: 2, MinSamplesLeaf: 1}
}

// Fit grows the tree. Features are scanned in order and thresholds ascending;
// a candidate replaces the best split only on strictly greater gain.
func (t *DecisionTree) Fit(X [][]float64, y []int) error {
	p, err := checkXY(X, y)
	if err != nil {
		return fmt.Errorf("dtree: %w", err)
	}
	if t.MinSamplesSplit < 2 {
		t.MinSamplesSplit = 2
	}
	if t.MinSamplesLeaf < 1 {
		t.MinSamplesLeaf = 1
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.Root = t.build(X, y, idx, 0, p)
	return nil
}

func (t *DecisionTree) build(X [][]float64, y []int, idx []int, depth, p int) *Node {
	node := &Node{Samples: len(idx)}
	for _, i := range idx {
		node.Counts[y[i]]++
	}
	node.Impurity = gini(node.Counts)
	if node.Counts[0] == 0 || node.Counts[1] == 0 || len(idx) < t.MinSamplesSplit || depth >= t.MaxDepth {
		node.Leaf = true
		return node
	}

	best := split{feature: -1}
	for f := 0; f < p; f++ {
		if s := t.bestSplit(X, y, idx, f, node.Impurity); s.feature >= 0 && s.gain > best.gain+1e-12 {
			best = s
		}
	}
	if best.feature < 0 || best.gain <= 0 {
		node.Leaf = true
		return node
	}
	var left, right []int
	for _, i := range idx {
		if X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = t.build(X, y, left, depth+1, p)
	node.Right = t.build(X, y, right, depth+1, p)
	return node
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type valueIndex struct {
	v float64
	i int
}

func (t *DecisionTree) bestSplit(X [][]float64, y []int, idx []int, f int, parent float64) split {
	best := split{feature: -1}
	pairs := make([]valueIndex, len(idx))
	var total [2]int
	for k, i := range idx {
		pairs[k] = valueIndex{X[i][f], i}
		total[y[i]]++
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })
	n := float64(len(pairs))
	var left [2]int
	for k := 0; k < len(pairs)-1; k++ {
		left[y[pairs[k].i]]++
		if pairs[k].v == pairs[k+1].v {
			continue
		}
		nl := k + 1
		nr := len(pairs) - nl
		if nl < t.MinSamplesLeaf || nr < t.MinSamplesLeaf {
			continue
		}
		right := [2]int{total[0] - left[0], total[1] - left[1]}
		child := (float64(nl)*gini(left) + float64(nr)*gini(right)) / n
		gain := parent - child
		if gain > best.gain+1e-12 {
			best = split{feature: f, threshold: (pairs[k].v + pairs[k+1].v) / 2, gain: gain}
		}
	}
	return best
}

func gini(c [2]int) float64 {
	n := float64(c[0] + c[1])
	if n == 0 {
		return 0
	}
	p0, p1 := float64(c[0])/n, float64(c[1])/n
	return 1 - p0*p0 - p1*p1
}

func (t *DecisionTree) leaf(x []float64) *Node {
	n := t.Root
	for n != nil && !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

// PredictProba returns the approved fraction of the leaf each row lands in.
func (t *DecisionTree) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		if n := t.leaf(x); n != nil {
			out[i] = n.Value()
		}
	}
	return out
}

func (t *DecisionTree) Predict(X [][]float64) []int { return Threshold(t.PredictProba(X)) }

// Contributions attributes a prediction to features by summing the change in
// node value at each split along the decision path. bias is the root value;
// bias plus the contributions equals the leaf value.
func (t *DecisionTree) Contributions(x []float64) (contrib []float64, bias float64) {
	contrib = make([]float64, len(x))
	n := t.Root
	if n == nil {
		return contrib, 0
	}
	bias = n.Value()
	for !n.Leaf {
		next := n.Right
		if x[n.Feature] <= n.Threshold {
			next = n.Left
		}
		contrib[n.Feature] += next.Value() - n.Value()
		n = next
	}
	return contrib, bias
}

// Depth returns the depth of the fitted tree; a single leaf has depth 0.
func (t *DecisionTree) Depth() int { return depth(t.Root) }

func depth(n *Node) int {
	if n == nil || n.Leaf {
		return 0
	}
	l, r := depth(n.Left), depth(n.Right)
	if r > l {
		l = r
	}
	return l + 1
}

// Leaves counts leaf nodes.
func (t *DecisionTree) Leaves() int { return leaves(t.Root) }

func leaves(n *Node) int {
	if n == nil {
		return 0
	}
	if n.Leaf {
		return 1
	}
	return leaves(n.Left) + leaves(n.Right)
}

// ClassNames are the display names of the two outcomes.
var ClassNames = [2]string{"Rejected", "Approved"}

// Rules renders the tree as indented text, one line per branch:
//
//	|--- duration <= 30.50
//	|   |--- class: Approved
//	|--- duration >  30.50
//	|   |--- class: Rejected
func (t *DecisionTree) Rules(names []string) string {
	var b strings.Builder
	writeRules(&b, t.Root, names, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeRules(b *strings.Builder, n *Node, names []string, level int) {
	if n == nil {
		return
	}
	indent := strings.Repeat("|   ", level) + "|--- "
	if n.Leaf {
		fmt.Fprintf(b, "%sclass: %s\n", indent, ClassNames[n.Class()])
		return
	}
	name := FeatureName(names, n.Feature)
	fmt.Fprintf(b, "%s%s <= %.2f\n", indent, name, n.Threshold)
	writeRules(b, n.Left, names, level+1)
	fmt.Fprintf(b, "%s%s >  %.2f\n", indent, name, n.Threshold)
	writeRules(b, n.Right, names, level+1)
}

// FeatureName returns names[j], or a positional name when names is short.
func FeatureName(names []string, j int) string {
	if j >= 0 && j < len(names) {
		return names[j]
	}
	return fmt.Sprintf("feature_%d", j)
}
