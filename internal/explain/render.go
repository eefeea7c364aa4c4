package explain

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// render draws on a fresh plot and serializes it to PNG. The plot never
// outlives the call; a panic while drawing is returned as an error.
func render(w, h vg.Length, fn func(p *plot.Plot) error) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("render: %v", r)
		}
	}()
	p := plot.New()
	if err := fn(p); err != nil {
		return nil, err
	}
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	lowColor  = color.RGBA{R: 30, G: 136, B: 229, A: 255}
	highColor = color.RGBA{R: 255, G: 13, B: 87, A: 255}
)

// SummaryPlot draws one row of points per feature, most important on top. Each
// point is a row's contribution, colored from low (blue) to high (red) feature value.
func SummaryPlot(a Attributions, title string) ([]byte, error) {
	if len(a.Features) == 0 || len(a.Values) == 0 {
		return nil, errors.New("summary plot: no attributions")
	}
	imp := a.MeanAbs()
	order := make([]int, len(a.Features))
	for i := range order {
		order[i] = i
	}
	// ascending so that the largest lands on the top row
	sort.SliceStable(order, func(i, j int) bool { return imp[order[i]] < imp[order[j]] })

	height := vg.Length(1.2+0.45*float64(len(order))) * vg.Inch
	return render(7*vg.Inch, height, func(p *plot.Plot) error {
		p.Title.Text = title
		p.X.Label.Text = "contribution to model output"
		names := make([]string, len(order))
		for row, j := range order {
			names[row] = a.Features[j]
			pts := make(plotter.XYs, len(a.Values))
			shade := make([]float64, len(a.Values))
			lo, hi := columnRange(a.Inputs, j)
			for i, vals := range a.Values {
				pts[i].X = finite(vals[j])
				pts[i].Y = float64(row) + jitter(i)
				shade[i] = 0.5
				if hi > lo {
					shade[i] = (a.Inputs[i][j] - lo) / (hi - lo)
				}
			}
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("summary plot: %w", err)
			}
			s.GlyphStyleFunc = func(i int) draw.GlyphStyle {
				return draw.GlyphStyle{Color: blend(shade[i]), Radius: vg.Points(2), Shape: draw.CircleGlyph{}}
			}
			p.Add(s)
		}
		p.NominalY(names...)
		return nil
	})
}

// TreeDiagram draws the fitted tree top-down: split nodes show their test,
// leaves show the predicted class and the approved/total counts.
func TreeDiagram(t *model.DecisionTree, names []string) ([]byte, error) {
	if t == nil || t.Root == nil {
		return nil, errors.New("tree diagram: tree not fitted")
	}
	var nodes []placed
	next := 0.0
	layout(t.Root, 0, &next, &nodes)
	width := vg.Length(math.Max(6, 1.6*float64(t.Leaves()))) * vg.Inch
	height := vg.Length(1.5+1.2*float64(t.Depth()+1)) * vg.Inch
	return render(width, height, func(p *plot.Plot) error {
		p.Title.Text = "Decision tree"
		p.HideAxes()
		for _, n := range nodes {
			for _, ci := range []int{n.left, n.right} {
				if ci < 0 {
					continue
				}
				c := nodes[ci]
				l, err := plotter.NewLine(plotter.XYs{{X: n.x, Y: n.y}, {X: c.x, Y: c.y}})
				if err != nil {
					return fmt.Errorf("tree diagram: %w", err)
				}
				l.Color = color.Gray{Y: 120}
				l.LineStyle.Width = vg.Points(1)
				p.Add(l)
			}
		}
		pts := make(plotter.XYs, len(nodes))
		labels := make([]string, len(nodes))
		for i, n := range nodes {
			pts[i] = plotter.XY{X: n.x, Y: n.y}
			labels[i] = nodeLabel(n.node, names)
		}
		boxes, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("tree diagram: %w", err)
		}
		boxes.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			return draw.GlyphStyle{Color: blend(nodes[i].node.Value()), Radius: vg.Points(6), Shape: draw.BoxGlyph{}}
		}
		p.Add(boxes)
		lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return fmt.Errorf("tree diagram: %w", err)
		}
		lbl.Offset = vg.Point{X: vg.Points(8), Y: vg.Points(-3)}
		p.Add(lbl)
		p.X.Min, p.X.Max = -0.5, next-0.5
		p.Y.Min, p.Y.Max = -float64(t.Depth())-0.5, 0.5
		return nil
	})
}

type placed struct {
	node *model.Node
	x, y float64
	// children as indices into the layout; -1 for leaves
	left, right int
}

// layout places leaves left to right at unit spacing and centers each split
// node over its children. It returns the index of n in out.
func layout(n *model.Node, depth int, next *float64, out *[]placed) int {
	idx := len(*out)
	*out = append(*out, placed{node: n, y: -float64(depth), left: -1, right: -1})
	if n.Leaf {
		(*out)[idx].x = *next
		*next++
		return idx
	}
	l := layout(n.Left, depth+1, next, out)
	r := layout(n.Right, depth+1, next, out)
	(*out)[idx].x = ((*out)[l].x + (*out)[r].x) / 2
	(*out)[idx].left, (*out)[idx].right = l, r
	return idx
}

func nodeLabel(n *model.Node, names []string) string {
	if n.Leaf {
		return fmt.Sprintf("%s %d/%d", model.ClassNames[n.Class()], n.Counts[1], n.Samples)
	}
	return fmt.Sprintf("%s <= %.2f", model.FeatureName(names, n.Feature), n.Threshold)
}

func columnRange(X [][]float64, j int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range X {
		lo = math.Min(lo, row[j])
		hi = math.Max(hi, row[j])
	}
	return lo, hi
}

func blend(t float64) color.Color {
	t = math.Max(0, math.Min(1, t))
	mix := func(a, b uint8) uint8 { return uint8(float64(a) + t*(float64(b)-float64(a))) }
	return color.RGBA{R: mix(lowColor.R, highColor.R), G: mix(lowColor.G, highColor.G), B: mix(lowColor.B, highColor.B), A: 255}
}

// jitter spreads points vertically within a row, deterministically.
func jitter(i int) float64 {
	f := math.Mod(float64(i)*0.6180339887, 1)
	return (f - 0.5) * 0.5
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
