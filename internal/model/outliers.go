package model

// Bounds is a closed clipping interval.
type Bounds struct {
	Lo, Hi float64
}

// IQRBounds computes [Q1-1.5*IQR, Q3+1.5*IQR] for each listed column.
func IQRBounds(X [][]float64, cols []int) map[int]Bounds {
	out := make(map[int]Bounds, len(cols))
	for _, j := range cols {
		s := Sorted(Column(X, j))
		q1, q3 := Quantile(s, 0.25), Quantile(s, 0.75)
		iqr := q3 - q1
		out[j] = Bounds{Lo: q1 - 1.5*iqr, Hi: q3 + 1.5*iqr}
	}
	return out
}

// Clip returns a copy of X with the bounded columns clipped.
func Clip(X [][]float64, bounds map[int]Bounds) [][]float64 {
	out := make([][]float64, len(X))
	for i, x := range X {
		row := append([]float64(nil), x...)
		for j, b := range bounds {
			if row[j] < b.Lo {
				row[j] = b.Lo
			} else if row[j] > b.Hi {
				row[j] = b.Hi
			}
		}
		out[i] = row
	}
	return out
}
