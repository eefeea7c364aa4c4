package encoding

import (
	"testing"

	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
)

func germanSample(t *testing.T) (*FeatureSet, *schema.Resolution) {
	t.Helper()
	d := dataset.New(
		[]string{"Age", "Sex", "Job", "Credit amount", "Duration", "Risk"},
		[][]string{
			{"22", "female", "skilled", "5951", "48", "bad"},
			{"45", "Male", "unskilled", "7882", "42", "good"},
			{"53", "male ", "skilled", "n/a", "24", "Good"},
			{"35", "female", "highly skilled", "6948", "36", "approved"},
		},
	)
	res, _, err := schema.GermanCredit.Resolve(d)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	fs, err := Fit(d, res, dataset.DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return fs, res
}

func TestFitEncodesRoles(t *testing.T) {
	fs, _ := germanSample(t)
	want := []string{"age", "gender", "job", "credit_amount", "duration"}
	if len(fs.Meta.FeatureOrder) != len(want) {
		t.Fatalf("feature order = %v", fs.Meta.FeatureOrder)
	}
	for i, f := range want {
		if fs.Meta.FeatureOrder[i] != f {
			t.Fatalf("feature %d = %s, want %s", i, fs.Meta.FeatureOrder[i], f)
		}
	}
	g := fs.Meta.ValueMapping["gender"]
	if g["male"] != 1 || g["female"] != 0 {
		t.Fatalf("gender mapping = %v", g)
	}
	job := fs.Meta.ValueMapping["job"]
	if job["skilled"] != 0 || job["unskilled"] != 1 || job["highly skilled"] != 2 {
		t.Fatalf("job codes not first-seen: %v", job)
	}
	if fs.Matrix[2][1] != 1 {
		t.Fatalf("padded male should encode as 1, got %v", fs.Matrix[2][1])
	}
	if fs.Matrix[2][3] != 0 {
		t.Fatalf("unparseable amount should be 0 at training, got %v", fs.Matrix[2][3])
	}
	wantLabels := []int{0, 1, 1, 1}
	for i, l := range wantLabels {
		if fs.Labels[i] != l {
			t.Fatalf("label %d = %d, want %d", i, fs.Labels[i], l)
		}
	}
	if fs.Meta.ColumnMapping["sex"] != "gender" || fs.Meta.ColumnMapping["credit amount"] != "credit_amount" {
		t.Fatalf("column mapping = %v", fs.Meta.ColumnMapping)
	}
	if !fs.Meta.IsContinuous("age") || fs.Meta.IsContinuous("job") {
		t.Fatalf("continuous = %v", fs.Meta.Continuous)
	}
}

func TestReplayUnseenValuesUseSentinel(t *testing.T) {
	fs, _ := germanSample(t)
	d := dataset.New(
		[]string{"age", "sex", "job", "credit amount", "duration"},
		[][]string{{"30", "nonbinary", "astronaut", "abc", "12"}},
	)
	X, missing := Replay(d, fs.Meta, dataset.DefaultOptions())
	if len(missing) > 0 {
		t.Fatalf("missing = %v", missing)
	}
	row := X[0]
	if row[1] != Sentinel || row[2] != Sentinel || row[3] != Sentinel {
		t.Fatalf("expected sentinels, got %v", row)
	}
	if row[0] != 30 || row[4] != 12 {
		t.Fatalf("numeric values not kept: %v", row)
	}
}

func TestReplayColumnOrderIndependent(t *testing.T) {
	fs, _ := germanSample(t)
	natural := dataset.New(
		[]string{"Age", "Sex", "Job", "Credit amount", "Duration"},
		[][]string{{"30", "male", "skilled", "1000", "12"}, {"41", "female", "unskilled", "2500", "24"}},
	)
	shuffled := dataset.New(
		[]string{"Duration", "gender", "Credit_Amount", "Job", "AGE"},
		[][]string{{"12", "male", "1000", "skilled", "30"}, {"24", "female", "2500", "unskilled", "41"}},
	)
	a, m1 := Replay(natural, fs.Meta, dataset.DefaultOptions())
	b, m2 := Replay(shuffled, fs.Meta, dataset.DefaultOptions())
	if len(m1) > 0 || len(m2) > 0 {
		t.Fatalf("missing: %v %v", m1, m2)
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("row %d col %d: %v != %v", i, j, a[i][j], b[i][j])
			}
		}
	}
}

func TestReplayReportsMissing(t *testing.T) {
	fs, _ := germanSample(t)
	d := dataset.New([]string{"age", "sex", "job"}, [][]string{{"30", "male", "skilled"}})
	X, missing := Replay(d, fs.Meta, dataset.DefaultOptions())
	if X != nil {
		t.Fatalf("matrix should be nil when features are missing")
	}
	if len(missing) != 2 || missing[0] != "credit_amount" || missing[1] != "duration" {
		t.Fatalf("missing = %v", missing)
	}
}

func TestDecode(t *testing.T) {
	fs, _ := germanSample(t)
	if got := fs.Meta.Decode("gender", 1); got != "male" {
		t.Fatalf("Decode gender 1 = %q", got)
	}
	if got := fs.Meta.Decode("gender", Sentinel); got != "unknown" {
		t.Fatalf("Decode sentinel = %q", got)
	}
	if got := fs.Meta.Decode("age", 22); got != "22" {
		t.Fatalf("Decode age = %q", got)
	}
}

func TestGroupedNumbersFitAndReplay(t *testing.T) {
	d := dataset.New(
		[]string{"Age", "Sex", "Job", "Credit amount", "Duration", "Risk"},
		[][]string{
			{"22", "female", "skilled", "1,169", "1,5", "bad"},
			{"45", "male", "unskilled", "5,951", "2,25", "good"},
			{"53", "male", "skilled", "2,500.50", "12", "good"},
			{"35", "female", "skilled", "1,234,567", "3,75", "bad"},
		},
	)
	res, _, err := schema.GermanCredit.Resolve(d)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	fs, err := Fit(d, res, dataset.DefaultOptions())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	wantAmount := []float64{1169, 5951, 2500.5, 1234567}
	for i, w := range wantAmount {
		if fs.Matrix[i][3] != w {
			t.Fatalf("row %d amount = %v, want %v", i, fs.Matrix[i][3], w)
		}
	}
	if fs.Matrix[1][4] != 2.25 {
		t.Fatalf("comma-decimal duration = %v", fs.Matrix[1][4])
	}
	if fs.Meta.Decimal["credit_amount"] != "." || fs.Meta.Decimal["duration"] != "," {
		t.Fatalf("decimal separators = %v", fs.Meta.Decimal)
	}

	rec := dataset.New(
		[]string{"age", "sex", "job", "credit amount", "duration"},
		[][]string{{"30", "male", "skilled", "3,000", "1,500"}},
	)
	X, missing := Replay(rec, fs.Meta, dataset.DefaultOptions())
	if len(missing) > 0 {
		t.Fatalf("missing = %v", missing)
	}
	if X[0][3] != 3000 || X[0][4] != 1.5 {
		t.Fatalf("replayed row = %v", X[0])
	}
}
