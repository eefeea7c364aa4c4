package bundle

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/fairloan-cli/internal/encoding"
	"github.com/KaramelBytes/fairloan-cli/internal/fairness"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

func logisticBundle() *Bundle {
	eq := "logit(p) = (0.500 * age) + (-1.000 * gender) + (0.100)"
	ratio := 0.8
	return &Bundle{
		Model:        ModelSpec{Kind: KindLogistic, Logistic: &model.LogisticRegression{Weights: []float64{0.5, -1}, Intercept: 0.1, C: 1}},
		Scaler:       &model.StandardScaler{Mean: []float64{30, 0.5}, Std: []float64{10, 0.5}},
		FeatureOrder: []string{"age", "gender"},
		Metrics: TrainingMetrics{
			RunID:     "run-1",
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			ModelType: KindLogistic,
			Columns:   []string{"age", "gender"},
			Meta: encoding.Meta{
				FeatureOrder:  []string{"age", "gender"},
				ColumnMapping: map[string]string{"age": "age", "sex": "gender"},
				ValueMapping:  map[string]map[string]int{"gender": {"male": 1, "female": 0}},
			},
			OverallAccuracy: 0.75,
			Report: fairness.Report{
				PrimaryAttribute:        "gender",
				PrimarySelectionRateGap: 0.1,
				StatisticalParityRatio:  &ratio,
				Slices: map[string]fairness.Slice{
					"gender": {Attribute: "gender", Groups: []fairness.GroupStats{{Group: "female", Count: 3}}},
				},
			},
			LogisticEquation: &eq,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	b := logisticBundle()
	path, err := s.Save(b, Fair)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(s.Root, "fair", "logistic", BundleFile) {
		t.Fatalf("path = %s", path)
	}
	got, err := s.Load(Fair, KindLogistic)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Metrics.Variant != Fair || got.Metrics.ColumnMapping["sex"] != "gender" {
		t.Fatalf("metrics not preserved: %+v", got.Metrics)
	}
	if *got.Metrics.StatisticalParityRatio != 0.8 || got.Metrics.DecisionTreeRules != nil {
		t.Fatalf("nullable fields not preserved")
	}
	p1, _ := b.PredictProba([][]float64{{40, 1}})
	p2, err := got.PredictProba([][]float64{{40, 1}})
	if err != nil || p1[0] != p2[0] {
		t.Fatalf("prediction changed after reload: %v vs %v (%v)", p1, p2, err)
	}
	meta, err := s.Metadata(Fair, KindLogistic)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.RunID != "run-1" || meta.Slices["gender"].Groups[0].Group != "female" {
		t.Fatalf("metadata = %+v", meta)
	}
	raw, _ := os.ReadFile(filepath.Join(s.Dir(Fair, KindLogistic), MetadataFile))
	for _, key := range []string{`"column_mapping"`, `"fairness_slices"`, `"feature_order"`, `"selection_rate_gap"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("metadata.json missing %s", key)
		}
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	_, err := s.Load(Biased, KindTree)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Variant != Biased || nf.ModelType != KindTree || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("unexpected error: %+v", nf)
	}
}

func TestLoadCorruptIsNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	dir := s.Dir(Fair, KindTree)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, BundleFile), []byte("not gob"), 0o644); err != nil {
		t.Fatal(err)
	}
	var nf *NotFoundError
	if _, err := s.Load(Fair, KindTree); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLoadKindMismatchIsNotFound(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if _, err := s.Save(logisticBundle(), Fair); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(s.Dir(Fair, KindLogistic), s.Dir(Fair, KindTree)); err != nil {
		t.Fatal(err)
	}
	var nf *NotFoundError
	if _, err := s.Load(Fair, KindTree); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	b := logisticBundle()
	b.FeatureOrder = []string{"age"}
	if _, err := s.Save(b, Fair); err == nil {
		t.Fatalf("expected validation error")
	}
	b = &Bundle{Model: ModelSpec{Kind: KindTree, Tree: &model.DecisionTree{}}, FeatureOrder: []string{"age"}}
	if _, err := s.Save(b, Fair); err == nil {
		t.Fatalf("unfitted tree should not be saved")
	}
}

func TestSaveReplacesAndList(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	if entries, err := s.List(); err != nil || len(entries) != 0 {
		t.Fatalf("empty store: %v %v", entries, err)
	}
	b := logisticBundle()
	if _, err := s.Save(b, Fair); err != nil {
		t.Fatal(err)
	}
	b.Metrics.RunID = "run-2"
	if _, err := s.Save(b, Fair); err != nil {
		t.Fatal(err)
	}
	X := [][]float64{{1}, {2}, {3}, {4}}
	tr := model.NewDecisionTree(3)
	if err := tr.Fit(X, []int{0, 0, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(&Bundle{Model: ModelSpec{Kind: KindTree, Tree: tr}, FeatureOrder: []string{"x"}}, Biased); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(Fair, KindLogistic)
	if err != nil || got.Metrics.RunID != "run-2" {
		t.Fatalf("second save should replace the first: %v %v", got, err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Variant != Fair || entries[1].Variant != Biased || entries[1].ModelType != KindTree {
		t.Fatalf("entries = %+v", entries)
	}
	files, _ := os.ReadDir(s.Dir(Fair, KindLogistic))
	if len(files) != 2 {
		t.Fatalf("bundle dir should hold exactly bundle and metadata, got %d files", len(files))
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := ParseVariant(""); err != nil || v != Fair {
		t.Fatalf("empty -> %v %v", v, err)
	}
	if _, err := ParseVariant("both"); err == nil {
		t.Fatalf("expected error")
	}
	if VariantFor(true) != Biased || VariantFor(false) != Fair {
		t.Fatalf("VariantFor mismatch")
	}
}
