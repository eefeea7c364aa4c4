package predict

import (
	"errors"
	"reflect"
	"testing"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/testutil"
)

func trainedService(t *testing.T, modelType string) *Service {
	t.Helper()
	a, err := engine.TrainAndAnalyze(testutil.German(200), modelType, engine.DefaultOptions())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	store := bundle.NewStore(t.TempDir(), nil)
	if _, err := store.Save(a.Bundle, bundle.Fair); err != nil {
		t.Fatalf("save: %v", err)
	}
	return NewService(store, nil)
}

func applicant() map[string]any {
	return map[string]any{
		"Age":           35,
		"Sex":           "male",
		"Job":           "skilled",
		"Credit amount": 2500.0,
		"Duration":      "12",
	}
}

func TestPredictRecord(t *testing.T) {
	for _, mt := range []string{"logistic", "tree"} {
		s := trainedService(t, mt)
		res, err := s.PredictRecord(applicant(), mt, false)
		if err != nil {
			t.Fatalf("%s: %v", mt, err)
		}
		if res.Probability < 0 || res.Probability > 1 {
			t.Fatalf("%s: probability %v", mt, res.Probability)
		}
		if res.Approved != (res.Probability >= 0.5) {
			t.Fatalf("%s: approved %v for %v", mt, res.Approved, res.Probability)
		}
		if res.ModelMetrics == nil || res.ModelMetrics.ModelType != mt || res.ModelMetrics.Variant != bundle.Fair {
			t.Fatalf("%s: metrics = %+v", mt, res.ModelMetrics)
		}
	}
}

func TestPredictRecordMissingAfterMapping(t *testing.T) {
	s := trainedService(t, "logistic")
	rec := applicant()
	delete(rec, "Duration")
	_, err := s.PredictRecord(rec, "logistic", false)
	var me *MissingAfterMappingError
	if !errors.As(err, &me) {
		t.Fatalf("err = %v, want MissingAfterMappingError", err)
	}
	if !reflect.DeepEqual(me.Columns, []string{"duration"}) {
		t.Fatalf("missing = %v", me.Columns)
	}
	if me.Error() != "missing after mapping: duration" {
		t.Fatalf("message = %q", me.Error())
	}
}

func TestPredictRecordAlternateHeaders(t *testing.T) {
	s := trainedService(t, "logistic")
	rec := map[string]any{"gender": "female", "AGE": 41, "occupation": "unskilled", "amount": 900, "term": 24}
	if _, err := s.PredictRecord(rec, "logistic_regression", false); err != nil {
		t.Fatalf("candidate headers should resolve: %v", err)
	}
}

func TestUnseenCategoryStillScores(t *testing.T) {
	s := trainedService(t, "tree")
	rec := applicant()
	rec["Job"] = "astronaut"
	rec["Sex"] = nil
	if _, err := s.PredictRecord(rec, "tree", false); err != nil {
		t.Fatalf("unseen values should map to the sentinel: %v", err)
	}
}

func TestPredictBatch(t *testing.T) {
	s := trainedService(t, "tree")
	res, err := s.PredictBatch(testutil.German(30), "tree", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowCount != 30 || res.ApprovalRate < 0 || res.ApprovalRate > 1 {
		t.Fatalf("bulk = %+v", res)
	}
	if res.TrainingMetrics == nil || res.RunID == "" {
		t.Fatalf("bulk result should carry training metrics")
	}
}

func TestPredictDispatch(t *testing.T) {
	s := trainedService(t, "logistic")
	out, err := s.Predict([]map[string]any{applicant(), applicant()}, "logistic", false)
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := out.(*Bulk); !ok || b.RowCount != 2 {
		t.Fatalf("slice input should score as a batch: %#v", out)
	}
	out, err = s.Predict(applicant(), "logistic", false)
	if _, ok := out.(*Single); err != nil || !ok {
		t.Fatalf("map input should score as a record: %v", err)
	}
	if _, err := s.Predict(42, "logistic", false); err == nil {
		t.Fatalf("unsupported input should fail")
	}
}

func TestPredictErrors(t *testing.T) {
	s := trainedService(t, "logistic")
	empty := dataset.New([]string{"age"}, nil)
	if _, err := s.PredictBatch(empty, "logistic", false); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
	if _, err := s.PredictRecord(applicant(), "forest", false); !errors.Is(err, engine.ErrUnknownModelType) {
		t.Fatalf("err = %v, want ErrUnknownModelType", err)
	}
	var nf *bundle.NotFoundError
	if _, err := s.PredictRecord(applicant(), "logistic", true); !errors.As(err, &nf) || nf.Variant != bundle.Biased {
		t.Fatalf("err = %v, want NotFoundError for the biased bundle", err)
	}
	if _, err := s.PredictRecord(applicant(), "tree", false); !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError for the tree bundle", err)
	}
}

func TestFromRecords(t *testing.T) {
	d := FromRecords([]map[string]any{{"b": 1.5, "a": true}, {"a": "x"}})
	if !reflect.DeepEqual(d.Columns, []string{"a", "b"}) {
		t.Fatalf("columns = %v", d.Columns)
	}
	if d.Rows[0][0] != "true" || d.Rows[0][1] != "1.5" || d.Rows[1][1] != "" {
		t.Fatalf("rows = %v", d.Rows)
	}
}
