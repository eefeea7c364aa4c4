package predict

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/encoding"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// MissingAfterMappingError lists canonical features that could not be found in
// the input even after applying the bundle's column mapping.
type MissingAfterMappingError struct {
	Columns []string
}

func (e *MissingAfterMappingError) Error() string {
	return "missing after mapping: " + strings.Join(e.Columns, ", ")
}

// ErrEmptyBatch is returned for a batch with no rows.
var ErrEmptyBatch = errors.New("empty batch")

// Single is the result for one record.
type Single struct {
	Probability  float64                 `json:"probability"`
	Approved     bool                    `json:"approved"`
	ModelMetrics *bundle.TrainingMetrics `json:"model_metrics,omitempty"`
}

// Bulk is the result for a batch, merged with the bundle's training metrics.
type Bulk struct {
	AverageProbability float64 `json:"average_probability"`
	ApprovalRate       float64 `json:"approval_rate"`
	RowCount           int     `json:"row_count"`
	*bundle.TrainingMetrics
}

// Loader loads bundles; *bundle.Store satisfies it.
type Loader interface {
	Load(v bundle.Variant, modelType string) (*bundle.Bundle, error)
}

// Service scores records with stored bundles.
type Service struct {
	Bundles Loader
	Options dataset.Options
	log     *slog.Logger
}

// NewService returns a service reading bundles from l.
func NewService(l Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Bundles: l, Options: dataset.DefaultOptions(), log: logger.With("component", "predict")}
}

// Predict dispatches on the input shape: a map is a single record; a dataset
// or a slice of maps is a batch.
func (s *Service) Predict(input any, modelType string, biased bool) (any, error) {
	switch in := input.(type) {
	case map[string]any:
		return s.PredictRecord(in, modelType, biased)
	case *dataset.Dataset:
		return s.PredictBatch(in, modelType, biased)
	case []map[string]any:
		return s.PredictBatch(FromRecords(in), modelType, biased)
	}
	return nil, fmt.Errorf("unsupported prediction input %T", input)
}

// PredictRecord scores one record.
func (s *Service) PredictRecord(rec map[string]any, modelType string, biased bool) (*Single, error) {
	b, proba, err := s.score(FromRecords([]map[string]any{rec}), modelType, biased)
	if err != nil {
		return nil, err
	}
	return &Single{Probability: proba[0], Approved: proba[0] >= model.ApprovalThreshold, ModelMetrics: &b.Metrics}, nil
}

// PredictBatch scores every row and aggregates.
func (s *Service) PredictBatch(d *dataset.Dataset, modelType string, biased bool) (*Bulk, error) {
	b, proba, err := s.score(d, modelType, biased)
	if err != nil {
		return nil, err
	}
	out := &Bulk{RowCount: len(proba), TrainingMetrics: &b.Metrics}
	approved := 0
	for _, p := range proba {
		out.AverageProbability += p
		if p >= model.ApprovalThreshold {
			approved++
		}
	}
	out.AverageProbability /= float64(len(proba))
	out.ApprovalRate = float64(approved) / float64(len(proba))
	return out, nil
}

func (s *Service) score(d *dataset.Dataset, modelType string, biased bool) (*bundle.Bundle, []float64, error) {
	mt, err := engine.ParseModelType(modelType)
	if err != nil {
		return nil, nil, err
	}
	if d == nil || d.Len() == 0 {
		return nil, nil, ErrEmptyBatch
	}
	v := bundle.VariantFor(biased)
	b, err := s.Bundles.Load(v, string(mt))
	if err != nil {
		return nil, nil, err
	}
	meta := b.Metrics.Meta
	meta.FeatureOrder = b.FeatureOrder
	X, missing := encoding.Replay(d, meta, s.Options)
	if len(missing) > 0 {
		return nil, nil, &MissingAfterMappingError{Columns: missing}
	}
	proba, err := b.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("scored", "variant", v, "model_type", mt, "rows", len(proba), "run_id", b.Metrics.RunID)
	return b, proba, nil
}

// FromRecords converts keyed records into a dataset. Values are rendered with
// cast; values that cannot be rendered become empty and replay as the sentinel.
func FromRecords(records []map[string]any) *dataset.Dataset {
	seen := map[string]bool{}
	var keys []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	rows := make([]map[string]string, len(records))
	for i, r := range records {
		row := make(map[string]string, len(r))
		for k, v := range r {
			if v == nil {
				continue
			}
			if s, err := cast.ToStringE(v); err == nil {
				row[k] = s
			}
		}
		rows[i] = row
	}
	return dataset.FromRecords(keys, rows)
}
