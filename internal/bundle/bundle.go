package bundle

import (
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/fairloan-cli/internal/encoding"
	"github.com/KaramelBytes/fairloan-cli/internal/fairness"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// Variant is the fairness split of the store.
type Variant string

const (
	Fair   Variant = "fair"
	Biased Variant = "biased"
)

// Variants lists every variant in store order.
var Variants = []Variant{Fair, Biased}

// VariantFor maps the prediction-time bias flag to a variant.
func VariantFor(biased bool) Variant {
	if biased {
		return Biased
	}
	return Fair
}

// ParseVariant accepts "fair" or "biased" (empty means fair).
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", Fair:
		return Fair, nil
	case Biased:
		return Biased, nil
	}
	return "", fmt.Errorf("unknown variant %q (use fair|biased)", s)
}

// Model kinds stored in a ModelSpec.
const (
	KindLogistic = "logistic"
	KindTree     = "tree"
)

// ModelSpec is the fitted classifier, tagged by kind. Exactly one of Logistic
// and Tree is set.
type ModelSpec struct {
	Kind     string
	Logistic *model.LogisticRegression
	Tree     *model.DecisionTree
}

// Classifier returns the fitted model behind the tag.
func (s ModelSpec) Classifier() (model.Classifier, error) {
	switch s.Kind {
	case KindLogistic:
		if s.Logistic != nil {
			return s.Logistic, nil
		}
	case KindTree:
		if s.Tree != nil && s.Tree.Root != nil {
			return s.Tree, nil
		}
	default:
		return nil, fmt.Errorf("unknown model kind %q", s.Kind)
	}
	return nil, fmt.Errorf("%s model is empty", s.Kind)
}

// TrainingMetrics describes a training run. It carries everything inference
// needs to rebuild the feature space, and the fairness figures of the run.
type TrainingMetrics struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ModelType string    `json:"model_type" yaml:"model_type"`
	Variant   Variant   `json:"variant" yaml:"variant"`
	Dataset   string    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Columns   []string  `json:"columns" yaml:"columns"`

	encoding.Meta `yaml:",inline"`

	OverallAccuracy float64 `json:"overall_accuracy" yaml:"overall_accuracy"`

	fairness.Report `yaml:",inline"`

	LogisticEquation     *string             `json:"logistic_equation" yaml:"logistic_equation"`
	LogisticCoefficients []model.Coefficient `json:"logistic_coefficients,omitempty" yaml:"logistic_coefficients,omitempty"`
	DecisionTreeRules    *string             `json:"decision_tree_rules" yaml:"decision_tree_rules"`

	TrainRows       int  `json:"train_rows" yaml:"train_rows"`
	TestRows        int  `json:"test_rows" yaml:"test_rows"`
	Oversampled     bool `json:"oversampled" yaml:"oversampled"`
	OutliersClipped bool `json:"outliers_clipped" yaml:"outliers_clipped"`
}

// Bundle couples a fitted model to the preprocessing that produced its inputs.
type Bundle struct {
	Model ModelSpec
	// Scaler is nil for models trained on unscaled features.
	Scaler       *model.StandardScaler
	FeatureOrder []string
	Metrics      TrainingMetrics
}

var errInvalid = errors.New("invalid bundle")

func (b *Bundle) validate() error {
	if _, err := b.Model.Classifier(); err != nil {
		return fmt.Errorf("%w: %v", errInvalid, err)
	}
	if len(b.FeatureOrder) == 0 {
		return fmt.Errorf("%w: empty feature order", errInvalid)
	}
	if b.Model.Kind == KindLogistic && len(b.Model.Logistic.Weights) != len(b.FeatureOrder) {
		return fmt.Errorf("%w: %d weights for %d features", errInvalid, len(b.Model.Logistic.Weights), len(b.FeatureOrder))
	}
	if b.Scaler != nil && len(b.Scaler.Mean) != len(b.FeatureOrder) {
		return fmt.Errorf("%w: scaler width %d for %d features", errInvalid, len(b.Scaler.Mean), len(b.FeatureOrder))
	}
	return nil
}

// PredictProba scales X when the bundle carries a scaler and scores it.
func (b *Bundle) PredictProba(X [][]float64) ([]float64, error) {
	clf, err := b.Model.Classifier()
	if err != nil {
		return nil, err
	}
	if b.Scaler != nil {
		X = b.Scaler.Transform(X)
	}
	return clf.PredictProba(X), nil
}
