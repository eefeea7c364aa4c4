package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/fairness"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
)

// ModelType selects the model family.
type ModelType string

const (
	Logistic ModelType = bundle.KindLogistic
	Tree     ModelType = bundle.KindTree
)

// ErrUnknownModelType is returned by ParseModelType.
var ErrUnknownModelType = errors.New("unknown model type")

// ErrUnknownAttribute is returned when a requested sensitive attribute is not a feature.
var ErrUnknownAttribute = errors.New("unknown sensitive attribute")

// ErrInsufficientData is returned when the dataset is too small to split.
var ErrInsufficientData = errors.New("insufficient data")

// ErrInvalidThreshold is returned for a bias threshold outside [0,1); zero
// selects the default.
var ErrInvalidThreshold = errors.New("invalid bias threshold")

// ParseModelType accepts logistic|tree and the long forms
// logistic_regression|decision_tree, case-insensitively.
func ParseModelType(s string) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logistic", "logistic_regression":
		return Logistic, nil
	case "tree", "decision_tree":
		return Tree, nil
	}
	return "", fmt.Errorf("%w: %q (use logistic|tree)", ErrUnknownModelType, s)
}

// Options tunes a training run. Zero values fall back to DefaultOptions.
type Options struct {
	BiasThreshold float64
	// Profile forces a schema profile by name; empty auto-detects.
	Profile string
	// Sensitive names the attributes to treat as sensitive; empty auto-detects.
	Sensitive []string
	// Primary overrides the profile's primary fairness axis.
	Primary         string
	Seed            int64
	TestFraction    float64
	TreeMaxDepth    int
	LogisticC       float64
	LogisticMaxIter int
	Oversample      bool
	ClipOutliers    bool
	Dataset         dataset.Options
	Logger          *slog.Logger
}

// DefaultOptions returns threshold 0.15, seed 42, a 20% held-out split and a
// depth-3 tree.
func DefaultOptions() Options {
	return Options{
		BiasThreshold:   fairness.DefaultBiasThreshold,
		Seed:            42,
		TestFraction:    0.2,
		TreeMaxDepth:    model.DefaultTreeDepth,
		LogisticC:       1,
		LogisticMaxIter: 100,
		Dataset:         dataset.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BiasThreshold <= 0 {
		o.BiasThreshold = d.BiasThreshold
	}
	if o.TestFraction <= 0 || o.TestFraction >= 1 {
		o.TestFraction = d.TestFraction
	}
	o.TreeMaxDepth = model.ClampDepth(o.TreeMaxDepth)
	if o.LogisticC <= 0 {
		o.LogisticC = d.LogisticC
	}
	if o.LogisticMaxIter <= 0 {
		o.LogisticMaxIter = d.LogisticMaxIter
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// AnalysisResult is the outcome of TrainAndAnalyze.
type AnalysisResult struct {
	RunID     string    `json:"run_id"`
	ModelType ModelType `json:"model_type"`
	Profile   string    `json:"profile"`
	Accuracy  float64   `json:"accuracy"`

	// SelectionRateGap is taken from the primary fairness axis; every slice
	// also reports its own gap.
	SelectionRateGap            float64            `json:"selection_rate_gap"`
	PrimaryFairnessAxis         string             `json:"primary_fairness_axis"`
	SelectionRates              map[string]float64 `json:"selection_rates"`
	Accuracies                  map[string]float64 `json:"accuracies"`
	DemographicParityDifference float64            `json:"demographic_parity_difference"`
	StatisticalParityRatio      *float64           `json:"statistical_parity_ratio"`
	BiasFlag                    bool               `json:"bias_flag"`
	BiasThreshold               float64            `json:"bias_threshold"`

	Equation      *string             `json:"equation"`
	Coefficients  []model.Coefficient `json:"coefficients"`
	DecisionLogic string              `json:"decision_logic"`
	TreeImage     []byte              `json:"tree_image"`
	ShapImage     []byte              `json:"shap_image"`

	FairnessSlices    map[string]fairness.Slice `json:"fairness_slices"`
	SensitiveFeatures []string                  `json:"sensitive_features"`
	TrainRows         int                       `json:"train_rows"`
	TestRows          int                       `json:"test_rows"`
}

// Analysis pairs the result with the bundle ready to be stored.
type Analysis struct {
	Result *AnalysisResult
	Bundle *bundle.Bundle
}

// ErrorResult is the structured form of a failed call.
type ErrorResult struct {
	Error string `json:"error"`
}

// NewErrorResult wraps err for transport.
func NewErrorResult(err error) *ErrorResult {
	if err == nil {
		return nil
	}
	return &ErrorResult{Error: err.Error()}
}
