package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/encoding"
	"github.com/KaramelBytes/fairloan-cli/internal/explain"
	"github.com/KaramelBytes/fairloan-cli/internal/fairness"
	"github.com/KaramelBytes/fairloan-cli/internal/model"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
)

// DecisionTreeHeader starts the decision logic of tree models.
const DecisionTreeHeader = "Decision tree rules:"

// smoteNeighbours is k for minority oversampling.
const smoteNeighbours = 5

// TrainAndAnalyze resolves the schema, encodes features, fits the requested
// model on a seeded training split and evaluates accuracy, fairness and
// explanations on the held-out rows. It either returns a complete analysis or
// an error; nothing is persisted.
func TrainAndAnalyze(d *dataset.Dataset, modelType string, opt Options) (*Analysis, error) {
	if opt.BiasThreshold < 0 || opt.BiasThreshold >= 1 {
		return nil, fmt.Errorf("%w: %v (must be in (0,1))", ErrInvalidThreshold, opt.BiasThreshold)
	}
	opt = opt.withDefaults()
	log := opt.Logger.With("component", "engine")
	mt, err := ParseModelType(modelType)
	if err != nil {
		return nil, err
	}
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", ErrInsufficientData)
	}

	res, err := resolve(d, opt.Profile)
	if err != nil {
		return nil, err
	}
	fs, err := encoding.Fit(d, res, opt.Dataset)
	if err != nil {
		return nil, err
	}
	meta := fs.Meta
	names := meta.FeatureOrder
	sensitive, err := sensitiveFeatures(d, res, meta, opt)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx := model.TrainTestSplit(d.Len(), opt.TestFraction, opt.Seed)
	if len(trainIdx) < 2 || len(testIdx) < 1 {
		return nil, fmt.Errorf("%w: %d rows cannot be split into train and test", ErrInsufficientData, d.Len())
	}
	Xtr, ytr := model.Rows(fs.Matrix, trainIdx), model.Labels(fs.Labels, trainIdx)
	Xte, yte := model.Rows(fs.Matrix, testIdx), model.Labels(fs.Labels, testIdx)

	if opt.ClipOutliers {
		var cols []int
		for _, c := range meta.Continuous {
			cols = append(cols, meta.Index(c))
		}
		Xtr = model.Clip(Xtr, model.IQRBounds(Xtr, cols))
	}
	if opt.Oversample {
		Xtr, ytr = model.SMOTE(Xtr, ytr, smoteNeighbours, opt.Seed)
	}

	result := &AnalysisResult{
		RunID:     uuid.NewString(),
		ModelType: mt,
		Profile:   meta.Profile,
		TrainRows: len(Xtr),
		TestRows:  len(Xte),
	}
	b := &bundle.Bundle{FeatureOrder: append([]string(nil), names...)}

	var (
		yPred []int
		attr  explain.Attributions
	)
	switch mt {
	case Logistic:
		scaler := model.NewStandardScaler()
		XtrS := scaler.FitTransform(Xtr)
		XteS := scaler.Transform(Xte)
		lr := model.NewLogisticRegression()
		lr.C, lr.MaxIter = opt.LogisticC, opt.LogisticMaxIter
		if err := lr.Fit(XtrS, ytr); err != nil {
			return nil, err
		}
		yPred = lr.Predict(XteS)
		eq := lr.Equation(names)
		result.Equation = &eq
		result.Coefficients = lr.Coefficients(names)
		result.DecisionLogic = lr.DecisionLogic(names)
		attr = explain.Linear(lr, XtrS, XteS, names)
		b.Model = bundle.ModelSpec{Kind: bundle.KindLogistic, Logistic: lr}
		b.Scaler = scaler
	case Tree:
		tr := model.NewDecisionTree(opt.TreeMaxDepth)
		if err := tr.Fit(Xtr, ytr); err != nil {
			return nil, err
		}
		yPred = tr.Predict(Xte)
		result.DecisionLogic = DecisionTreeHeader + "\n" + tr.Rules(names)
		img, err := explain.TreeDiagram(tr, names)
		if err != nil {
			return nil, err
		}
		result.TreeImage = img
		attr = explain.Tree(tr, Xte, names)
		b.Model = bundle.ModelSpec{Kind: bundle.KindTree, Tree: tr}
	}
	shap, err := explain.SummaryPlot(attr, "Feature attribution ("+string(mt)+")")
	if err != nil {
		return nil, err
	}
	result.ShapImage = shap
	result.Accuracy = model.Accuracy(yte, yPred)

	primary := opt.Primary
	if primary == "" {
		primary = res.Profile.Primary
	}
	report := fairness.Evaluate(attributes(meta, Xte), primary, sensitive, yte, yPred, opt.BiasThreshold)
	result.SelectionRateGap = report.PrimarySelectionRateGap
	result.PrimaryFairnessAxis = report.PrimaryAttribute
	result.SelectionRates = report.SelectionRates
	result.Accuracies = report.Accuracies
	result.DemographicParityDifference = report.DemographicParityDifference
	result.StatisticalParityRatio = report.StatisticalParityRatio
	result.BiasFlag = report.BiasFlag
	result.BiasThreshold = report.BiasThreshold
	result.FairnessSlices = report.Slices
	result.SensitiveFeatures = report.SensitiveFeatures

	b.Metrics = bundle.TrainingMetrics{
		RunID:                result.RunID,
		CreatedAt:            time.Now().UTC(),
		ModelType:            string(mt),
		Dataset:              d.Name,
		Columns:              b.FeatureOrder,
		Meta:                 meta,
		OverallAccuracy:      result.Accuracy,
		Report:               report,
		LogisticEquation:     result.Equation,
		LogisticCoefficients: result.Coefficients,
		TrainRows:            result.TrainRows,
		TestRows:             result.TestRows,
		Oversampled:          opt.Oversample,
		OutliersClipped:      opt.ClipOutliers,
	}
	if mt == Tree {
		rules := strings.TrimPrefix(result.DecisionLogic, DecisionTreeHeader+"\n")
		b.Metrics.DecisionTreeRules = &rules
	}

	log.Info("training complete",
		"run_id", result.RunID, "model_type", mt, "profile", meta.Profile,
		"train_rows", result.TrainRows, "test_rows", result.TestRows,
		"accuracy", result.Accuracy, "primary_axis", result.PrimaryFairnessAxis,
		"selection_rate_gap", result.SelectionRateGap, "bias_flag", result.BiasFlag)
	return &Analysis{Result: result, Bundle: b}, nil
}

func resolve(d *dataset.Dataset, profile string) (*schema.Resolution, error) {
	if profile == "" {
		return schema.Detect(d)
	}
	p, err := schema.Lookup(profile)
	if err != nil {
		return nil, err
	}
	res, _, err := p.Resolve(d)
	return res, err
}

func sensitiveFeatures(d *dataset.Dataset, res *schema.Resolution, meta encoding.Meta, opt Options) ([]string, error) {
	if len(opt.Sensitive) == 0 {
		return fairness.DetectSensitive(d, meta.FeatureOrder, res.Columns, opt.Dataset), nil
	}
	out := make([]string, 0, len(opt.Sensitive))
	for _, s := range opt.Sensitive {
		name := strings.ToLower(strings.TrimSpace(s))
		if meta.Index(name) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, s)
		}
		out = append(out, name)
	}
	return out, nil
}

// attributes exposes every feature of the evaluation split for slicing.
// Categorical groups are named through the value table.
func attributes(meta encoding.Meta, X [][]float64) []fairness.Attribute {
	out := make([]fairness.Attribute, 0, len(meta.FeatureOrder))
	for j, feat := range meta.FeatureOrder {
		a := fairness.Attribute{
			Name:       feat,
			Values:     model.Column(X, j),
			Continuous: meta.IsContinuous(feat),
		}
		if meta.IsCategorical(feat) {
			f := feat
			a.Label = func(v float64) string { return meta.Decode(f, v) }
		}
		out = append(out, a)
	}
	return out
}
