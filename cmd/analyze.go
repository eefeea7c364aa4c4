package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaModelType    string
	anaProfile      string
	anaThreshold    float64
	anaSensitive    []string
	anaPrimary      string
	anaSave         bool
	anaVariant      string
	anaOutputPath   string
	anaImagesDir    string
	anaJSON         bool
	anaOversample   bool
	anaClipOutliers bool
	anaTreeDepth    int
	anaSeed         int64
	anaDelimiter    string
	anaDecimal      string
	anaThousands    string
	anaMaxRows      int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Train a model on a CSV/TSV and report accuracy, fairness and explanations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dopt, err := datasetOptions(anaDelimiter, anaDecimal, anaThousands, anaMaxRows)
		if err != nil {
			return err
		}
		variant, err := bundle.ParseVariant(anaVariant)
		if err != nil {
			return err
		}
		d, err := dataset.LoadCSV(args[0], dopt)
		if err != nil {
			return err
		}

		opt := engineOptions()
		opt.Dataset = dopt
		opt.Profile = anaProfile
		opt.Sensitive = anaSensitive
		opt.Primary = anaPrimary
		f := cmd.Flags()
		if f.Changed("bias-threshold") {
			if anaThreshold <= 0 || anaThreshold >= 1 {
				return fmt.Errorf("invalid --bias-threshold: %v (must be in (0,1))", anaThreshold)
			}
			opt.BiasThreshold = anaThreshold
		}
		if f.Changed("oversample") {
			opt.Oversample = anaOversample
		}
		if f.Changed("clip-outliers") {
			opt.ClipOutliers = anaClipOutliers
		}
		if f.Changed("tree-depth") {
			opt.TreeMaxDepth = anaTreeDepth
		}
		if f.Changed("seed") {
			opt.Seed = anaSeed
		}

		a, err := engine.TrainAndAnalyze(d, anaModelType, opt)
		if err != nil {
			return err
		}
		res := a.Result

		if anaSave {
			path, err := bundle.NewStore(bundleRoot(), logger).Save(a.Bundle, variant)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Saved %s/%s bundle to %s\n", variant, res.ModelType, path)
		}
		if anaImagesDir != "" {
			if err := writeImages(anaImagesDir, res); err != nil {
				return err
			}
		}
		if anaOutputPath != "" {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(anaOutputPath, b); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote analysis to %s\n", anaOutputPath)
		}
		if anaJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		printAnalysis(d.Name, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaModelType, "model-type", "m", "logistic", "model type: logistic|tree")
	analyzeCmd.Flags().StringVar(&anaProfile, "profile", "", "schema profile: german_credit|loan_approval (auto-detect if omitted)")
	analyzeCmd.Flags().Float64Var(&anaThreshold, "bias-threshold", 0.15, "selection-rate gap above which the model is flagged (overrides config)")
	analyzeCmd.Flags().StringSliceVar(&anaSensitive, "sensitive", nil, "comma-separated sensitive attributes (auto-detect if omitted)")
	analyzeCmd.Flags().StringVar(&anaPrimary, "primary", "", "primary fairness axis (defaults to the profile's)")
	analyzeCmd.Flags().BoolVar(&anaSave, "save", false, "store the trained bundle for prediction")
	analyzeCmd.Flags().StringVar(&anaVariant, "variant", "fair", "bundle variant when saving: fair|biased")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the analysis (JSON)")
	analyzeCmd.Flags().StringVar(&anaImagesDir, "images", "", "directory to write tree and attribution PNGs")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the analysis as JSON")
	analyzeCmd.Flags().BoolVar(&anaOversample, "oversample", false, "SMOTE-oversample the minority class in the training split")
	analyzeCmd.Flags().BoolVar(&anaClipOutliers, "clip-outliers", false, "clip continuous training columns to the IQR fences")
	analyzeCmd.Flags().IntVar(&anaTreeDepth, "tree-depth", 3, "decision tree max depth (3-5)")
	analyzeCmd.Flags().Int64Var(&anaSeed, "seed", 42, "random seed for the train/test split")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	analyzeCmd.Flags().StringVar(&anaDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	analyzeCmd.Flags().StringVar(&anaThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
}

// datasetOptions parses the shared CSV flags.
func datasetOptions(delim, decimal, thousands string, maxRows int) (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	if maxRows > 0 {
		opt.MaxRows = maxRows
	}
	switch delim {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delim)
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	switch strings.ToLower(strings.TrimSpace(thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", thousands)
	}
	return opt, nil
}

func writeImages(dir string, res *engine.AnalysisResult) error {
	if err := utils.EnsureDir(dir); err != nil {
		return err
	}
	images := map[string][]byte{
		"decision_tree.png":                        res.TreeImage,
		string(res.ModelType) + "_attribution.png": res.ShapImage,
	}
	for name, img := range images {
		if img == nil {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		fmt.Printf("✓ Wrote %s\n", path)
	}
	return nil
}

func printAnalysis(name string, res *engine.AnalysisResult) {
	if name == "" {
		name = "dataset"
	}
	fmt.Printf("✓ Trained %s model on %s (%s profile, %d train / %d test rows)\n",
		res.ModelType, name, res.Profile, res.TrainRows, res.TestRows)
	fmt.Printf("Accuracy: %.3f\n", res.Accuracy)
	fmt.Printf("Primary fairness axis: %s (selection-rate gap %.3f, threshold %.3f)\n",
		res.PrimaryFairnessAxis, res.SelectionRateGap, res.BiasThreshold)
	for _, g := range sortedKeys(res.SelectionRates) {
		fmt.Printf("  %s: selection rate %.3f, accuracy %.3f\n", g, res.SelectionRates[g], res.Accuracies[g])
	}
	if res.StatisticalParityRatio != nil {
		fmt.Printf("Statistical parity ratio: %.3f\n", *res.StatisticalParityRatio)
	}
	if res.BiasFlag {
		fmt.Printf("⚠ Warning: selection-rate gap %.3f exceeds threshold %.3f\n", res.SelectionRateGap, res.BiasThreshold)
	} else {
		fmt.Println("Bias flag: not raised")
	}
	if len(res.SensitiveFeatures) > 0 {
		fmt.Printf("Sensitive features: %s\n", strings.Join(res.SensitiveFeatures, ", "))
	}
	fmt.Println()
	fmt.Println("Fairness slices:")
	for _, attr := range sortedKeys(res.FairnessSlices) {
		s := res.FairnessSlices[attr]
		ratio := "n/a"
		if s.StatisticalParityRatio != nil {
			ratio = fmt.Sprintf("%.3f", *s.StatisticalParityRatio)
		}
		note := ""
		if s.Degenerate {
			note = " (single group)"
		}
		fmt.Printf("- %s [%s]: gap %.3f, ratio %s, eod %.3f, aod %.3f%s\n",
			attr, s.Binning, s.SelectionRateGap, ratio, s.EqualOpportunityDifference, s.AverageOddsDifference, note)
	}
	fmt.Println()
	if res.Equation != nil {
		fmt.Println(*res.Equation)
	}
	fmt.Println(res.DecisionLogic)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
