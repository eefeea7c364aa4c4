package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/predict"
	"github.com/KaramelBytes/fairloan-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	predModelType string
	predBiased    bool
	predRecord    string
	predFile      string
	predJSON      bool
	predDelimiter string
	predDecimal   string
	predThousands string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a record (--record) or a CSV batch (--file) with a stored bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (predRecord == "") == (predFile == "") {
			return fmt.Errorf("specify exactly one of --record or --file")
		}
		svc := predict.NewService(bundle.NewStore(bundleRoot(), logger), logger)

		var out any
		if predRecord != "" {
			raw := []byte(predRecord)
			if predRecord[0] == '@' {
				b, err := os.ReadFile(predRecord[1:])
				if err != nil {
					return fmt.Errorf("read record: %w", err)
				}
				raw = b
			}
			var rec map[string]any
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("parse record JSON: %w", err)
			}
			res, err := svc.PredictRecord(rec, predModelType, predBiased)
			if err != nil {
				return err
			}
			if !predJSON {
				verdict := "rejected"
				if res.Approved {
					verdict = "approved"
				}
				fmt.Printf("✓ %s (probability %.3f, %s/%s bundle, run %s)\n",
					verdict, res.Probability, res.ModelMetrics.Variant, res.ModelMetrics.ModelType, res.ModelMetrics.RunID)
				return nil
			}
			out = res
		} else {
			dopt, err := datasetOptions(predDelimiter, predDecimal, predThousands, 0)
			if err != nil {
				return err
			}
			svc.Options = dopt
			d, err := dataset.LoadCSV(predFile, dopt)
			if err != nil {
				return err
			}
			res, err := svc.PredictBatch(d, predModelType, predBiased)
			if err != nil {
				return err
			}
			if !predJSON {
				fmt.Printf("✓ Scored %d rows: approval rate %.3f, average probability %.3f (%s/%s bundle)\n",
					res.RowCount, res.ApprovalRate, res.AverageProbability, res.Variant, res.ModelType)
				return nil
			}
			out = res
		}
		b, err := utils.PrettyJSON(out)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVarP(&predModelType, "model-type", "m", "logistic", "model type: logistic|tree")
	predictCmd.Flags().BoolVar(&predBiased, "biased", false, "use the biased bundle variant")
	predictCmd.Flags().StringVar(&predRecord, "record", "", "JSON object to score, or @path to a JSON file")
	predictCmd.Flags().StringVarP(&predFile, "file", "f", "", "CSV/TSV file to score in bulk")
	predictCmd.Flags().BoolVar(&predJSON, "json", false, "print the full result as JSON")
	predictCmd.Flags().StringVar(&predDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	predictCmd.Flags().StringVar(&predDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	predictCmd.Flags().StringVar(&predThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
}
