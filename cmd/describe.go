package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/KaramelBytes/fairloan-cli/internal/analysis"
	"github.com/KaramelBytes/fairloan-cli/internal/dataset"
	"github.com/KaramelBytes/fairloan-cli/internal/schema"
	"github.com/spf13/cobra"
)

var (
	descProfile    string
	descOutputPath string
	descDelimiter  string
	descDecimal    string
	descThousands  string
	descMaxRows    int
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Summarize a CSV/TSV and show how its columns map to a schema profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := datasetOptions(descDelimiter, descDecimal, descThousands, descMaxRows)
		if err != nil {
			return err
		}
		d, err := dataset.LoadCSV(args[0], opt)
		if err != nil {
			return err
		}
		var res *schema.Resolution
		if descProfile != "" {
			p, err := schema.Lookup(descProfile)
			if err != nil {
				return err
			}
			res, _, err = p.Resolve(d)
			if err != nil {
				return err
			}
		} else if res, err = schema.Detect(d); err != nil {
			var mc *schema.MissingColumnError
			if !errors.As(err, &mc) {
				return err
			}
			fmt.Fprintf(os.Stderr, "⚠ Warning: no schema profile matches: %v\n", err)
		}
		md := analysis.Describe(d, res, opt).Markdown()
		if descOutputPath != "" {
			if err := os.WriteFile(descOutputPath, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Printf("✓ Wrote description to %s\n", descOutputPath)
			return nil
		}
		fmt.Println(md)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&descProfile, "profile", "", "schema profile to resolve (auto-detect if omitted)")
	describeCmd.Flags().StringVarP(&descOutputPath, "output", "o", "", "optional path to write the description (Markdown)")
	describeCmd.Flags().StringVar(&descDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	describeCmd.Flags().StringVar(&descDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	describeCmd.Flags().StringVar(&descThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	describeCmd.Flags().IntVar(&descMaxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
}
