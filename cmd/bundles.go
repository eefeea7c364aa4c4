package cmd

import (
	"fmt"

	"github.com/KaramelBytes/fairloan-cli/internal/bundle"
	"github.com/KaramelBytes/fairloan-cli/internal/engine"
	"github.com/KaramelBytes/fairloan-cli/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var bundlesShowYAML bool

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "Inspect stored model bundles",
}

var bundlesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored bundles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := bundle.NewStore(bundleRoot(), logger)
		entries, err := store.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("(no bundles under %s)\n", store.Root)
			return nil
		}
		for _, e := range entries {
			fmt.Printf("- %s/%s: %d bytes, %s\n", e.Variant, e.ModelType, e.Size, e.Modified.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var bundlesShowCmd = &cobra.Command{
	Use:   "show <variant> <model_type>",
	Short: "Print the training metrics of a stored bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := bundle.ParseVariant(args[0])
		if err != nil {
			return err
		}
		mt, err := engine.ParseModelType(args[1])
		if err != nil {
			return err
		}
		m, err := bundle.NewStore(bundleRoot(), logger).Metadata(v, string(mt))
		if err != nil {
			return err
		}
		var out []byte
		if bundlesShowYAML {
			out, err = yaml.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
		} else {
			out, err = utils.PrettyJSON(m)
			if err != nil {
				return err
			}
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bundlesCmd)
	bundlesCmd.AddCommand(bundlesListCmd)
	bundlesCmd.AddCommand(bundlesShowCmd)
	bundlesShowCmd.Flags().BoolVar(&bundlesShowYAML, "yaml", false, "print as YAML instead of JSON")
}
