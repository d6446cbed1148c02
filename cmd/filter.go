package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wom-group/openings-cli/internal/quality"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Apply quality rules to an exported dataset",
	Long:  "Reads a CSV/JSON/JSONL dataset, classifies each row as Keep, Remove, Needs more information, or Needs editing, and writes the annotated rows back out.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("filter"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		rulesPath, _ := cmd.Flags().GetString("rules")
		batchPath, _ := cmd.Flags().GetString("emit-llm-batch")

		if rulesPath == "" {
			rulesPath = cfg.Quality.RulesPath
		}

		rules, err := quality.LoadRules(rulesPath)
		if err != nil {
			return err
		}

		rows, err := quality.ReadRows(input)
		if err != nil {
			return err
		}

		classifier := quality.NewClassifier(rules)
		annotated := make([]map[string]string, 0, len(rows))
		records := make([]quality.Record, 0, len(rows))

		for _, row := range rows {
			rec := quality.BuildRecord(row)
			annotated = append(annotated, quality.Annotate(rec, classifier.Classify(rec)))
			records = append(records, rec)
		}

		if err := quality.WriteRows(output, annotated); err != nil {
			return err
		}

		if batchPath != "" {
			f, err := os.Create(batchPath)
			if err != nil {
				return eris.Wrapf(err, "filter: create llm batch %s", batchPath)
			}
			defer f.Close() //nolint:errcheck
			if err := quality.EmitLLMBatch(f, records); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(annotated), output)
		if batchPath != "" {
			fmt.Fprintf(os.Stderr, "Wrote LLM batch to %s\n", batchPath)
		}
		return nil
	},
}

func init() {
	filterCmd.Flags().String("input", "", "input dataset (CSV/JSON/JSONL)")
	filterCmd.Flags().String("output", "", "output file (CSV or JSONL by extension)")
	filterCmd.Flags().String("rules", "", "YAML rules override file (default from config)")
	filterCmd.Flags().String("emit-llm-batch", "", "also write a JSONL batch for model-assisted review")
	_ = filterCmd.MarkFlagRequired("input")
	_ = filterCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(filterCmd)
}
