package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch <request-file>",
	Short: "Process a YAML file of research requests and write JSON reports",
	Long: `Batch reads a YAML file holding a requests list, runs each request
through the full pipeline sequentially, and writes one timestamped JSON
report containing every analysis to the output directory. A request that
fails is recorded in the report and does not abort the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		defer log.Sync()

		requests, err := loadRequestFile(args[0])
		if err != nil {
			return err
		}

		pipeline, err := buildPipeline(log)
		if err != nil {
			return err
		}

		results := make(map[string]*types.RequestAnalysis, len(requests))
		for i, req := range requests {
			label := req.Query
			if label == "" && len(req.Queries) > 0 {
				label = req.Queries[0]
			}
			if label == "" {
				label = fmt.Sprintf("request_%d", i+1)
			}
			log.Info("processing request",
				zap.Int("index", i+1),
				zap.Int("total", len(requests)),
				zap.String("query", label))
			results[label] = pipeline.AnalyzeRequest(cmd.Context(), req.Options())
		}

		outDir, _ := cmd.Flags().GetString("output-dir")
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		path := filepath.Join(outDir,
			fmt.Sprintf("claim_analysis_results_%s.json", reportTimestamp(time.Now())))

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating report: %w", err)
		}
		defer f.Close()

		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Results stored in:", path)
		for label, analysis := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d queries, %d papers found, %d ranked\n",
				label, len(analysis.Queries), len(analysis.SearchResults), len(analysis.RankedPapers))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("output-dir", "results", "directory for JSON reports")
	batchCmd.Flags().Bool("verbose", false, "verbose logging")

	rootCmd.AddCommand(batchCmd)
}
