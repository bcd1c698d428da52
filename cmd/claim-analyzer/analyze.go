package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a research question against the academic literature",
	Long: `Analyze formulates database-specific queries for a research question,
searches the enabled academic APIs concurrently, applies exclusion criteria
and data extraction, and prints the top-ranked papers with analysis,
supporting quotes, and BibTeX as JSON.

The request comes either from --request (a YAML file, which may also carry
exclusion criteria and extraction fields) or from one or more --query flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		log, err := newLogger(verbose)
		if err != nil {
			return err
		}
		defer log.Sync()

		var req Request
		if path, _ := cmd.Flags().GetString("request"); path != "" {
			reqs, err := loadRequestFile(path)
			if err != nil {
				return err
			}
			if len(reqs) != 1 {
				return fmt.Errorf("analyze expects a single request, %s has %d (use batch)", path, len(reqs))
			}
			req = reqs[0]
		}

		if queries, _ := cmd.Flags().GetStringArray("query"); len(queries) > 0 {
			req.Queries = queries
			req.Query = ""
		}
		if guidance, _ := cmd.Flags().GetString("guidance"); guidance != "" {
			req.RankingGuidance = guidance
		}
		if n, _ := cmd.Flags().GetInt("num-queries"); n > 0 {
			req.NumQueries = n
		}
		if n, _ := cmd.Flags().GetInt("papers-per-query"); n > 0 {
			req.PapersPerQuery = n
		}
		if n, _ := cmd.Flags().GetInt("top"); n > 0 {
			req.NumPapersToReturn = n
		}
		if req.Query == "" && len(req.Queries) == 0 {
			return fmt.Errorf("no research query: pass --query or --request")
		}

		pipeline, err := buildPipeline(log)
		if err != nil {
			return err
		}

		analysis := pipeline.AnalyzeRequest(cmd.Context(), req.Options())

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		if errMsg, ok := analysis.Metadata["error"].(string); ok {
			return fmt.Errorf("analysis incomplete: %s", errMsg)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringArray("query", nil, "research question (repeatable for multi-query requests)")
	analyzeCmd.Flags().String("request", "", "YAML request file")
	analyzeCmd.Flags().String("guidance", "", "free-text ranking guidance")
	analyzeCmd.Flags().Int("num-queries", 0, "queries to generate per platform")
	analyzeCmd.Flags().Int("papers-per-query", 0, "papers to harvest per query")
	analyzeCmd.Flags().Int("top", 0, "number of top-ranked papers to return")
	analyzeCmd.Flags().String("output", "", "write the JSON report to a file instead of stdout")
	analyzeCmd.Flags().Bool("verbose", false, "verbose logging")

	rootCmd.AddCommand(analyzeCmd)
}
