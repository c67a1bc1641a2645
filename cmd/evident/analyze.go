// Copyright DTMBX, 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DTMBX/Evident-sub002/internal/analyze"
	"github.com/DTMBX/Evident-sub002/internal/store"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query]",
	Short: "Answer a query grounded in retrieved passages",
	Long: `Analyze retrieves the most relevant passages for a query, generates a
response grounded in them, and persists a citation record for every
validated citation marker. Markers that do not resolve to a retrieved
passage are dropped: the pipeline never cites a document it was not
shown.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Int("top-k", 0, "maximum passages to ground on (0 = engine default)")
	analyzeCmd.Flags().Int("max-sentences", 0, "response length cap for the extractive generator")
	analyzeCmd.Flags().Bool("json", false, "output the analysis as JSON")

	rootCmd.AddCommand(analyzeCmd)
}

// analysisOutput is the JSON shape printed with --json.
type analysisOutput struct {
	AnalysisID string                 `json:"analysis_id"`
	Query      string                 `json:"query"`
	Response   string                 `json:"response"`
	Citations  []types.CitationRecord `json:"citations"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a query")
	}
	query := strings.Join(args, " ")

	cfg := pipelineConfig(cmd)
	topK, _ := cmd.Flags().GetInt("top-k")
	if topK <= 0 {
		topK = cfg.Analysis.MaxPassages
	}
	maxSentences, _ := cmd.Flags().GetInt("max-sentences")
	if maxSentences <= 0 {
		maxSentences = cfg.Analysis.MaxSentences
	}

	st, err := store.Open(cfg.Store, store.NewBodyCache(cfg.Store.BodyCacheSize))
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	passages, err := st.Retrieve(ctx, query, topK)
	if err != nil {
		return err
	}

	analyzer := &analyze.Analyzer{
		Generator: &analyze.Extractive{MaxSentences: maxSentences},
		AuthorityFor: func(docID int64) (string, string) {
			doc, err := st.GetDocument(ctx, docID)
			if err != nil {
				return "", ""
			}
			return doc.Title, doc.Court
		},
	}

	res, err := analyzer.Analyze(ctx, query, passages)
	if err != nil {
		return err
	}
	if err := st.SaveCitationRecords(ctx, res.Records); err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysisOutput{
			AnalysisID: res.AnalysisID,
			Query:      query,
			Response:   res.Response,
			Citations:  res.Records,
		})
	}

	fmt.Fprintf(os.Stdout, "Analysis %s\n\n%s\n", res.AnalysisID, res.Response)
	if len(res.Records) == 0 {
		return nil
	}

	fmt.Fprintf(os.Stdout, "\n%-6s  %-5s  %-12s  %s\n", "Doc", "Page", "Range", "Authority")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 70))
	for _, r := range res.Records {
		authority := r.AuthorityName
		if authority == "" {
			authority = "-"
		}
		fmt.Fprintf(os.Stdout, "%-6d  %-5d  %5d-%-6d  %s\n",
			r.DocumentID, r.PageNumber, r.TextStart, r.TextEnd, authority)
	}
	fmt.Fprintf(os.Stdout, "\n%d citations persisted\n", len(res.Records))
	return nil
}
