// Copyright DTMBX, 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DTMBX/Evident-sub002/internal/store"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Search canonical text and return citation-ready passages",
	Long: `Retrieve runs a full-text query against the document index and prints
ranked passages. Every passage carries full document identity, page and
byte-range location, and the literal snippet, so it can be cited without
consulting the store again.`,
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().Int("top-k", 0, "maximum passages to return (0 = engine default)")
	retrieveCmd.Flags().Float64("min-score", 0, "relevance floor; lower-scoring passages are dropped")
	retrieveCmd.Flags().Bool("json", false, "output passages as JSON")

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a search query")
	}
	query := strings.Join(args, " ")

	cfg := pipelineConfig(cmd).Store
	topK, _ := cmd.Flags().GetInt("top-k")
	if cmd.Flags().Changed("min-score") {
		cfg.MinScore, _ = cmd.Flags().GetFloat64("min-score")
	}

	st, err := store.Open(cfg, store.NewBodyCache(cfg.BodyCacheSize))
	if err != nil {
		return err
	}
	defer st.Close()

	passages, err := st.Retrieve(cmd.Context(), query, topK)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatPassages(passages, jsonOutput)
}

func formatPassages(passages []types.Passage, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(passages)
	}

	if len(passages) == 0 {
		fmt.Println("No passages found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-24s  %-5s  %-12s  %s\n",
		"Rank", "Doc", "File", "Page", "Range", "Snippet")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for i, p := range passages {
		snippet := strings.ReplaceAll(p.Snippet, "\n", " ")
		if len(snippet) > 44 {
			snippet = snippet[:41] + "..."
		}
		file := p.Filename
		if len(file) > 24 {
			file = file[:21] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6d  %-24s  %-5d  %5d-%-6d  %s\n",
			i+1, p.DocumentID, file, p.PageNumber, p.TextStart, p.TextEnd, snippet)
	}

	fmt.Fprintf(os.Stdout, "\n%d passages\n", len(passages))
	return nil
}
