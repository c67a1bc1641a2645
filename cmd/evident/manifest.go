// Copyright DTMBX, 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DTMBX/Evident-sub002/internal/manifest"
	"github.com/DTMBX/Evident-sub002/internal/store"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print a document's audit manifest",
	Long: `Manifest looks up the JSON audit record for a document, by canonical
content hash (--sha) or by document id (--doc). Manifests mirror the
relational rows so external audit can run without querying the store.`,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().String("sha", "", "canonical content SHA-256")
	manifestCmd.Flags().Int64("doc", 0, "document id")

	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	sha, _ := cmd.Flags().GetString("sha")
	docID, _ := cmd.Flags().GetInt64("doc")
	if sha == "" && docID == 0 {
		return fmt.Errorf("provide --sha or --doc")
	}
	if sha != "" && docID != 0 {
		return fmt.Errorf("--sha and --doc are mutually exclusive")
	}

	dir := dataDir(cmd)

	if docID != 0 {
		st, err := store.Open(types.StoreConfig{DataDir: dir}, store.NewBodyCache(0))
		if err != nil {
			return err
		}
		defer st.Close()

		doc, err := st.GetDocument(cmd.Context(), docID)
		if err != nil {
			return err
		}
		sha = doc.CanonicalSHA256
	}

	mw, err := manifest.NewWriter(dir)
	if err != nil {
		return err
	}
	rec, err := mw.Read(sha)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
