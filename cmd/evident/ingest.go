// Copyright DTMBX, 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/DTMBX/Evident-sub002/internal/blob"
	"github.com/DTMBX/Evident-sub002/internal/cite"
	"github.com/DTMBX/Evident-sub002/internal/fetch"
	"github.com/DTMBX/Evident-sub002/internal/ingest"
	"github.com/DTMBX/Evident-sub002/internal/manifest"
	"github.com/DTMBX/Evident-sub002/internal/store"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch, canonicalize, and index documents",
	Long: `Ingest runs the full pipeline for one document (--source/--key plus
--file or --opinion-id) or for a batch file (--batch). Re-ingesting
identical content is a no-op: same doc_id, same citations, no new
provenance event.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("source", "", "source system (e.g. courtlistener, upload)")
	ingestCmd.Flags().String("key", "", "stable key within the source system")
	ingestCmd.Flags().String("file", "", "ingest a local file")
	ingestCmd.Flags().String("opinion-id", "", "ingest a CourtListener opinion by id")
	ingestCmd.Flags().String("batch", "", "YAML batch file of documents to ingest")
	ingestCmd.Flags().Int("concurrency", 4, "concurrent ingestions for --batch")
	ingestCmd.Flags().String("idempotency-key", "", "explicit provenance inputs key for retried attempts")
	ingestCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	ingestCmd.Flags().String("api-token", "", "CourtListener API token (default: .secrets/courtlistener-api-token)")

	ingestCmd.Flags().String("title", "", "document title")
	ingestCmd.Flags().String("court", "", "issuing court")
	ingestCmd.Flags().String("doc-type", "", "document type (opinion, filing, evidence)")
	ingestCmd.Flags().String("jurisdiction", "", "jurisdiction")
	ingestCmd.Flags().String("published", "", "published date (YYYY-MM-DD)")
	ingestCmd.Flags().String("license", "", "license of the source material")

	rootCmd.AddCommand(ingestCmd)
}

// batchFile is the on-disk format accepted by --batch.
type batchFile struct {
	Items []batchItem `yaml:"items"`
}

type batchItem struct {
	Source         string               `yaml:"source"`
	Key            string               `yaml:"key"`
	File           string               `yaml:"file,omitempty"`
	OpinionID      string               `yaml:"opinion_id,omitempty"`
	IdempotencyKey string               `yaml:"idempotency_key,omitempty"`
	Fields         types.DocumentFields `yaml:"fields,omitempty"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(cmd)

	ing, cleanup, err := buildIngestor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	cl := courtListenerClient(cmd, cfg.Ingest)

	if batchPath, _ := cmd.Flags().GetString("batch"); batchPath != "" {
		return runIngestBatch(cmd, cfg, ing, cl, batchPath)
	}

	source, _ := cmd.Flags().GetString("source")
	key, _ := cmd.Flags().GetString("key")
	if source == "" || key == "" {
		return fmt.Errorf("provide --source and --key (or --batch)")
	}

	req := ingest.Request{
		Source:    source,
		SourceKey: key,
		Fields:    fieldsFromFlags(cmd),
	}
	req.IdempotencyKey, _ = cmd.Flags().GetString("idempotency-key")

	file, _ := cmd.Flags().GetString("file")
	opinionID, _ := cmd.Flags().GetString("opinion-id")
	switch {
	case file != "" && opinionID != "":
		return fmt.Errorf("--file and --opinion-id are mutually exclusive")
	case file != "":
		req.Fetch = fetch.FromFile(file)
	case opinionID != "":
		req.Fetch = cl.Opinion(opinionID)
	default:
		return fmt.Errorf("provide --file or --opinion-id")
	}

	res, err := ing.Ingest(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "ingested %s/%s (doc %d, %d citations)\n",
		source, key, res.DocID, res.CitationCount)
	if !res.EventAppended {
		fmt.Fprintln(os.Stdout, "content unchanged, no new provenance event")
	}
	return nil
}

func runIngestBatch(cmd *cobra.Command, cfg types.PipelineConfig, ing *ingest.Ingestor, cl *fetch.CourtListener, batchPath string) error {
	data, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("parsing batch file: %w", err)
	}
	if len(bf.Items) == 0 {
		return fmt.Errorf("batch file has no items")
	}

	// Remote fetches within a batch are spaced out to stay polite to the
	// source API; local files need no throttling.
	limiter := fetch.NewLimiter(cfg.Ingest.FetchDelay)

	reqs := make([]ingest.Request, 0, len(bf.Items))
	for i, item := range bf.Items {
		req := ingest.Request{
			Source:         item.Source,
			SourceKey:      item.Key,
			Fields:         item.Fields,
			IdempotencyKey: item.IdempotencyKey,
		}
		switch {
		case item.File != "" && item.OpinionID != "":
			return fmt.Errorf("batch item %d: file and opinion_id are mutually exclusive", i+1)
		case item.File != "":
			req.Fetch = fetch.FromFile(item.File)
		case item.OpinionID != "":
			req.Fetch = limiter.Wrap(cl.Opinion(item.OpinionID))
		default:
			return fmt.Errorf("batch item %d: provide file or opinion_id", i+1)
		}
		reqs = append(reqs, req)
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 || !cmd.Flags().Changed("concurrency") {
		concurrency = cfg.Ingest.Concurrency
	}
	result := ing.IngestBatch(cmd.Context(), reqs, concurrency, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed ingestion", result.Failed)
	}
	return nil
}

// buildIngestor wires the pipeline components rooted at the data
// directory. The returned cleanup closes the store.
func buildIngestor(cfg types.PipelineConfig) (*ingest.Ingestor, func(), error) {
	dir := cfg.Ingest.DataDir

	st, err := store.Open(cfg.Store, store.NewBodyCache(cfg.Store.BodyCacheSize))
	if err != nil {
		return nil, nil, err
	}
	mw, err := manifest.NewWriter(dir)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	ing := &ingest.Ingestor{
		Blobs:     blob.NewStore(dir),
		Store:     st,
		Extractor: cite.NewExtractor(),
		Manifests: mw,
		Version:   version,
	}
	return ing, func() { st.Close() }, nil
}

func courtListenerClient(cmd *cobra.Command, cfg types.IngestConfig) *fetch.CourtListener {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	token, _ := cmd.Flags().GetString("api-token")
	token = secretDefault("courtlistener-api-token", token)

	httpCfg := types.HTTPConfig{Timeout: timeout, UserAgent: cfg.UserAgent}
	return fetch.NewCourtListener(&http.Client{Timeout: timeout}, token, httpCfg)
}

func fieldsFromFlags(cmd *cobra.Command) types.DocumentFields {
	f := types.DocumentFields{}
	f.Title, _ = cmd.Flags().GetString("title")
	f.Court, _ = cmd.Flags().GetString("court")
	f.DocType, _ = cmd.Flags().GetString("doc-type")
	f.Jurisdiction, _ = cmd.Flags().GetString("jurisdiction")
	f.PublishedDate, _ = cmd.Flags().GetString("published")
	f.License, _ = cmd.Flags().GetString("license")
	return f
}
