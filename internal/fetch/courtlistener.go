// Copyright DTMBX, 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DTMBX/Evident-sub002/internal/httputil"
	"github.com/DTMBX/Evident-sub002/pkg/types"
)

// courtListenerAPIBase is the opinion detail endpoint.
const courtListenerAPIBase = "https://www.courtlistener.com/api/rest/v4/opinions/"

// CourtListener fetches opinion content from the CourtListener REST API.
// The zero value is not usable; construct with NewCourtListener.
type CourtListener struct {
	client  *http.Client
	baseURL string
	token   string
	cfg     types.HTTPConfig
}

// NewCourtListener returns a fetcher for the public CourtListener API.
// The token is optional; anonymous requests get a lower rate limit.
func NewCourtListener(client *http.Client, token string, cfg types.HTTPConfig) *CourtListener {
	return &CourtListener{
		client:  client,
		baseURL: courtListenerAPIBase,
		token:   token,
		cfg:     cfg,
	}
}

// opinionResponse is the subset of the opinion payload the pipeline uses.
// CourtListener serves one of several body fields depending on how the
// opinion was sourced; html_with_citations is the richest, plain_text the
// most common.
type opinionResponse struct {
	HTMLWithCitations string `json:"html_with_citations"`
	HTMLLawbox        string `json:"html_lawbox"`
	HTML              string `json:"html"`
	PlainText         string `json:"plain_text"`
}

// Opinion returns a Func fetching the opinion with the given id. The
// returned content type reflects which body field the API populated, so
// the canonicalizer strips markup only when there is markup.
func (c *CourtListener) Opinion(opinionID string) Func {
	return func(ctx context.Context) ([]byte, string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+opinionID+"/", nil)
		if err != nil {
			return nil, "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}

		resp, err := httputil.DoWithRetry(ctx, c.client, req, 0)
		if err != nil {
			return nil, "", fmt.Errorf("CourtListener request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("CourtListener returned HTTP %d for opinion %s", resp.StatusCode, opinionID)
		}

		var op opinionResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&op); err != nil {
			return nil, "", fmt.Errorf("parsing CourtListener response: %w", err)
		}

		switch {
		case op.HTMLWithCitations != "":
			return []byte(op.HTMLWithCitations), "text/html", nil
		case op.HTMLLawbox != "":
			return []byte(op.HTMLLawbox), "text/html", nil
		case op.HTML != "":
			return []byte(op.HTML), "text/html", nil
		case op.PlainText != "":
			return []byte(op.PlainText), "text/plain", nil
		}
		return nil, "", fmt.Errorf("opinion %s has no body content", opinionID)
	}
}
