// Copyright DTMBX, 2026. All rights reserved.

package analyze

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

var sentenceSplit = regexp.MustCompile(`[.!?]\s+|\n+`)

// Extractive is a deterministic sentence-ranking generator: it selects
// the passage sentences most relevant to the query and cites each one
// with its source marker. It needs no model or network and serves as the
// default until an LLM backend is plugged in behind Generator.
type Extractive struct {
	// MaxSentences caps the response length (default 3).
	MaxSentences int
}

func (e *Extractive) Name() string { return "extractive" }

type scoredSentence struct {
	block    int
	position int
	text     string
	score    float64
}

// Generate ranks every sentence in the blocks by query-term overlap and
// corpus word frequency, then emits the top sentences in passage order,
// each followed by its block's citation marker. Identical inputs always
// produce identical output.
func (e *Extractive) Generate(ctx context.Context, query string, blocks []Block) (string, error) {
	max := e.MaxSentences
	if max <= 0 {
		max = 3
	}

	queryTerms := make(map[string]bool)
	for _, w := range tokenize(query) {
		queryTerms[w] = true
	}

	// Word frequencies across all blocks weight sentences toward the
	// vocabulary the passages themselves emphasize.
	freq := make(map[string]int)
	var sentences []scoredSentence
	for bi, b := range blocks {
		for si, raw := range sentenceSplit.Split(b.Text, -1) {
			s := strings.TrimSpace(raw)
			if len(s) < 20 {
				continue
			}
			for _, w := range tokenize(s) {
				freq[w]++
			}
			sentences = append(sentences, scoredSentence{block: bi, position: si, text: s})
		}
	}
	if len(sentences) == 0 {
		return noContextResponse, nil
	}

	for i := range sentences {
		words := tokenize(sentences[i].text)
		var score float64
		for _, w := range words {
			if queryTerms[w] {
				score += 3
			}
			score += float64(freq[w]) / float64(len(sentences))
		}
		sentences[i].score = score / float64(len(words)+1)
	}

	sort.SliceStable(sentences, func(i, j int) bool {
		if sentences[i].score != sentences[j].score {
			return sentences[i].score > sentences[j].score
		}
		if sentences[i].block != sentences[j].block {
			return sentences[i].block < sentences[j].block
		}
		return sentences[i].position < sentences[j].position
	})
	picked := sentences
	if len(picked) > max {
		picked = picked[:max]
	}

	// Present selections in passage order, not score order.
	sort.Slice(picked, func(i, j int) bool {
		if picked[i].block != picked[j].block {
			return picked[i].block < picked[j].block
		}
		return picked[i].position < picked[j].position
	})

	var b strings.Builder
	for i, s := range picked {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimRight(s.text, "."))
		b.WriteString(". ")
		b.WriteString(blocks[s.block].Marker)
	}
	return b.String(), nil
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}
