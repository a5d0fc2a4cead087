// Package crawl describes the documents handed over by the site crawler and
// summarizes a crawl run.
package crawl

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"regexp"
	"time"
	"unicode/utf8"
)

// Failure reasons recorded by the crawler.
const (
	ErrorFetchFailed   = "fetch_failed"
	ErrorNoMainContent = "no_main_content"
)

// Document is one crawled page.
type Document struct {
	URL string `json:"url"`
	// Status is the HTTP status, or 0 when the fetch failed.
	Status        int    `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
	ExtractedText string `json:"text,omitempty"`
	TokenCount    int    `json:"tokens"`
	// NoiseRatio is nil for pages without extracted text.
	NoiseRatio *float64 `json:"noise_ratio"`
}

// OK reports whether the page was fetched and yielded text.
func (d Document) OK() bool {
	return d.Status == http.StatusOK && d.TokenCount > 0
}

// Word characters are Unicode letters, digits and underscore.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// CountTokens counts runs of word characters.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// NoiseRatio is the share of the raw page discarded by extraction, rounded
// to three places. Lengths are counted in characters, not bytes.
func NoiseRatio(extracted, raw string) float64 {
	ratio := 1 - float64(utf8.RuneCountInString(extracted))/float64(max(utf8.RuneCountInString(raw), 1))
	return round(ratio, 3)
}

// NewDocument builds the record for a fetched page. An empty raw page is a
// failed fetch and empty extracted text means no main content was found.
func NewDocument(url, raw, extracted string) Document {
	if raw == "" {
		return Document{URL: url, Error: ErrorFetchFailed}
	}
	if extracted == "" {
		return Document{URL: url, Status: http.StatusOK, Error: ErrorNoMainContent}
	}
	ratio := NoiseRatio(extracted, raw)
	return Document{
		URL:           url,
		Status:        http.StatusOK,
		ExtractedText: extracted,
		TokenCount:    CountTokens(extracted),
		NoiseRatio:    &ratio,
	}
}

// Report summarizes a crawl run.
type Report struct {
	PagesTotal            int        `json:"pages_total"`
	PagesOK               int        `json:"pages_ok"`
	TokensTotal           int        `json:"tokens_total"`
	AvgNoiseRatio         *float64   `json:"avg_noise_ratio"`
	ThroughputPagesPerSec float64    `json:"throughput_pages_per_sec"`
	Failures              []Document `json:"failures"`
}

// Summarize reports on docs crawled in elapsed time.
func Summarize(docs []Document, elapsed time.Duration) Report {
	report := Report{
		PagesTotal: len(docs),
		Failures:   []Document{},
	}

	var noise float64
	for _, d := range docs {
		if !d.OK() {
			report.Failures = append(report.Failures, d)
			continue
		}
		report.PagesOK++
		report.TokensTotal += d.TokenCount
		if d.NoiseRatio != nil {
			noise += *d.NoiseRatio
		}
	}
	if report.PagesOK > 0 {
		avg := round(noise/float64(report.PagesOK), 3)
		report.AvgNoiseRatio = &avg
	}
	seconds := max(elapsed.Seconds(), 1e-6)
	report.ThroughputPagesPerSec = round(float64(len(docs))/seconds, 2)
	return report
}

// LoadDocuments reads a JSON array of documents.
func LoadDocuments(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return docs, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
