package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsWeaver/internal/ports"
)

const maxBodyRunes = 12000

// Extractor downloads an article page and reduces it to paragraph text
// for the synthesis bundle. Best effort only: callers treat any error as
// "no body text available".
type Extractor struct {
	client *http.Client
}

var _ ports.Downloader = (*Extractor)(nil)

// NewExtractor wires an HTTP client; a nil client gets a bounded default.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client}
}

// Download fetches the URL and returns concatenated paragraph text,
// capped at a fixed length.
func (e *Extractor) Download(ctx context.Context, rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsWeaver/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var paragraphs []string
	doc.Find("article p, main p, p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) >= 40 {
			paragraphs = append(paragraphs, text)
		}
	})

	body := strings.Join(paragraphs, "\n\n")
	runes := []rune(body)
	if len(runes) > maxBodyRunes {
		body = string(runes[:maxBodyRunes])
	}
	return body, nil
}
