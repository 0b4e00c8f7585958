package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsWeaver/internal/config"
	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/ports"
)

// RSSSource polls configured RSS/Atom feeds and emits raw candidates.
// A failing feed is logged and skipped; the rest of the batch proceeds.
type RSSSource struct {
	parser *gofeed.Parser
	feeds  []config.FeedConfig
	logger *slog.Logger
}

var _ ports.CandidateSource = (*RSSSource)(nil)

// NewRSSSource wires the feed list from configuration.
func NewRSSSource(feeds []config.FeedConfig, logger *slog.Logger) *RSSSource {
	return &RSSSource{
		parser: gofeed.NewParser(),
		feeds:  feeds,
		logger: logger,
	}
}

// FetchBatch pulls every configured feed once and returns the combined
// candidate list.
func (s *RSSSource) FetchBatch(ctx context.Context) ([]domain.RawCandidate, error) {
	var batch []domain.RawCandidate

	for _, feedCfg := range s.feeds {
		parsed, err := s.parser.ParseURLWithContext(feedCfg.URL, ctx)
		if err != nil {
			s.logger.Warn("feed fetch failed", "feed", feedCfg.Name, "error", err)
			continue
		}

		for _, item := range parsed.Items {
			if item.Link == "" {
				continue
			}

			publishedAt := time.Now().UTC()
			if item.PublishedParsed != nil {
				publishedAt = item.PublishedParsed.UTC()
			}

			batch = append(batch, domain.RawCandidate{
				URL:             item.Link,
				Title:           item.Title,
				Description:     item.Description,
				SourceName:      feedCfg.Name,
				CredibilityTier: feedCfg.CredibilityTier,
				PublishedAt:     publishedAt,
			})
		}
		s.logger.Debug("feed fetched", "feed", feedCfg.Name, "items", len(parsed.Items))
	}

	return batch, nil
}
