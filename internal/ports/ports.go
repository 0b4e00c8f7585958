package ports

import (
	"context"
	"time"

	"NewsWeaver/internal/domain"
)

// CandidateSource pulls the fresh batch of raw candidates for a cycle.
type CandidateSource interface {
	FetchBatch(ctx context.Context) ([]domain.RawCandidate, error)
}

// Scorer asks the external scoring service for an importance score (0-1000).
type Scorer interface {
	Score(ctx context.Context, candidate domain.RawCandidate) (int, error)
}

// Synthesizer turns a source bundle into article prose via the external
// text-synthesis service.
type Synthesizer interface {
	Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.SynthesisResult, error)
}

// Downloader fetches full body text for a source URL, best effort.
type Downloader interface {
	Download(ctx context.Context, rawURL string) (string, error)
}

// ItemRepository persists source items keyed by normalized URL.
type ItemRepository interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	SaveItem(ctx context.Context, item domain.SourceItem) error
	ClusterMembers(ctx context.Context, clusterID string) ([]domain.SourceItem, error)
}

// ClusterRepository persists clusters and their derived aggregates.
type ClusterRepository interface {
	OpenClusters(ctx context.Context) ([]domain.Cluster, error)
	SaveCluster(ctx context.Context, cluster domain.Cluster) error
	UpdateAggregates(ctx context.Context, cluster domain.Cluster) error
	CloseCluster(ctx context.Context, id string, at time.Time) error
	SetSynthesisFailures(ctx context.Context, id string, count int) error
}

// ArticleRepository owns the one-row-per-cluster published article and its
// append-only update log. CommitVersion is transactional: the article
// upsert, the log append, and the cluster snapshot land together or not
// at all.
type ArticleRepository interface {
	CurrentVersion(ctx context.Context, clusterID string) (int, error)
	CommitVersion(ctx context.Context, article domain.PublishedArticle, entry domain.UpdateLogEntry) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
