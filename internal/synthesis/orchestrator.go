package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/lifecycle"
	"NewsWeaver/internal/ports"
)

// Options bound the external synthesis calls.
type Options struct {
	// BundleSize caps how many members are sent to the synthesis service.
	// Members beyond the cap stay out of the prompt but still count toward
	// the cluster's source count.
	BundleSize int
	// CallTimeout bounds each external call; a timed-out call is a Failure,
	// never a blocking wait.
	CallTimeout time.Duration
	// Workers bounds how many clusters synthesize in parallel.
	Workers int
}

// DefaultOptions returns the starting configuration.
func DefaultOptions() Options {
	return Options{
		BundleSize:  8,
		CallTimeout: 30 * time.Second,
		Workers:     4,
	}
}

// Orchestrator assembles source bundles, invokes the external synthesis
// service, validates results, and commits article versions atomically.
type Orchestrator struct {
	synthesizer ports.Synthesizer
	downloader  ports.Downloader
	items       ports.ItemRepository
	clusters    ports.ClusterRepository
	articles    ports.ArticleRepository
	opts        Options
	logger      *slog.Logger
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Synthesizer ports.Synthesizer
	Downloader  ports.Downloader
	Items       ports.ItemRepository
	Clusters    ports.ClusterRepository
	Articles    ports.ArticleRepository
	Logger      *slog.Logger
}

// NewOrchestrator builds the orchestration component.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.BundleSize <= 0 {
		opts.BundleSize = DefaultOptions().BundleSize
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	return &Orchestrator{
		synthesizer: deps.Synthesizer,
		downloader:  deps.Downloader,
		items:       deps.Items,
		clusters:    deps.Clusters,
		articles:    deps.Articles,
		opts:        opts,
		logger:      deps.Logger,
	}
}

// Run processes the cycle's synthesis jobs. Clusters are independent, so
// jobs run in parallel bounded by the worker limit; one cluster's failure
// never aborts the others.
func (o *Orchestrator) Run(ctx context.Context, jobs []lifecycle.Job) {
	if len(jobs) == 0 {
		return
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(o.opts.Workers)

	for _, job := range jobs {
		job := job
		group.Go(func() error {
			if err := o.runOne(ctx, job); err != nil {
				o.logger.Error("synthesis failed", "cluster", job.Cluster.ID, "reason", job.Reason, "error", err)
				o.recordFailure(ctx, job.Cluster)
			}
			return nil
		})
	}

	_ = group.Wait()
}

func (o *Orchestrator) runOne(ctx context.Context, job lifecycle.Job) error {
	members, err := o.items.ClusterMembers(ctx, job.Cluster.ID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	if len(members) == 0 {
		return fmt.Errorf("cluster %s has no members", job.Cluster.ID)
	}

	oldVersion, err := o.articles.CurrentVersion(ctx, job.Cluster.ID)
	if err != nil {
		return fmt.Errorf("current version: %w", err)
	}

	bundle := o.buildBundle(ctx, members)

	callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	result, err := o.synthesizer.Synthesize(callCtx, domain.SynthesisRequest{
		ClusterID:    job.Cluster.ID,
		PriorVersion: oldVersion,
		Sources:      bundle,
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	if err := ValidateResult(result); err != nil {
		return fmt.Errorf("invalid result: %w", err)
	}

	now := time.Now().UTC()
	article := domain.PublishedArticle{
		ClusterID:     job.Cluster.ID,
		VersionNumber: oldVersion + 1,
		TitleVariants: result.TitleVariants,
		BodyVariants:  result.BodyVariants,
		Extras:        result.Extras,
		LastUpdatedAt: now,
	}
	entry := domain.UpdateLogEntry{
		ArticleID:    job.Cluster.ID,
		Reason:       job.Reason,
		SourcesAdded: job.Cluster.SourcesSinceVersion(),
		OldVersion:   oldVersion,
		NewVersion:   oldVersion + 1,
		TriggeredAt:  now,
	}

	if err := o.articles.CommitVersion(ctx, article, entry); err != nil {
		return fmt.Errorf("commit version: %w", err)
	}

	o.logger.Info("article committed",
		"cluster", job.Cluster.ID,
		"version", article.VersionNumber,
		"reason", job.Reason,
		"sources_added", entry.SourcesAdded,
		"bundle", len(bundle))
	return nil
}

// buildBundle selects the members sent to the synthesis service: importance
// score descending, credibility tier ascending, capped at BundleSize.
// Missing body text is fetched best-effort; a fetch failure leaves the
// member on title/description only.
func (o *Orchestrator) buildBundle(ctx context.Context, members []domain.SourceItem) []domain.BundleSource {
	ranked := make([]domain.SourceItem, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].ImportanceScore != ranked[j].ImportanceScore {
			return ranked[i].ImportanceScore > ranked[j].ImportanceScore
		}
		return ranked[i].CredibilityTier < ranked[j].CredibilityTier
	})

	if len(ranked) > o.opts.BundleSize {
		ranked = ranked[:o.opts.BundleSize]
	}

	bundle := make([]domain.BundleSource, 0, len(ranked))
	for _, member := range ranked {
		body := member.BodyText
		if body == "" && o.downloader != nil {
			fetched, err := o.downloader.Download(ctx, member.NormalizedURL)
			if err != nil {
				o.logger.Debug("body fetch failed", "url", member.NormalizedURL, "error", err)
			} else {
				body = fetched
			}
		}
		bundle = append(bundle, domain.BundleSource{
			Title:           member.Title,
			BodyText:        body,
			SourceName:      member.SourceName,
			ImportanceScore: member.ImportanceScore,
			PublishedAt:     member.PublishedAt,
		})
	}
	return bundle
}

func (o *Orchestrator) recordFailure(ctx context.Context, cluster domain.Cluster) {
	if err := o.clusters.SetSynthesisFailures(ctx, cluster.ID, cluster.SynthesisFailures+1); err != nil {
		o.logger.Error("record synthesis failure", "cluster", cluster.ID, "error", err)
	}
}
