package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"NewsWeaver/internal/cluster"
	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/lifecycle"
	"NewsWeaver/internal/normalize"
	"NewsWeaver/internal/ports"
	"NewsWeaver/internal/scoring"
	"NewsWeaver/internal/synthesis"
)

// PipelineDeps wires all driven adapters into the cycle pipeline.
type PipelineDeps struct {
	Source       ports.CandidateSource
	Scorer       ports.Scorer
	Items        ports.ItemRepository
	Clusters     ports.ClusterRepository
	Articles     ports.ArticleRepository
	Engine       *cluster.Engine
	Lifecycle    *lifecycle.Manager
	Orchestrator *synthesis.Orchestrator
	ScoreWorkers int
	Logger       *slog.Logger
}

// Pipeline implements one processing cycle: normalize, cluster, evaluate
// lifecycle, synthesize. Data flows forward only; no stage re-enters an
// earlier one within a cycle.
type Pipeline struct {
	source       ports.CandidateSource
	scorer       ports.Scorer
	items        ports.ItemRepository
	clusters     ports.ClusterRepository
	articles     ports.ArticleRepository
	engine       *cluster.Engine
	lifecycle    *lifecycle.Manager
	orchestrator *synthesis.Orchestrator
	scoreWorkers int
	logger       *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.ScoreWorkers
	if workers <= 0 {
		workers = 8
	}
	return &Pipeline{
		source:       deps.Source,
		scorer:       deps.Scorer,
		items:        deps.Items,
		clusters:     deps.Clusters,
		articles:     deps.Articles,
		engine:       deps.Engine,
		lifecycle:    deps.Lifecycle,
		orchestrator: deps.Orchestrator,
		scoreWorkers: workers,
		logger:       deps.Logger,
	}
}

// RunCycle executes one full processing cycle at the given wall-clock time.
// Failures are isolated per item and per cluster; the cycle always
// completes for unaffected units.
func (p *Pipeline) RunCycle(ctx context.Context, now time.Time) error {
	if p.source == nil {
		return nil
	}

	candidates, err := p.source.FetchBatch(ctx)
	if err != nil {
		return fmt.Errorf("fetch batch: %w", err)
	}
	p.logger.Debug("cycle started", "candidates", len(candidates))

	items := p.normalizeBatch(ctx, candidates, now)

	items, err = p.discardDuplicates(ctx, items)
	if err != nil {
		return fmt.Errorf("dedup items: %w", err)
	}
	if len(items) > 0 {
		p.logger.Debug("clustering items", "count", len(items))
	}

	pool, err := p.clusters.OpenClusters(ctx)
	if err != nil {
		return fmt.Errorf("load open clusters: %w", err)
	}

	pool, touched := p.assignAll(ctx, items, pool, now)
	pool = p.refreshAggregates(ctx, pool, touched, now)
	pool, published := p.publishedSet(ctx, pool)

	decision := p.lifecycle.Evaluate(pool, published, now)
	for _, c := range decision.Close {
		if err := p.clusters.CloseCluster(ctx, c.ID, now); err != nil {
			p.logger.Error("close cluster", "cluster", c.ID, "error", err)
		}
	}

	p.orchestrator.Run(ctx, decision.Jobs)

	p.logger.Info("cycle finished",
		"items", len(items),
		"clusters_touched", len(touched),
		"closed", len(decision.Close),
		"synthesized", len(decision.Jobs))
	return nil
}

// RequestSynthesis forces a synthesis run for one active cluster outside
// the regular lifecycle triggers. The committed version is logged with the
// manual trigger reason.
func (p *Pipeline) RequestSynthesis(ctx context.Context, clusterID string) error {
	pool, err := p.clusters.OpenClusters(ctx)
	if err != nil {
		return fmt.Errorf("load open clusters: %w", err)
	}

	for _, c := range pool {
		if c.ID != clusterID {
			continue
		}
		p.logger.Info("manual synthesis requested", "cluster", clusterID)
		p.orchestrator.Run(ctx, []lifecycle.Job{{Cluster: c, Reason: domain.TriggerManualRequest}})
		return nil
	}
	return fmt.Errorf("cluster %s is not active", clusterID)
}

// normalizeBatch scores and normalizes candidates in parallel. Both steps
// are per-item and share no state; rejects are logged and dropped.
func (p *Pipeline) normalizeBatch(ctx context.Context, candidates []domain.RawCandidate, now time.Time) []domain.SourceItem {
	var (
		mu    sync.Mutex
		items []domain.SourceItem
	)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.scoreWorkers)

	for _, candidate := range candidates {
		candidate := candidate
		group.Go(func() error {
			score, err := p.scorer.Score(ctx, candidate)
			if err != nil {
				p.logger.Warn("scoring failed, skipping item", "url", candidate.URL, "error", err)
				return nil
			}

			item, err := normalize.Item(domain.ScoredCandidate{RawCandidate: candidate, ImportanceScore: score}, now)
			if err != nil {
				if errors.Is(err, normalize.ErrEmptyTitle) {
					p.logger.Warn("rejected item", "url", candidate.URL, "error", err)
				} else {
					p.logger.Warn("malformed item", "url", candidate.URL, "error", err)
				}
				return nil
			}

			mu.Lock()
			items = append(items, item)
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return items
}

// discardDuplicates drops items whose normalized URL already exists, either
// in storage or earlier in the same batch. This is the only hard reject in
// clustering: a duplicate never mutates any cluster.
func (p *Pipeline) discardDuplicates(ctx context.Context, items []domain.SourceItem) ([]domain.SourceItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	urls := make([]string, len(items))
	for i, item := range items {
		urls[i] = item.NormalizedURL
	}

	existing, err := p.items.ExistingURLs(ctx, urls)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	fresh := items[:0]
	for _, item := range items {
		if existing[item.NormalizedURL] {
			p.logger.Debug("duplicate discarded", "url", item.NormalizedURL)
			continue
		}
		if _, dup := seen[item.NormalizedURL]; dup {
			continue
		}
		seen[item.NormalizedURL] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh, nil
}

// assignAll runs the clustering engine sequentially over the shared pool.
// A single goroutine owns pool mutation, so two items describing the same
// new event cannot race into duplicate clusters.
func (p *Pipeline) assignAll(ctx context.Context, items []domain.SourceItem, pool []domain.Cluster, now time.Time) ([]domain.Cluster, map[string]struct{}) {
	touched := map[string]struct{}{}

	for _, item := range items {
		assignment := p.engine.Assign(item, pool)
		item.ClusterID = assignment.ClusterID

		// The member row is written first; a partial failure leaves an
		// orphaned item, never a memberless cluster holding a peak score.
		if err := p.items.SaveItem(ctx, item); err != nil {
			p.logger.Error("save item", "url", item.NormalizedURL, "error", err)
			continue
		}

		if assignment.NewCluster {
			founded := cluster.Found(assignment.ClusterID, item, now)
			if err := p.clusters.SaveCluster(ctx, founded); err != nil {
				p.logger.Error("save cluster", "cluster", founded.ID, "error", err)
				continue
			}
			pool = append(pool, founded)
		}

		touched[assignment.ClusterID] = struct{}{}
	}

	return pool, touched
}

// refreshAggregates recomputes aggregates for every cluster whose
// membership changed this cycle. A new source also resets the synthesis
// failure count, un-parking stalled clusters. A storage failure skips that
// one cluster; the rest of the cycle proceeds on the remaining pool.
func (p *Pipeline) refreshAggregates(ctx context.Context, pool []domain.Cluster, touched map[string]struct{}, now time.Time) []domain.Cluster {
	for i, c := range pool {
		if _, ok := touched[c.ID]; !ok {
			continue
		}

		members, err := p.items.ClusterMembers(ctx, c.ID)
		if err != nil {
			p.logger.Error("load cluster members", "cluster", c.ID, "error", err)
			continue
		}

		updated := scoring.Recompute(c, members, now)
		updated.SynthesisFailures = 0
		if err := p.clusters.UpdateAggregates(ctx, updated); err != nil {
			p.logger.Error("update aggregates", "cluster", c.ID, "error", err)
			continue
		}
		pool[i] = updated
	}
	return pool
}

// publishedSet loads each cluster's current article version. A cluster whose
// version cannot be read is dropped from this cycle's lifecycle evaluation
// so it can neither publish a duplicate nor close on stale state.
func (p *Pipeline) publishedSet(ctx context.Context, pool []domain.Cluster) ([]domain.Cluster, map[string]bool) {
	published := make(map[string]bool, len(pool))
	kept := pool[:0]
	for _, c := range pool {
		version, err := p.articles.CurrentVersion(ctx, c.ID)
		if err != nil {
			p.logger.Error("load article version, skipping cluster", "cluster", c.ID, "error", err)
			continue
		}
		published[c.ID] = version > 0
		kept = append(kept, c)
	}
	return kept, published
}
