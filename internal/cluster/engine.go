package cluster

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/normalize"
)

// Thresholds hold the tunable matching parameters. They were tuned
// empirically, not derived from a labeled dataset; config owns them.
type Thresholds struct {
	TitleSimilarity     float64
	SharedTerms         int
	TimeProximityWindow time.Duration
}

// DefaultThresholds returns the starting configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TitleSimilarity:     0.45,
		SharedTerms:         3,
		TimeProximityWindow: 24 * time.Hour,
	}
}

// Assignment is the outcome of matching one item against the open pool.
type Assignment struct {
	ClusterID  string
	NewCluster bool
}

// Engine performs greedy single-pass assignment of items to open clusters.
// Once an item joins a cluster it is never moved: reassignment would
// invalidate previously committed article versions.
type Engine struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// NewEngine builds the engine from configured thresholds.
func NewEngine(thresholds Thresholds, logger *slog.Logger) *Engine {
	return &Engine{thresholds: thresholds, logger: logger}
}

// Assign finds the best-matching open cluster for the item, or opens a new
// one with the item as founding member. Callers must have discarded
// duplicate normalized URLs already; Assign only does soft scoring.
// The caller owns pool mutation and must run Assign sequentially over the
// shared pool within a cycle.
func (e *Engine) Assign(item domain.SourceItem, openClusters []domain.Cluster) Assignment {
	itemTerms := termSet(item.SignificantTerms, item.NamedEntities)

	best := -1
	var bestScore float64
	for i, candidate := range openClusters {
		if candidate.Status != domain.ClusterActive {
			continue
		}
		if !withinWindow(item.PublishedAt, candidate.LastUpdatedAt, e.thresholds.TimeProximityWindow) {
			continue
		}

		similarity := jaccard(item.SignificantTerms, candidate.RepresentativeTerms)
		shared := sharedCount(itemTerms, candidate.Terms)

		if similarity < e.thresholds.TitleSimilarity && shared < e.thresholds.SharedTerms {
			continue
		}

		score := similarity + float64(shared)/float64(len(itemTerms))
		switch {
		case best == -1 || score > bestScore:
			best, bestScore = i, score
		case score == bestScore && candidate.LastUpdatedAt.After(openClusters[best].LastUpdatedAt):
			best = i
		}
	}

	if best >= 0 {
		e.debug("matched cluster", "url", item.NormalizedURL, "cluster", openClusters[best].ID, "score", bestScore)
		return Assignment{ClusterID: openClusters[best].ID}
	}

	id := uuid.NewString()
	e.debug("new cluster", "url", item.NormalizedURL, "cluster", id)
	return Assignment{ClusterID: id, NewCluster: true}
}

// Found builds the founding cluster record for an item that matched nothing.
func Found(id string, item domain.SourceItem, now time.Time) domain.Cluster {
	return domain.Cluster{
		ID:                  id,
		RepresentativeTitle: item.Title,
		RepresentativeTerms: normalize.SignificantTerms(item.Title, ""),
		Terms:               unionSorted(item.SignificantTerms, item.NamedEntities),
		Status:              domain.ClusterActive,
		SourceCount:         1,
		PeakImportanceScore: item.ImportanceScore,
		LastSourceAddedAt:   item.FetchedAt,
		CreatedAt:           now,
		LastUpdatedAt:       now,
	}
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// jaccard is the token-overlap ratio shared/union over two term slices.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, term := range a {
		set[term] = struct{}{}
	}

	shared := 0
	union := len(set)
	for _, term := range b {
		if _, ok := set[term]; ok {
			shared++
		} else {
			union++
		}
	}

	return float64(shared) / float64(union)
}

func sharedCount(itemTerms map[string]struct{}, clusterTerms []string) int {
	shared := 0
	for _, term := range clusterTerms {
		if _, ok := itemTerms[term]; ok {
			shared++
		}
	}
	return shared
}

func termSet(terms, entities []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms)+len(entities))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	for _, entity := range entities {
		set[entity] = struct{}{}
	}
	return set
}

func unionSorted(terms, entities []string) []string {
	set := termSet(terms, entities)
	merged := make([]string, 0, len(set))
	for term := range set {
		merged = append(merged, term)
	}
	sort.Strings(merged)
	return merged
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
