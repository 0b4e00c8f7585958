package lifecycle

import (
	"log/slog"
	"time"

	"NewsWeaver/internal/domain"
)

// Policy holds the lifecycle thresholds. Config owns them.
type Policy struct {
	// PublishThreshold is the importance score (0-1000) a member must reach
	// before the cluster is first synthesized.
	PublishThreshold int
	// ClosingWindow is the inactivity duration after which a cluster stops
	// accepting members. A cluster exactly at the boundary stays Active.
	ClosingWindow time.Duration
	// MaxSynthesisRetries bounds consecutive failed synthesis cycles before
	// a cluster is parked until a new source arrives.
	MaxSynthesisRetries int
}

// DefaultPolicy returns the starting configuration.
func DefaultPolicy() Policy {
	return Policy{
		PublishThreshold:    700,
		ClosingWindow:       48 * time.Hour,
		MaxSynthesisRetries: 3,
	}
}

// Job flags one cluster for synthesis this cycle. Multiple sources arriving
// in one cycle coalesce into a single job.
type Job struct {
	Cluster domain.Cluster
	Reason  domain.TriggerReason
}

// Decision is the outcome of one per-cycle lifecycle evaluation.
type Decision struct {
	Close []domain.Cluster
	Jobs  []Job
}

// Manager evaluates cluster transitions once per cycle, after all items
// for the cycle have been assigned.
type Manager struct {
	policy Policy
	logger *slog.Logger
}

// NewManager builds the manager from configured policy.
func NewManager(policy Policy, logger *slog.Logger) *Manager {
	return &Manager{policy: policy, logger: logger}
}

// Evaluate walks the active clusters and decides closures and synthesis
// jobs. published reports whether a PublishedArticle row already exists for
// a cluster id; that is the only thing distinguishing New from Published.
func (m *Manager) Evaluate(clusters []domain.Cluster, published map[string]bool, now time.Time) Decision {
	var decision Decision

	for _, c := range clusters {
		if c.Status != domain.ClusterActive {
			continue
		}

		if now.Sub(c.LastSourceAddedAt) > m.policy.ClosingWindow {
			m.logger.Info("closing cluster", "cluster", c.ID, "last_source", c.LastSourceAddedAt)
			decision.Close = append(decision.Close, c)
			continue
		}

		job, ok := m.synthesisJob(c, published[c.ID])
		if !ok {
			continue
		}
		if c.SynthesisFailures >= m.policy.MaxSynthesisRetries {
			// Stalled: parked until a new source resets the failure count.
			m.logger.Warn("synthesis stalled, skipping", "cluster", c.ID, "failures", c.SynthesisFailures)
			continue
		}
		decision.Jobs = append(decision.Jobs, job)
	}

	return decision
}

func (m *Manager) synthesisJob(c domain.Cluster, alreadyPublished bool) (Job, bool) {
	if !alreadyPublished {
		if c.PeakImportanceScore >= m.policy.PublishThreshold {
			return Job{Cluster: c, Reason: domain.TriggerInitialPublish}, true
		}
		return Job{}, false
	}

	if c.SourcesSinceVersion() > 0 {
		return Job{Cluster: c, Reason: domain.TriggerNewSourcesAdded}, true
	}
	return Job{}, false
}
