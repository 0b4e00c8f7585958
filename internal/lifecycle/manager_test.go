package lifecycle

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"NewsWeaver/internal/domain"
)

var now = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activeCluster(id string, peak int, lastSource time.Time) domain.Cluster {
	return domain.Cluster{
		ID:                  id,
		Status:              domain.ClusterActive,
		PeakImportanceScore: peak,
		SourceCount:         1,
		LastSourceAddedAt:   lastSource,
		LastUpdatedAt:       lastSource,
	}
}

func TestEvaluatePublishThreshold(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	below := activeCluster("below", 650, now.Add(-time.Hour))
	atThreshold := activeCluster("at", 700, now.Add(-time.Hour))
	above := activeCluster("above", 720, now.Add(-time.Hour))

	decision := manager.Evaluate([]domain.Cluster{below, atThreshold, above}, map[string]bool{}, now)

	if len(decision.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(decision.Jobs))
	}
	for _, job := range decision.Jobs {
		if job.Reason != domain.TriggerInitialPublish {
			t.Fatalf("expected initial publish, got %s", job.Reason)
		}
		if job.Cluster.ID == "below" {
			t.Fatal("cluster below threshold must not publish")
		}
	}
}

func TestEvaluateLatecomerPushesClusterOverThreshold(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	c := activeCluster("c1", 650, now.Add(-2*time.Hour))
	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{}, now)
	if len(decision.Jobs) != 0 {
		t.Fatal("cluster peaking at 650 must stay unpublished")
	}

	// A 720-scored member arrives two hours later.
	c.PeakImportanceScore = 720
	c.SourceCount = 2
	c.LastSourceAddedAt = now

	decision = manager.Evaluate([]domain.Cluster{c}, map[string]bool{}, now)
	if len(decision.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(decision.Jobs))
	}
	if decision.Jobs[0].Reason != domain.TriggerInitialPublish {
		t.Fatalf("expected initial publish, got %s", decision.Jobs[0].Reason)
	}
}

func TestEvaluateCoalescesNewSources(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	// Published cluster gains 3 sources within one cycle: exactly one job.
	c := activeCluster("c1", 800, now.Add(-time.Minute))
	c.SourceCount = 5
	c.LastVersionSourceCount = 2

	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{"c1": true}, now)

	if len(decision.Jobs) != 1 {
		t.Fatalf("expected exactly 1 coalesced job, got %d", len(decision.Jobs))
	}
	job := decision.Jobs[0]
	if job.Reason != domain.TriggerNewSourcesAdded {
		t.Fatalf("expected new-sources trigger, got %s", job.Reason)
	}
	if job.Cluster.SourcesSinceVersion() != 3 {
		t.Fatalf("expected 3 sources since version, got %d", job.Cluster.SourcesSinceVersion())
	}
}

func TestEvaluatePublishedWithoutNewSourcesIdle(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	c := activeCluster("c1", 800, now.Add(-time.Hour))
	c.SourceCount = 2
	c.LastVersionSourceCount = 2

	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{"c1": true}, now)
	if len(decision.Jobs) != 0 {
		t.Fatal("published cluster with no new sources must not re-synthesize")
	}
}

func TestEvaluateClosingBoundary(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	exactlyAt := activeCluster("exact", 800, now.Add(-48*time.Hour))
	onePast := activeCluster("past", 800, now.Add(-48*time.Hour).Add(-time.Second))

	decision := manager.Evaluate([]domain.Cluster{exactlyAt, onePast}, map[string]bool{}, now)

	if len(decision.Close) != 1 {
		t.Fatalf("expected 1 closure, got %d", len(decision.Close))
	}
	if decision.Close[0].ID != "past" {
		t.Fatalf("expected cluster one second past the window to close, got %s", decision.Close[0].ID)
	}
}

func TestEvaluateClosedClusterNeverSynthesizes(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	// 49 hours idle: closed this cycle, even though it has new sources.
	c := activeCluster("c1", 800, now.Add(-49*time.Hour))
	c.SourceCount = 4
	c.LastVersionSourceCount = 2

	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{"c1": true}, now)

	if len(decision.Close) != 1 {
		t.Fatalf("expected closure, got %d", len(decision.Close))
	}
	if len(decision.Jobs) != 0 {
		t.Fatal("closing cluster must not be synthesized")
	}
}

func TestEvaluateStalledClusterSkipped(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	c := activeCluster("c1", 800, now.Add(-time.Hour))
	c.SynthesisFailures = 3

	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{}, now)
	if len(decision.Jobs) != 0 {
		t.Fatal("stalled cluster must be skipped")
	}

	// A new source resets the failure count and un-parks the cluster.
	c.SynthesisFailures = 0
	decision = manager.Evaluate([]domain.Cluster{c}, map[string]bool{}, now)
	if len(decision.Jobs) != 1 {
		t.Fatalf("expected job after reset, got %d", len(decision.Jobs))
	}
}

func TestEvaluateIgnoresClosed(t *testing.T) {
	t.Parallel()

	manager := NewManager(DefaultPolicy(), discard())

	c := activeCluster("c1", 800, now.Add(-time.Hour))
	c.Status = domain.ClusterClosed

	decision := manager.Evaluate([]domain.Cluster{c}, map[string]bool{}, now)
	if len(decision.Jobs) != 0 || len(decision.Close) != 0 {
		t.Fatal("closed clusters are terminal")
	}
}
