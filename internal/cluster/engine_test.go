package cluster

import (
	"testing"
	"time"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/normalize"
)

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func testItem(url, title string, published time.Time, score int) domain.SourceItem {
	return domain.SourceItem{
		NormalizedURL:    url,
		Title:            title,
		SignificantTerms: normalize.SignificantTerms(title, ""),
		NamedEntities:    normalize.NamedEntities(title),
		ImportanceScore:  score,
		PublishedAt:      published,
		FetchedAt:        published,
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultThresholds(), nil)
}

func TestAssignMatchesSameEvent(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	first := testItem("reuters.com/a", "Nvidia posts record $57B revenue", base, 800)
	founding := engine.Assign(first, nil)
	if !founding.NewCluster {
		t.Fatal("first item should open a new cluster")
	}

	pool := []domain.Cluster{Found(founding.ClusterID, first, base)}

	second := testItem("bbc.com/b", "Nvidia's AI chip sales hit record $57 billion", base.Add(10*time.Minute), 750)
	assignment := engine.Assign(second, pool)

	if assignment.NewCluster {
		t.Fatal("second item should join the existing cluster")
	}
	if assignment.ClusterID != founding.ClusterID {
		t.Fatalf("expected cluster %s, got %s", founding.ClusterID, assignment.ClusterID)
	}
}

func TestAssignUnrelatedOpensNewCluster(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	first := testItem("reuters.com/a", "Nvidia posts record $57B revenue", base, 800)
	pool := []domain.Cluster{Found("c1", first, base)}

	unrelated := testItem("bbc.com/x", "Earthquake strikes central Japan coastline", base.Add(time.Hour), 900)
	assignment := engine.Assign(unrelated, pool)

	if !assignment.NewCluster {
		t.Fatal("unrelated item must open a new cluster")
	}
	if assignment.ClusterID == "c1" {
		t.Fatal("unrelated item must not reuse the existing cluster id")
	}
}

func TestAssignSkipsClustersOutsideTimeWindow(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	first := testItem("reuters.com/a", "Nvidia posts record $57B revenue", base, 800)
	stale := Found("c1", first, base)
	stale.LastUpdatedAt = base.Add(-30 * time.Hour)

	second := testItem("bbc.com/b", "Nvidia's AI chip sales hit record $57 billion", base, 750)
	assignment := engine.Assign(second, []domain.Cluster{stale})

	if !assignment.NewCluster {
		t.Fatal("cluster outside the proximity window must not match")
	}
}

func TestAssignSkipsClosedClusters(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	first := testItem("reuters.com/a", "Nvidia posts record $57B revenue", base, 800)
	closed := Found("c1", first, base)
	closed.Status = domain.ClusterClosed

	second := testItem("bbc.com/b", "Nvidia's AI chip sales hit record $57 billion", base, 750)
	assignment := engine.Assign(second, []domain.Cluster{closed})

	if !assignment.NewCluster {
		t.Fatal("closed cluster must be excluded from the candidate set")
	}
}

func TestAssignKeywordOverlapAloneMatches(t *testing.T) {
	t.Parallel()

	// Phrasing differs enough that Jaccard misses, but >=3 shared
	// keywords still bind the items to one event (OR, not AND).
	engine := NewEngine(Thresholds{
		TitleSimilarity:     0.99,
		SharedTerms:         3,
		TimeProximityWindow: 24 * time.Hour,
	}, nil)

	first := testItem("reuters.com/a", "Boeing Starliner capsule docks with space station after delays", base, 800)
	pool := []domain.Cluster{Found("c1", first, base)}

	second := testItem("bbc.com/b", "Crewed Boeing Starliner finally reaches the orbital station", base.Add(time.Hour), 700)
	assignment := engine.Assign(second, pool)

	if assignment.NewCluster {
		t.Fatal("expected keyword-overlap match despite failing title similarity")
	}
}

func TestAssignTieBreakPrefersHigherCombinedScore(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	strong := testItem("reuters.com/a", "Nvidia posts record $57B revenue in fourth quarter", base, 800)
	weak := testItem("apnews.com/c", "Nvidia record revenue stuns markets worldwide", base, 700)

	strongCluster := Found("strong", strong, base)
	weakCluster := Found("weak", weak, base)

	item := testItem("bbc.com/b", "Nvidia posts record $57B revenue beating forecasts", base.Add(time.Minute), 750)
	assignment := engine.Assign(item, []domain.Cluster{weakCluster, strongCluster})

	if assignment.NewCluster {
		t.Fatal("expected a match")
	}
	if assignment.ClusterID != "strong" {
		t.Fatalf("expected the higher-scoring cluster, got %s", assignment.ClusterID)
	}
}

func TestAssignExactTiePrefersMostRecentlyUpdated(t *testing.T) {
	t.Parallel()

	engine := newTestEngine()

	title := "Nvidia posts record $57B revenue"
	first := testItem("reuters.com/a", title, base, 800)

	older := Found("older", first, base)
	older.LastUpdatedAt = base.Add(-2 * time.Hour)
	newer := Found("newer", first, base)
	newer.LastUpdatedAt = base.Add(-1 * time.Hour)

	item := testItem("bbc.com/b", title, base, 750)
	assignment := engine.Assign(item, []domain.Cluster{older, newer})

	if assignment.ClusterID != "newer" {
		t.Fatalf("expected the most recently updated cluster, got %s", assignment.ClusterID)
	}
}

func TestFoundSeedsAggregates(t *testing.T) {
	t.Parallel()

	item := testItem("reuters.com/a", "Nvidia posts record $57B revenue", base, 800)
	founded := Found("c1", item, base)

	if founded.SourceCount != 1 {
		t.Fatalf("expected source count 1, got %d", founded.SourceCount)
	}
	if founded.PeakImportanceScore != 800 {
		t.Fatalf("expected peak 800, got %d", founded.PeakImportanceScore)
	}
	if founded.RepresentativeTitle != item.Title {
		t.Fatalf("unexpected representative title: %s", founded.RepresentativeTitle)
	}
	if founded.Status != domain.ClusterActive {
		t.Fatalf("expected active status, got %s", founded.Status)
	}
}

func TestFoundBacklogItemStartsFreshClock(t *testing.T) {
	t.Parallel()

	item := testItem("reuters.com/old", "Nvidia posts record $57B revenue", base.Add(-50*time.Hour), 800)
	item.FetchedAt = base

	founded := Found("c1", item, base)

	if !founded.LastSourceAddedAt.Equal(base) {
		t.Fatalf("activity clock must start at ingestion, got %v", founded.LastSourceAddedAt)
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	got := jaccard([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	want := 2.0 / 4.0
	if got != want {
		t.Fatalf("jaccard = %f, want %f", got, want)
	}

	if jaccard(nil, []string{"a"}) != 0 {
		t.Fatal("empty set must yield 0")
	}
}
