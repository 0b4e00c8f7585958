package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"NewsWeaver/internal/domain"
)

func TestURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips scheme and www",
			raw:  "https://www.reuters.com/markets/nvidia-record",
			want: "reuters.com/markets/nvidia-record",
		},
		{
			name: "strips tracking params keeps the rest",
			raw:  "https://bbc.com/news/article?utm_source=tw&utm_medium=social&id=42&fbclid=abc",
			want: "bbc.com/news/article?id=42",
		},
		{
			name: "lowercases host and drops trailing slash",
			raw:  "HTTPS://Example.COM/Path/",
			want: "example.com/Path",
		},
		{
			name: "scheme-less input",
			raw:  "reuters.com/a",
			want: "reuters.com/a",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := URL(tc.raw)
			if err != nil {
				t.Fatalf("URL(%q) returned error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("URL(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestURLRejectsEmpty(t *testing.T) {
	t.Parallel()

	if _, err := URL("   "); err == nil {
		t.Fatal("expected error for blank url")
	}
}

func TestURLSameArticleDifferentTracking(t *testing.T) {
	t.Parallel()

	a, err := URL("https://www.reuters.com/a?utm_campaign=x")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := URL("http://reuters.com/a")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
}

func TestSignificantTerms(t *testing.T) {
	t.Parallel()

	terms := SignificantTerms("Nvidia posts record $57B revenue", "")

	want := []string{"57", "nvidia", "posts", "record", "revenue"}
	if diff := cmp.Diff(want, terms); diff != "" {
		t.Fatalf("terms mismatch (-want +got):\n%s", diff)
	}
}

func TestSignificantTermsSharedNumberToken(t *testing.T) {
	t.Parallel()

	a := SignificantTerms("Nvidia posts record $57B revenue", "")
	b := SignificantTerms("Nvidia's AI chip sales hit record $57 billion", "")

	shared := map[string]bool{}
	for _, term := range a {
		shared[term] = true
	}

	var overlap []string
	for _, term := range b {
		if shared[term] {
			overlap = append(overlap, term)
		}
	}

	want := []string{"nvidia", "record", "57"}
	for _, term := range want {
		found := false
		for _, got := range overlap {
			if got == term {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected shared term %q, overlap was %v", term, overlap)
		}
	}
}

func TestNamedEntities(t *testing.T) {
	t.Parallel()

	entities := NamedEntities("President Emmanuel Macron meets Olaf Scholz in Berlin today")

	want := []string{"olaf scholz", "president emmanuel macron"}
	if diff := cmp.Diff(want, entities); diff != "" {
		t.Fatalf("entities mismatch (-want +got):\n%s", diff)
	}
}

func TestNamedEntitiesSingleWordIgnored(t *testing.T) {
	t.Parallel()

	entities := NamedEntities("Nvidia posts record revenue")
	if len(entities) != 0 {
		t.Fatalf("expected no multi-word entities, got %v", entities)
	}
}

func TestItemRejectsEmptyTitle(t *testing.T) {
	t.Parallel()

	candidate := domain.ScoredCandidate{
		RawCandidate: domain.RawCandidate{
			URL:   "https://example.com/x",
			Title: "!!! ...",
		},
		ImportanceScore: 500,
	}

	_, err := Item(candidate, time.Now())
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestItem(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	fetched := published.Add(10 * time.Minute)

	candidate := domain.ScoredCandidate{
		RawCandidate: domain.RawCandidate{
			URL:             "https://www.reuters.com/tech/nvidia?utm_source=feed",
			Title:           "Nvidia posts record $57B revenue",
			Description:     "Chipmaker beats expectations",
			SourceName:      "reuters",
			CredibilityTier: 1,
			PublishedAt:     published,
		},
		ImportanceScore: 810,
	}

	item, err := Item(candidate, fetched)
	if err != nil {
		t.Fatalf("Item returned error: %v", err)
	}

	if item.NormalizedURL != "reuters.com/tech/nvidia" {
		t.Fatalf("unexpected normalized url: %s", item.NormalizedURL)
	}
	if item.ImportanceScore != 810 {
		t.Fatalf("unexpected score: %d", item.ImportanceScore)
	}
	if item.FetchedAt != fetched {
		t.Fatalf("unexpected fetchedAt: %v", item.FetchedAt)
	}
	if len(item.SignificantTerms) == 0 {
		t.Fatal("expected significant terms")
	}
}
