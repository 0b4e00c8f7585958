package scoring

import (
	"sort"
	"time"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/normalize"
)

// Recompute derives a cluster's aggregates from its full membership.
// This is the only code path allowed to set SourceCount, peak score,
// LastSourceAddedAt, the representative title, and the term sets, so the
// stored aggregates can never drift from actual membership.
func Recompute(cluster domain.Cluster, members []domain.SourceItem, now time.Time) domain.Cluster {
	if len(members) == 0 {
		return cluster
	}

	cluster.SourceCount = len(members)

	peak := members[0]
	lastAdded := members[0].FetchedAt
	termSet := map[string]struct{}{}
	for _, member := range members {
		if member.ImportanceScore > peak.ImportanceScore {
			peak = member
		}
		if member.FetchedAt.After(lastAdded) {
			lastAdded = member.FetchedAt
		}
		for _, term := range member.SignificantTerms {
			termSet[term] = struct{}{}
		}
		for _, entity := range member.NamedEntities {
			termSet[entity] = struct{}{}
		}
	}

	cluster.PeakImportanceScore = peak.ImportanceScore
	// The closing clock runs on ingestion time, not publish time; a source
	// published days ago still counts as fresh activity when it arrives.
	cluster.LastSourceAddedAt = lastAdded
	cluster.RepresentativeTitle = peak.Title
	cluster.RepresentativeTerms = normalize.SignificantTerms(peak.Title, "")

	terms := make([]string, 0, len(termSet))
	for term := range termSet {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	cluster.Terms = terms

	cluster.LastUpdatedAt = now
	return cluster
}
