package domain

import "time"

// SourceItem is one ingested candidate after normalization.
// NormalizedURL is the global identity: a second item with the same
// normalized URL is a duplicate and never reaches clustering.
type SourceItem struct {
	NormalizedURL    string
	SourceName       string
	Title            string
	Description      string
	BodyText         string
	CredibilityTier  int
	ImportanceScore  int
	SignificantTerms []string
	NamedEntities    []string
	ClusterID        string
	PublishedAt      time.Time
	FetchedAt        time.Time
}

// ClusterStatus enumerates cluster lifecycle states.
type ClusterStatus string

const (
	ClusterActive ClusterStatus = "active"
	ClusterClosed ClusterStatus = "closed"
)

// Cluster groups the SourceItems believed to describe one real-world event.
// Aggregate fields (SourceCount, PeakImportanceScore, LastSourceAddedAt,
// Terms) are derived from membership and recomputed as a whole on every
// membership change.
type Cluster struct {
	ID                  string
	RepresentativeTitle string
	// RepresentativeTerms are the significant terms of the representative
	// title, used for the title-similarity test against newcomers.
	RepresentativeTerms []string
	// Terms is the union of all members' significant terms and named
	// entities, used for the shared-keyword test.
	Terms  []string
	Status ClusterStatus

	SourceCount         int
	PeakImportanceScore int
	LastSourceAddedAt   time.Time

	// LastVersionSourceCount snapshots SourceCount at the last committed
	// synthesis; SourceCount minus this value is the number of sources
	// added since the published version.
	LastVersionSourceCount int
	SynthesisFailures      int

	CreatedAt     time.Time
	LastUpdatedAt time.Time
	ClosedAt      *time.Time
}

// SourcesSinceVersion reports how many members joined after the last
// committed article version.
func (c Cluster) SourcesSinceVersion() int {
	n := c.SourceCount - c.LastVersionSourceCount
	if n < 0 {
		return 0
	}
	return n
}

// PublishedArticle is the synthesized output for a cluster. Exactly one row
// exists per cluster; every write is an upsert keyed on ClusterID.
type PublishedArticle struct {
	ClusterID     string
	VersionNumber int
	TitleVariants []string
	BodyVariants  []string
	Extras        map[string]string
	PublishedAt   time.Time
	LastUpdatedAt time.Time
}

// TriggerReason records why a synthesis ran.
type TriggerReason string

const (
	TriggerInitialPublish  TriggerReason = "initial_publish"
	TriggerNewSourcesAdded TriggerReason = "new_sources_added"
	TriggerManualRequest   TriggerReason = "manual_request"
)

// UpdateLogEntry is one row of the append-only synthesis audit trail,
// written only on a committed synthesis.
type UpdateLogEntry struct {
	ArticleID    string
	Reason       TriggerReason
	SourcesAdded int
	OldVersion   int
	NewVersion   int
	TriggeredAt  time.Time
}
