package domain

import "time"

// RawCandidate is the inbound record produced by the feed-ingestion side,
// before scoring and normalization.
type RawCandidate struct {
	URL             string
	Title           string
	Description     string
	SourceName      string
	CredibilityTier int
	PublishedAt     time.Time
}

// ScoredCandidate is a RawCandidate with its externally assigned
// importance score (0-1000).
type ScoredCandidate struct {
	RawCandidate
	ImportanceScore int
}

// BundleSource is one member of the synthesis prompt bundle.
type BundleSource struct {
	Title           string
	BodyText        string
	SourceName      string
	ImportanceScore int
	PublishedAt     time.Time
}

// SynthesisRequest is the outbound payload for the external text-synthesis
// service. PriorVersion is 0 on the first synthesis of a cluster.
type SynthesisRequest struct {
	ClusterID    string
	PriorVersion int
	Sources      []BundleSource
}

// SynthesisResult is the structured response expected back from the
// synthesis service. Content is opaque to the core beyond schema checks.
type SynthesisResult struct {
	TitleVariants []string          `json:"titleVariants"`
	BodyVariants  []string          `json:"bodyVariants"`
	Extras        map[string]string `json:"extras,omitempty"`
}
