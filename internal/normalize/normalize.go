package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"NewsWeaver/internal/domain"
)

// ErrEmptyTitle marks a candidate whose title normalizes to nothing.
// Such items are rejected rather than matched to an arbitrary cluster.
var ErrEmptyTitle = errors.New("empty title after normalization")

const minTermLength = 3

// trackingParams are query parameters stripped during URL normalization.
// Anything with a utm_ prefix is stripped as well.
var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"igshid": {},
	"mc_cid": {},
	"mc_eid": {},
	"ref":    {},
	"source": {},
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "his": {}, "how": {},
	"its": {}, "new": {}, "now": {}, "old": {}, "see": {}, "two": {},
	"who": {}, "did": {}, "get": {}, "may": {}, "say": {}, "says": {},
	"said": {}, "she": {}, "too": {}, "use": {}, "with": {}, "this": {},
	"that": {}, "from": {}, "they": {}, "will": {}, "have": {}, "been": {},
	"more": {}, "when": {}, "were": {}, "what": {}, "your": {}, "after": {},
	"their": {}, "about": {}, "could": {}, "would": {}, "there": {},
	"which": {}, "amid": {}, "over": {}, "into": {}, "than": {}, "them": {},
	"then": {}, "some": {}, "such": {}, "only": {}, "also": {}, "just": {},
	"being": {}, "other": {}, "while": {}, "during": {}, "before": {},
	"against": {}, "between": {}, "because": {}, "report": {}, "reports": {},
	"breaking": {}, "exclusive": {}, "update": {}, "live": {},
}

// Item canonicalizes a scored candidate into a SourceItem: normalized URL
// identity, significant terms, and named entities. Pure, no I/O.
func Item(candidate domain.ScoredCandidate, fetchedAt time.Time) (domain.SourceItem, error) {
	normURL, err := URL(candidate.URL)
	if err != nil {
		return domain.SourceItem{}, fmt.Errorf("normalize url %q: %w", candidate.URL, err)
	}

	terms := SignificantTerms(candidate.Title, candidate.Description)
	if len(terms) == 0 {
		return domain.SourceItem{}, ErrEmptyTitle
	}

	return domain.SourceItem{
		NormalizedURL:    normURL,
		SourceName:       candidate.SourceName,
		Title:            strings.TrimSpace(candidate.Title),
		Description:      strings.TrimSpace(candidate.Description),
		CredibilityTier:  candidate.CredibilityTier,
		ImportanceScore:  candidate.ImportanceScore,
		SignificantTerms: terms,
		NamedEntities:    NamedEntities(candidate.Title),
		PublishedAt:      candidate.PublishedAt,
		FetchedAt:        fetchedAt,
	}, nil
}

// URL reduces a raw URL to its deduplication key: no scheme, no www.,
// lowercase host, tracking parameters removed, remaining query sorted.
func URL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(parsed.EscapedPath(), "/")

	query := parsed.Query()
	for key := range query {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked || strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
		}
	}

	normalized := host + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}

	return normalized, nil
}

// SignificantTerms tokenizes title+description into lowercase alphanumeric
// terms, filters stop words and short tokens, and returns the sorted set.
func SignificantTerms(title, description string) []string {
	seen := map[string]struct{}{}
	for _, token := range tokenize(title + " " + description) {
		if len(token) < minTermLength && !(isNumeric(token) && len(token) >= 2) {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		seen[token] = struct{}{}
	}

	terms := make([]string, 0, len(seen))
	for term := range seen {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// NamedEntities extracts runs of two or more consecutive capitalized words
// from the title. Heuristic only; no external NLP involved.
func NamedEntities(title string) []string {
	words := strings.Fields(title)

	seen := map[string]struct{}{}
	var run []string
	flush := func() {
		if len(run) >= 2 {
			seen[strings.ToLower(strings.Join(run, " "))] = struct{}{}
		}
		run = nil
	}

	for _, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if trimmed == "" || !unicode.IsUpper([]rune(trimmed)[0]) {
			flush()
			continue
		}
		run = append(run, trimmed)
	}
	flush()

	entities := make([]string, 0, len(seen))
	for entity := range seen {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	return entities
}

// tokenize lowercases and splits on non-alphanumeric runes and on
// digit/letter boundaries, so "$57B" and "$57 billion" share the "57" token.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, field := range fields {
		runes := []rune(field)
		start := 0
		for i := 1; i <= len(runes); i++ {
			if i == len(runes) || unicode.IsDigit(runes[i]) != unicode.IsDigit(runes[i-1]) {
				tokens = append(tokens, string(runes[start:i]))
				start = i
			}
		}
	}
	return tokens
}

func isNumeric(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
