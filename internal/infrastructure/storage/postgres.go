package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsWeaver/internal/domain"
	"NewsWeaver/internal/ports"
)

// Schema is the DDL for the core tables. published_articles is keyed on
// cluster_id, which is what makes every article write an upsert and keeps
// at most one row per event.
const Schema = `
CREATE TABLE IF NOT EXISTS source_items (
    normalized_url    TEXT PRIMARY KEY,
    cluster_id        TEXT NOT NULL,
    source_name       TEXT NOT NULL,
    title             TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    body_text         TEXT NOT NULL DEFAULT '',
    credibility_tier  INT NOT NULL DEFAULT 3,
    importance_score  INT NOT NULL DEFAULT 0,
    significant_terms TEXT[] NOT NULL DEFAULT '{}',
    named_entities    TEXT[] NOT NULL DEFAULT '{}',
    published_at      TIMESTAMPTZ NOT NULL,
    fetched_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS source_items_cluster_idx ON source_items (cluster_id);

CREATE TABLE IF NOT EXISTS clusters (
    id                        TEXT PRIMARY KEY,
    representative_title      TEXT NOT NULL,
    representative_terms      TEXT[] NOT NULL DEFAULT '{}',
    terms                     TEXT[] NOT NULL DEFAULT '{}',
    status                    TEXT NOT NULL DEFAULT 'active',
    source_count              INT NOT NULL DEFAULT 0,
    peak_importance_score     INT NOT NULL DEFAULT 0,
    last_source_added_at      TIMESTAMPTZ NOT NULL,
    last_version_source_count INT NOT NULL DEFAULT 0,
    synthesis_failures        INT NOT NULL DEFAULT 0,
    created_at                TIMESTAMPTZ NOT NULL,
    last_updated_at           TIMESTAMPTZ NOT NULL,
    closed_at                 TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS clusters_status_idx ON clusters (status);

CREATE TABLE IF NOT EXISTS published_articles (
    cluster_id      TEXT PRIMARY KEY,
    version_number  INT NOT NULL,
    title_variants  TEXT[] NOT NULL,
    body_variants   TEXT[] NOT NULL,
    extras          JSONB NOT NULL DEFAULT '{}',
    published_at    TIMESTAMPTZ NOT NULL,
    last_updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS update_log (
    id             BIGSERIAL PRIMARY KEY,
    article_id     TEXT NOT NULL,
    trigger_reason TEXT NOT NULL,
    sources_added  INT NOT NULL,
    old_version    INT NOT NULL,
    new_version    INT NOT NULL,
    triggered_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS update_log_article_idx ON update_log (article_id);
`

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore implements the item, cluster, and article repositories on
// a single Postgres database.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ ports.ItemRepository    = (*PostgresStore)(nil)
	_ ports.ClusterRepository = (*PostgresStore)(nil)
	_ ports.ArticleRepository = (*PostgresStore)(nil)
)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the core tables when they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ExistingURLs returns a map with the normalized URLs that already exist.
func (s *PostgresStore) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT normalized_url FROM source_items WHERE normalized_url = ANY($1)`,
		pq.StringArray(urls))
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[url] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// SaveItem inserts a source item; a conflicting normalized URL is left
// untouched so re-ingestion can never double-count a cluster.
func (s *PostgresStore) SaveItem(ctx context.Context, item domain.SourceItem) error {
	query, args, err := builder.
		Insert("source_items").
		Columns("normalized_url", "cluster_id", "source_name", "title", "description",
			"body_text", "credibility_tier", "importance_score",
			"significant_terms", "named_entities", "published_at", "fetched_at").
		Values(item.NormalizedURL, item.ClusterID, item.SourceName, item.Title, item.Description,
			item.BodyText, item.CredibilityTier, item.ImportanceScore,
			pq.StringArray(item.SignificantTerms), pq.StringArray(item.NamedEntities),
			item.PublishedAt, item.FetchedAt).
		Suffix("ON CONFLICT (normalized_url) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build item insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// ClusterMembers loads all source items assigned to a cluster.
func (s *PostgresStore) ClusterMembers(ctx context.Context, clusterID string) ([]domain.SourceItem, error) {
	query, args, err := builder.
		Select("normalized_url", "cluster_id", "source_name", "title", "description",
			"body_text", "credibility_tier", "importance_score",
			"significant_terms", "named_entities", "published_at", "fetched_at").
		From("source_items").
		Where(sq.Eq{"cluster_id": clusterID}).
		OrderBy("published_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build members query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []domain.SourceItem
	for rows.Next() {
		var (
			item     domain.SourceItem
			terms    pq.StringArray
			entities pq.StringArray
		)
		if err := rows.Scan(&item.NormalizedURL, &item.ClusterID, &item.SourceName,
			&item.Title, &item.Description, &item.BodyText,
			&item.CredibilityTier, &item.ImportanceScore,
			&terms, &entities, &item.PublishedAt, &item.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		item.SignificantTerms = terms
		item.NamedEntities = entities
		members = append(members, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return members, nil
}

// OpenClusters loads all Active clusters.
func (s *PostgresStore) OpenClusters(ctx context.Context) ([]domain.Cluster, error) {
	query, args, err := builder.
		Select("id", "representative_title", "representative_terms", "terms", "status",
			"source_count", "peak_importance_score", "last_source_added_at",
			"last_version_source_count", "synthesis_failures",
			"created_at", "last_updated_at", "closed_at").
		From("clusters").
		Where(sq.Eq{"status": domain.ClusterActive}).
		OrderBy("last_updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build clusters query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []domain.Cluster
	for rows.Next() {
		var (
			c        domain.Cluster
			repTerms pq.StringArray
			terms    pq.StringArray
			closedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.RepresentativeTitle, &repTerms, &terms, &c.Status,
			&c.SourceCount, &c.PeakImportanceScore, &c.LastSourceAddedAt,
			&c.LastVersionSourceCount, &c.SynthesisFailures,
			&c.CreatedAt, &c.LastUpdatedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		c.RepresentativeTerms = repTerms
		c.Terms = terms
		if closedAt.Valid {
			t := closedAt.Time
			c.ClosedAt = &t
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return clusters, nil
}

// SaveCluster inserts a freshly founded cluster.
func (s *PostgresStore) SaveCluster(ctx context.Context, c domain.Cluster) error {
	query, args, err := builder.
		Insert("clusters").
		Columns("id", "representative_title", "representative_terms", "terms", "status",
			"source_count", "peak_importance_score", "last_source_added_at",
			"last_version_source_count", "synthesis_failures", "created_at", "last_updated_at").
		Values(c.ID, c.RepresentativeTitle, pq.StringArray(c.RepresentativeTerms),
			pq.StringArray(c.Terms), c.Status, c.SourceCount, c.PeakImportanceScore,
			c.LastSourceAddedAt, c.LastVersionSourceCount, c.SynthesisFailures,
			c.CreatedAt, c.LastUpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cluster insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert cluster: %w", err)
	}
	return nil
}

// UpdateAggregates writes the recomputed aggregate snapshot of a cluster.
func (s *PostgresStore) UpdateAggregates(ctx context.Context, c domain.Cluster) error {
	query, args, err := builder.
		Update("clusters").
		Set("representative_title", c.RepresentativeTitle).
		Set("representative_terms", pq.StringArray(c.RepresentativeTerms)).
		Set("terms", pq.StringArray(c.Terms)).
		Set("source_count", c.SourceCount).
		Set("peak_importance_score", c.PeakImportanceScore).
		Set("last_source_added_at", c.LastSourceAddedAt).
		Set("synthesis_failures", c.SynthesisFailures).
		Set("last_updated_at", c.LastUpdatedAt).
		Where(sq.Eq{"id": c.ID, "status": domain.ClusterActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build aggregates update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	return nil
}

// CloseCluster marks a cluster Closed. Closed is terminal: the id is never
// reused and the row is never flipped back to Active.
func (s *PostgresStore) CloseCluster(ctx context.Context, id string, at time.Time) error {
	query, args, err := builder.
		Update("clusters").
		Set("status", domain.ClusterClosed).
		Set("closed_at", at).
		Set("last_updated_at", at).
		Where(sq.Eq{"id": id, "status": domain.ClusterActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build close update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("close cluster: %w", err)
	}
	return nil
}

// SetSynthesisFailures updates the consecutive-failure counter.
func (s *PostgresStore) SetSynthesisFailures(ctx context.Context, id string, count int) error {
	query, args, err := builder.
		Update("clusters").
		Set("synthesis_failures", count).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build failures update: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set synthesis failures: %w", err)
	}
	return nil
}

// CurrentVersion returns the committed article version for a cluster,
// 0 when no article exists yet.
func (s *PostgresStore) CurrentVersion(ctx context.Context, clusterID string) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT version_number FROM published_articles WHERE cluster_id = $1`,
		clusterID).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}

// CommitVersion atomically upserts the published article keyed by
// cluster_id, appends one update-log row, and snapshots the cluster's
// source count. The upsert is guarded by the expected old version, so a
// concurrent commit cannot produce a gap or an overwrite; everything rolls
// back together on any failure.
func (s *PostgresStore) CommitVersion(ctx context.Context, article domain.PublishedArticle, entry domain.UpdateLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	extras, err := json.Marshal(article.Extras)
	if err != nil {
		return fmt.Errorf("marshal extras: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
        INSERT INTO published_articles
            (cluster_id, version_number, title_variants, body_variants, extras, published_at, last_updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (cluster_id) DO UPDATE
        SET version_number  = EXCLUDED.version_number,
            title_variants  = EXCLUDED.title_variants,
            body_variants   = EXCLUDED.body_variants,
            extras          = EXCLUDED.extras,
            last_updated_at = EXCLUDED.last_updated_at
        WHERE published_articles.version_number = $7`,
		article.ClusterID,
		article.VersionNumber,
		pq.StringArray(article.TitleVariants),
		pq.StringArray(article.BodyVariants),
		extras,
		article.LastUpdatedAt,
		entry.OldVersion,
	)
	if err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("version conflict on cluster %s: expected %d", article.ClusterID, entry.OldVersion)
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO update_log (article_id, trigger_reason, sources_added, old_version, new_version, triggered_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ArticleID, entry.Reason, entry.SourcesAdded,
		entry.OldVersion, entry.NewVersion, entry.TriggeredAt,
	); err != nil {
		return fmt.Errorf("append update log: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE clusters
        SET last_version_source_count = source_count,
            synthesis_failures = 0
        WHERE id = $1`,
		article.ClusterID,
	); err != nil {
		return fmt.Errorf("snapshot cluster: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit version: %w", err)
	}
	return nil
}
