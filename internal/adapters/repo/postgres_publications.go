package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SavePublications реализует domain.PublicationRepo. Пакет пишется одним
// INSERT: частично записанная выдача не должна быть видна.
func (p *Postgres) SavePublications(ctx context.Context, requestID string, items []domain.Publication) error {
	if len(items) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	builder := psql.Insert("publications").
		Columns("request_id", "title", "url", "published_at", "source", "lang", "sentiment", "entities")
	for _, item := range items {
		var sentiment any
		if item.Sentiment != "" {
			sentiment = item.Sentiment
		}
		var entities any
		if len(item.Entities) > 0 {
			data, err := json.Marshal(item.Entities)
			if err != nil {
				return err
			}
			entities = data
		}
		builder = builder.Values(requestID, item.Title, item.URL, item.PublishedAt, item.Source, item.Lang, sentiment, entities)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "publications_insert", "publications", start, err)
	return err
}

func applyPublicationFilter(builder sq.SelectBuilder, f domain.PublicationFilter) sq.SelectBuilder {
	builder = builder.Where(sq.Eq{"request_id": f.RequestID})
	if f.DateFrom != nil {
		builder = builder.Where(sq.GtOrEq{"published_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		builder = builder.Where(sq.LtOrEq{"published_at": *f.DateTo})
	}
	if len(f.Sources) > 0 {
		builder = builder.Where(sq.Eq{"source": f.Sources})
	}
	if len(f.Sentiments) > 0 {
		builder = builder.Where(sq.Eq{"sentiment": f.Sentiments})
	}
	if len(f.Langs) > 0 {
		builder = builder.Where(sq.Eq{"lang": f.Langs})
	}
	return builder
}

// ListPublications реализует domain.PublicationRepo. Total считается
// по фильтрам до применения пагинации.
func (p *Postgres) ListPublications(ctx context.Context, f domain.PublicationFilter) (int, []domain.Publication, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	countQuery, countArgs, err := applyPublicationFilter(psql.Select("COUNT(*)").From("publications"), f).ToSql()
	if err != nil {
		return 0, nil, err
	}
	var total int
	start := time.Now()
	err = p.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "publications_count", "publications", start, err)
	if err != nil {
		return 0, nil, err
	}

	builder := applyPublicationFilter(
		psql.Select("id", "request_id", "title", "url", "published_at", "source", "lang", "sentiment", "entities").
			From("publications"), f)
	if f.OrderByPublished {
		if f.OrderDesc {
			builder = builder.OrderBy("published_at DESC")
		} else {
			builder = builder.OrderBy("published_at ASC")
		}
	}
	query, args, err := builder.
		Offset(uint64(f.Offset)).
		Limit(uint64(f.Limit)).
		ToSql()
	if err != nil {
		return 0, nil, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "publications_list", "publications", start, err)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var items []domain.Publication
	for rows.Next() {
		var (
			item      domain.Publication
			sentiment sql.NullString
			entities  []byte
		)
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Title, &item.URL, &item.PublishedAt,
			&item.Source, &item.Lang, &sentiment, &entities); err != nil {
			return 0, nil, err
		}
		if sentiment.Valid {
			item.Sentiment = sentiment.String
		}
		if len(entities) > 0 {
			if err := json.Unmarshal(entities, &item.Entities); err != nil {
				return 0, nil, err
			}
		}
		item.PublishedAt = item.PublishedAt.UTC()
		items = append(items, item)
	}
	return total, items, rows.Err()
}

// PublicationFacets реализует domain.PublicationRepo.
func (p *Postgres) PublicationFacets(ctx context.Context, requestID string) (domain.PublicationFacets, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	facets := domain.PublicationFacets{
		BySource:    map[string]int{},
		BySentiment: map[string]int{},
	}

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM publications WHERE request_id = $1
`, requestID).Scan(&facets.Total)
	metrics.ObserveNetworkRequest("postgres", "publications_facets_total", "publications", start, err)
	if err != nil {
		return domain.PublicationFacets{}, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT source, COUNT(*) FROM publications WHERE request_id = $1 GROUP BY source
`, requestID)
	metrics.ObserveNetworkRequest("postgres", "publications_facets_source", "publications", start, err)
	if err != nil {
		return domain.PublicationFacets{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return domain.PublicationFacets{}, err
		}
		facets.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return domain.PublicationFacets{}, err
	}

	start = time.Now()
	sentimentRows, err := p.pool.Query(ctx, `
SELECT sentiment, COUNT(*) FROM publications WHERE request_id = $1 AND sentiment IS NOT NULL GROUP BY sentiment
`, requestID)
	metrics.ObserveNetworkRequest("postgres", "publications_facets_sentiment", "publications", start, err)
	if err != nil {
		return domain.PublicationFacets{}, err
	}
	defer sentimentRows.Close()
	for sentimentRows.Next() {
		var (
			sentiment string
			count     int
		)
		if err := sentimentRows.Scan(&sentiment, &count); err != nil {
			return domain.PublicationFacets{}, err
		}
		facets.BySentiment[sentiment] = count
	}
	return facets, sentimentRows.Err()
}
