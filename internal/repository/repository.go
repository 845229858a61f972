package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar-service/internal/domain"
	"bazaar-service/internal/infrastructure/cache"
	"bazaar-service/internal/infrastructure/metrics"
	"bazaar-service/pkg/database"
)

type AdRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Ad, error)
	GetPage(ctx context.Context, offset int, perPage int, filter domain.AdFilter) ([]domain.Ad, error)
	Create(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error)
	Update(ctx context.Context, id int32, ad domain.Ad) (*domain.Ad, error)
	Delete(ctx context.Context, id int32) (int64, error)
	NewCursor(ctx context.Context, filter domain.AdFilter) (string, error)
	FetchFromCursor(ctx context.Context, name string, count uint8) ([]domain.Ad, error)
	CloseCursor(ctx context.Context, name string) error
}

type postgresAdRepository struct {
	db      *database.Manager
	cursors *CursorManager
	cache   cache.Cache
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

func NewPostgresAdRepository(db *database.Manager, cursors *CursorManager, cache cache.Cache, metrics *metrics.RepositoryMetrics) AdRepository {
	tracer := otel.Tracer("bazaar-service/repository")
	return &postgresAdRepository{
		db:      db,
		cursors: cursors,
		cache:   cache,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (r *postgresAdRepository) GetByID(ctx context.Context, id int32) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("ad.id", int64(id)))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("GetByID", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("GetByID", status).Observe(duration)
	}()

	cacheKey := fmt.Sprintf("ad:%d", id)

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
	cachedAd, err := r.cache.Get(cacheSpanCtx, cacheKey)
	cacheSpan.End()

	if err == nil {
		var ad domain.Ad
		if err := json.Unmarshal([]byte(cachedAd), &ad); err == nil {
			return &ad, nil
		}
	}

	query := fmt.Sprintf("SELECT %s FROM ads WHERE id = $1", adColumns)

	ad, err := scanAd(r.db.Read().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			return nil, nil
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve ad %d: %w", id, err)
	}

	if adJSON, err := json.Marshal(ad); err == nil {
		cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Set")
		r.cache.Set(cacheSpanCtx, cacheKey, string(adJSON), 10*time.Minute)
		cacheSpan.End()
	}

	return ad, nil
}

func (r *postgresAdRepository) GetPage(ctx context.Context, offset int, perPage int, filter domain.AdFilter) ([]domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository GetPage")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("GetPage", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("GetPage", status).Observe(duration)
	}()

	clauses, err := buildClauses(filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	if perPage <= 0 {
		return []domain.Ad{}, nil
	}

	where, args := renderWhere(clauses, 1)
	query := fmt.Sprintf("SELECT %s FROM ads%s OFFSET $%d LIMIT $%d",
		adColumns, where, len(args)+1, len(args)+2)
	args = append(args, offset, perPage)

	span.SetAttributes(
		attribute.Int("ads.offset", offset),
		attribute.Int("ads.per_page", perPage),
	)

	rows, err := r.db.Read().Query(ctx, query, args...)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve ads: %w", err)
	}

	ads, err := scanAds(rows)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan ads: %w", err)
	}

	return ads, nil
}

func (r *postgresAdRepository) Create(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Create")
	defer span.End()

	span.SetAttributes(attribute.String("ad.title", content.Title))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Create", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Create", status).Observe(duration)
	}()

	if imageIDs == nil {
		imageIDs = []string{}
	}

	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO ads (title, description, price, status, user_email, user_phone, created_at, updated_at, top_ad, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s`, adColumns)

	ad, err := scanAd(r.db.Write().QueryRow(ctx, query,
		content.Title,
		content.Description,
		content.Price,
		"active",
		content.UserEmail,
		content.UserPhone,
		now,
		now,
		content.TopAd,
		imageIDs,
	))
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert ad: %w", err)
	}

	return ad, nil
}

func (r *postgresAdRepository) Update(ctx context.Context, id int32, ad domain.Ad) (*domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Update")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("ad.id", int64(id)),
		attribute.String("ad.title", ad.Title),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Update", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Update", status).Observe(duration)
	}()

	if ad.Images == nil {
		ad.Images = []string{}
	}

	query := fmt.Sprintf(`
		UPDATE ads
		SET title = $1, description = $2, price = $3, status = $4, user_email = $5,
			user_phone = $6, created_at = $7, updated_at = $8, top_ad = $9, images = $10
		WHERE id = $11
		RETURNING %s`, adColumns)

	updated, err := scanAd(r.db.Write().QueryRow(ctx, query,
		ad.Title,
		ad.Description,
		ad.Price,
		ad.Status,
		ad.UserEmail,
		ad.UserPhone,
		ad.CreatedAt,
		ad.UpdatedAt,
		ad.TopAd,
		ad.Images,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			return nil, pgx.ErrNoRows
		}
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update ad %d: %w", id, err)
	}

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, fmt.Sprintf("ad:%d", id))
	cacheSpan.End()

	return updated, nil
}

func (r *postgresAdRepository) Delete(ctx context.Context, id int32) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("ad.id", int64(id)))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("Delete", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("Delete", status).Observe(duration)
	}()

	tag, err := r.db.Write().Exec(ctx, "DELETE FROM ads WHERE id = $1", id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return 0, fmt.Errorf("failed to delete ad %d: %w", id, err)
	}

	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, fmt.Sprintf("ad:%d", id))
	cacheSpan.End()

	// Deleting an absent row is a zero-count success, not an error.
	return tag.RowsAffected(), nil
}

func (r *postgresAdRepository) NewCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	ctx, span := r.tracer.Start(ctx, "Repository NewCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("NewCursor", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("NewCursor", status).Observe(duration)
	}()

	name, err := r.cursors.Declare(ctx, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("cursor.name", name))
	return name, nil
}

func (r *postgresAdRepository) FetchFromCursor(ctx context.Context, name string, count uint8) ([]domain.Ad, error) {
	ctx, span := r.tracer.Start(ctx, "Repository FetchFromCursor")
	defer span.End()

	span.SetAttributes(
		attribute.String("cursor.name", name),
		attribute.Int("cursor.count", int(count)),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("FetchFromCursor", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("FetchFromCursor", status).Observe(duration)
	}()

	ads, err := r.cursors.Fetch(ctx, name, count)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	return ads, nil
}

func (r *postgresAdRepository) CloseCursor(ctx context.Context, name string) error {
	ctx, span := r.tracer.Start(ctx, "Repository CloseCursor")
	defer span.End()

	span.SetAttributes(attribute.String("cursor.name", name))

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		r.metrics.QueryCount.WithLabelValues("CloseCursor", status).Inc()
		r.metrics.QueryDuration.WithLabelValues("CloseCursor", status).Observe(duration)
	}()

	if err := r.cursors.Close(ctx, name); err != nil {
		status = "error"
		span.RecordError(err)
		return err
	}
	return nil
}

func scanAd(row pgx.Row) (*domain.Ad, error) {
	var ad domain.Ad
	err := row.Scan(
		&ad.ID,
		&ad.Title,
		&ad.Description,
		&ad.Price,
		&ad.Status,
		&ad.UserEmail,
		&ad.UserPhone,
		&ad.CreatedAt,
		&ad.UpdatedAt,
		&ad.TopAd,
		&ad.Images,
	)
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

func scanAds(rows pgx.Rows) ([]domain.Ad, error) {
	defer rows.Close()

	ads := []domain.Ad{}
	for rows.Next() {
		var ad domain.Ad
		if err := rows.Scan(
			&ad.ID,
			&ad.Title,
			&ad.Description,
			&ad.Price,
			&ad.Status,
			&ad.UserEmail,
			&ad.UserPhone,
			&ad.CreatedAt,
			&ad.UpdatedAt,
			&ad.TopAd,
			&ad.Images,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ads, nil
}
