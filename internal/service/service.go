package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bazaar-service/internal/domain"
	"bazaar-service/internal/infrastructure/metrics"
	"bazaar-service/internal/repository"
)

var (
	ErrInvalidID  = errors.New("invalid ad ID")
	ErrAdNotFound = errors.New("ad not found")
	ErrImagePart  = errors.New("image file name and content type are required")
)

// ImageUpload is one decoded multipart image part.
type ImageUpload struct {
	FileName string
	MimeType string
	Data     []byte
}

type PageResult struct {
	Page  int         `json:"page"`
	Items []domain.Ad `json:"items"`
}

type CursorResult struct {
	Cursor string      `json:"cursor"`
	Items  []domain.Ad `json:"items"`
}

type AdService interface {
	GetAds(ctx context.Context, offset int, perPage int, filter domain.AdFilter) (*PageResult, error)
	GetAdByID(ctx context.Context, id int32) (*domain.Ad, error)
	CreateAd(ctx context.Context, content domain.AdContent, images []ImageUpload) (*domain.Ad, error)
	UpdateAd(ctx context.Context, id int32, ad domain.Ad) (*domain.Ad, error)
	DeleteAd(ctx context.Context, id int32) (int64, error)
	OpenCursor(ctx context.Context, filter domain.AdFilter) (string, error)
	FetchCursor(ctx context.Context, name string, count uint8) ([]domain.Ad, error)
	CloseCursor(ctx context.Context, name string) error
	GetImage(ctx context.Context, id string) (*domain.Image, error)
}

type adService struct {
	repository repository.AdRepository
	images     repository.ImageRepository
	metrics    *metrics.ServiceMetrics
	tracer     trace.Tracer
}

func NewAdService(repo repository.AdRepository, images repository.ImageRepository, metrics *metrics.ServiceMetrics) AdService {
	tracer := otel.Tracer("bazaar-service/service")
	return &adService{
		repository: repo,
		images:     images,
		metrics:    metrics,
		tracer:     tracer,
	}
}

func (s *adService) GetAds(ctx context.Context, offset int, perPage int, filter domain.AdFilter) (*PageResult, error) {
	ctx, span := s.tracer.Start(ctx, "GetAds")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("GetAds", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("GetAds", status).Observe(duration)
	}()

	ads, err := s.repository.GetPage(ctx, offset, perPage, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	page := 1
	if perPage > 0 {
		page = offset/perPage + 1
	}

	span.SetAttributes(
		attribute.Int("ads.offset", offset),
		attribute.Int("ads.per_page", perPage),
		attribute.Int("ads.page", page),
	)

	return &PageResult{Page: page, Items: ads}, nil
}

func (s *adService) GetAdByID(ctx context.Context, id int32) (*domain.Ad, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "GetAdByID")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("GetAdByID", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("GetAdByID", status).Observe(duration)
	}()

	ad, err := s.repository.GetByID(ctx, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}
	if ad == nil {
		status = "not_found"
		return nil, ErrAdNotFound
	}

	span.SetAttributes(attribute.Int64("ad.id", int64(id)))
	return ad, nil
}

func (s *adService) CreateAd(ctx context.Context, content domain.AdContent, images []ImageUpload) (*domain.Ad, error) {
	ctx, span := s.tracer.Start(ctx, "CreateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("CreateAd", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("CreateAd", status).Observe(duration)
	}()

	// Every image part must carry a file name and content type; one bad
	// part fails the whole create before anything is written.
	for _, img := range images {
		if img.FileName == "" || img.MimeType == "" {
			status = "error"
			return nil, ErrImagePart
		}
	}

	imageIDs := make([]string, 0, len(images))
	for _, img := range images {
		id, err := s.images.CreateImage(ctx, img.FileName, img.Data, img.MimeType)
		if err != nil {
			status = "error"
			span.RecordError(err)
			return nil, err
		}
		imageIDs = append(imageIDs, id)
	}

	createdAd, err := s.repository.Create(ctx, content, imageIDs)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("ad.id", int64(createdAd.ID)),
		attribute.String("ad.title", createdAd.Title),
		attribute.Int("ad.images", len(imageIDs)),
	)
	return createdAd, nil
}

func (s *adService) UpdateAd(ctx context.Context, id int32, ad domain.Ad) (*domain.Ad, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "UpdateAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("UpdateAd", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("UpdateAd", status).Observe(duration)
	}()

	updatedAd, err := s.repository.Update(ctx, id, ad)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			return nil, ErrAdNotFound
		}
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("ad.id", int64(updatedAd.ID)),
		attribute.String("ad.title", updatedAd.Title),
	)
	return updatedAd, nil
}

func (s *adService) DeleteAd(ctx context.Context, id int32) (int64, error) {
	if id <= 0 {
		return 0, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "DeleteAd")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("DeleteAd", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("DeleteAd", status).Observe(duration)
	}()

	count, err := s.repository.Delete(ctx, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(
		attribute.Int64("ad.id", int64(id)),
		attribute.Int64("ad.deleted", count),
	)
	return count, nil
}

func (s *adService) OpenCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	ctx, span := s.tracer.Start(ctx, "OpenCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("OpenCursor", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("OpenCursor", status).Observe(duration)
	}()

	name, err := s.repository.NewCursor(ctx, filter)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.String("cursor.name", name))
	return name, nil
}

func (s *adService) FetchCursor(ctx context.Context, name string, count uint8) ([]domain.Ad, error) {
	ctx, span := s.tracer.Start(ctx, "FetchCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("FetchCursor", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("FetchCursor", status).Observe(duration)
	}()

	ads, err := s.repository.FetchFromCursor(ctx, name, count)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("cursor.name", name),
		attribute.Int("cursor.fetched", len(ads)),
	)
	return ads, nil
}

func (s *adService) CloseCursor(ctx context.Context, name string) error {
	ctx, span := s.tracer.Start(ctx, "CloseCursor")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("CloseCursor", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("CloseCursor", status).Observe(duration)
	}()

	if err := s.repository.CloseCursor(ctx, name); err != nil {
		status = "error"
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.String("cursor.name", name))
	return nil
}

func (s *adService) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	ctx, span := s.tracer.Start(ctx, "GetImage")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		duration := time.Since(startTime).Seconds()
		s.metrics.MethodCount.WithLabelValues("GetImage", status).Inc()
		s.metrics.MethodDuration.WithLabelValues("GetImage", status).Observe(duration)
	}()

	image, err := s.images.GetImage(ctx, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.String("image.id", id))
	return image, nil
}
