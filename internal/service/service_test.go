package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bazaar-service/internal/domain"
	"bazaar-service/internal/infrastructure/metrics"
)

type fakeAdRepo struct {
	pageItems   []domain.Ad
	pageErr     error
	byID        *domain.Ad
	byIDErr     error
	created     *domain.Ad
	createErr   error
	createImgs  []string
	updateErr   error
	deleteCount int64
	cursorName  string
	cursorErr   error
	fetched     []domain.Ad
	fetchErr    error
	closeErr    error

	lastOffset  int
	lastPerPage int
}

func (f *fakeAdRepo) GetByID(ctx context.Context, id int32) (*domain.Ad, error) {
	return f.byID, f.byIDErr
}

func (f *fakeAdRepo) GetPage(ctx context.Context, offset int, perPage int, filter domain.AdFilter) ([]domain.Ad, error) {
	f.lastOffset = offset
	f.lastPerPage = perPage
	return f.pageItems, f.pageErr
}

func (f *fakeAdRepo) Create(ctx context.Context, content domain.AdContent, imageIDs []string) (*domain.Ad, error) {
	f.createImgs = imageIDs
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.created != nil {
		return f.created, nil
	}
	return &domain.Ad{ID: 1, Title: content.Title, Images: imageIDs}, nil
}

func (f *fakeAdRepo) Update(ctx context.Context, id int32, ad domain.Ad) (*domain.Ad, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	ad.ID = id
	return &ad, nil
}

func (f *fakeAdRepo) Delete(ctx context.Context, id int32) (int64, error) {
	return f.deleteCount, nil
}

func (f *fakeAdRepo) NewCursor(ctx context.Context, filter domain.AdFilter) (string, error) {
	return f.cursorName, f.cursorErr
}

func (f *fakeAdRepo) FetchFromCursor(ctx context.Context, name string, count uint8) ([]domain.Ad, error) {
	return f.fetched, f.fetchErr
}

func (f *fakeAdRepo) CloseCursor(ctx context.Context, name string) error {
	return f.closeErr
}

type fakeImageRepo struct {
	nextID  int
	stored  []string
	err     error
	image   *domain.Image
	getErr  error
	deleted []string
}

func (f *fakeImageRepo) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	return f.image, f.getErr
}

func (f *fakeImageRepo) CreateImage(ctx context.Context, fileName string, data []byte, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.nextID++
	id := fmt.Sprintf("img-%d", f.nextID)
	f.stored = append(f.stored, id)
	return id, nil
}

func (f *fakeImageRepo) DeleteImage(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func testServiceMetrics() *metrics.ServiceMetrics {
	return &metrics.ServiceMetrics{
		MethodCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "test_service_methods_total"},
			[]string{"method", "status"},
		),
		MethodDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_service_method_duration_seconds"},
			[]string{"method", "status"},
		),
	}
}

func newTestService(repo *fakeAdRepo, images *fakeImageRepo) AdService {
	return NewAdService(repo, images, testServiceMetrics())
}

func TestGetAdsPageNumber(t *testing.T) {
	repo := &fakeAdRepo{pageItems: []domain.Ad{{ID: 1}, {ID: 2}}}
	svc := newTestService(repo, &fakeImageRepo{})

	result, err := svc.GetAds(context.Background(), 20, 10, domain.AdFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Page)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 20, repo.lastOffset)
	assert.Equal(t, 10, repo.lastPerPage)
}

func TestGetAdsZeroPerPage(t *testing.T) {
	repo := &fakeAdRepo{pageItems: []domain.Ad{}}
	svc := newTestService(repo, &fakeImageRepo{})

	result, err := svc.GetAds(context.Background(), 0, 0, domain.AdFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Page)
	assert.Empty(t, result.Items)
}

func TestGetAdByIDInvalid(t *testing.T) {
	svc := newTestService(&fakeAdRepo{}, &fakeImageRepo{})

	_, err := svc.GetAdByID(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = svc.GetAdByID(context.Background(), -3)
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestGetAdByIDNotFound(t *testing.T) {
	svc := newTestService(&fakeAdRepo{byID: nil}, &fakeImageRepo{})

	_, err := svc.GetAdByID(context.Background(), 42)
	require.ErrorIs(t, err, ErrAdNotFound)
}

func TestGetAdByIDFound(t *testing.T) {
	ad := &domain.Ad{ID: 42, Title: "Found"}
	svc := newTestService(&fakeAdRepo{byID: ad}, &fakeImageRepo{})

	got, err := svc.GetAdByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, ad, got)
}

func TestCreateAdStoresImagesInOrder(t *testing.T) {
	repo := &fakeAdRepo{}
	images := &fakeImageRepo{}
	svc := newTestService(repo, images)

	uploads := []ImageUpload{
		{FileName: "a.png", MimeType: "image/png", Data: []byte("a")},
		{FileName: "b.png", MimeType: "image/png", Data: []byte("b")},
	}

	content := domain.AdContent{Title: "With images", Price: decimal.NewFromInt(5)}
	created, err := svc.CreateAd(context.Background(), content, uploads)
	require.NoError(t, err)

	assert.Equal(t, []string{"img-1", "img-2"}, images.stored)
	assert.Equal(t, []string{"img-1", "img-2"}, repo.createImgs)
	assert.Equal(t, []string{"img-1", "img-2"}, created.Images)
}

func TestCreateAdRejectsIncompleteImagePart(t *testing.T) {
	repo := &fakeAdRepo{}
	images := &fakeImageRepo{}
	svc := newTestService(repo, images)

	uploads := []ImageUpload{
		{FileName: "ok.png", MimeType: "image/png"},
		{FileName: "", MimeType: "image/png"},
	}

	_, err := svc.CreateAd(context.Background(), domain.AdContent{}, uploads)
	require.ErrorIs(t, err, ErrImagePart)

	// Nothing may be written when any part is invalid.
	assert.Empty(t, images.stored)
	assert.Nil(t, repo.createImgs)
}

func TestUpdateAdNotFound(t *testing.T) {
	svc := newTestService(&fakeAdRepo{updateErr: pgx.ErrNoRows}, &fakeImageRepo{})

	_, err := svc.UpdateAd(context.Background(), 7, domain.Ad{})
	require.ErrorIs(t, err, ErrAdNotFound)
}

func TestUpdateAdInvalidID(t *testing.T) {
	svc := newTestService(&fakeAdRepo{}, &fakeImageRepo{})

	_, err := svc.UpdateAd(context.Background(), 0, domain.Ad{})
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestDeleteAdReportsCount(t *testing.T) {
	repo := &fakeAdRepo{deleteCount: 1}
	svc := newTestService(repo, &fakeImageRepo{})

	count, err := svc.DeleteAd(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A second delete of the same id is a zero-count success.
	repo.deleteCount = 0
	count, err = svc.DeleteAd(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCursorPassthrough(t *testing.T) {
	repo := &fakeAdRepo{cursorName: "c_0123456789", fetched: []domain.Ad{{ID: 1}}}
	svc := newTestService(repo, &fakeImageRepo{})

	name, err := svc.OpenCursor(context.Background(), domain.AdFilter{})
	require.NoError(t, err)
	assert.Equal(t, "c_0123456789", name)

	ads, err := svc.FetchCursor(context.Background(), name, 2)
	require.NoError(t, err)
	assert.Len(t, ads, 1)

	require.NoError(t, svc.CloseCursor(context.Background(), name))
}
