package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

// listingRepoStub is a stub for repository.ListingRepository.
type listingRepoStub struct {
	selectFn  func(context.Context, int) ([]models.Listing, error)
	getByIDFn func(context.Context, string) (*models.Listing, error)
	insertFn  func(context.Context, *models.Listing) error
	updateFn  func(context.Context, string, map[string]any) error
}

func (s *listingRepoStub) Select(ctx context.Context, limit int) ([]models.Listing, error) {
	return s.selectFn(ctx, limit)
}
func (s *listingRepoStub) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	return s.getByIDFn(ctx, id)
}
func (s *listingRepoStub) Insert(ctx context.Context, l *models.Listing) error {
	return s.insertFn(ctx, l)
}
func (s *listingRepoStub) Update(ctx context.Context, id string, patch map[string]any) error {
	return s.updateFn(ctx, id, patch)
}

func noopListingRepo() *listingRepoStub {
	return &listingRepoStub{
		selectFn:  func(context.Context, int) ([]models.Listing, error) { return nil, nil },
		getByIDFn: func(_ context.Context, id string) (*models.Listing, error) { return nil, models.NewNotFoundError("Listing", id) },
		insertFn:  func(context.Context, *models.Listing) error { return nil },
		updateFn:  func(context.Context, string, map[string]any) error { return nil },
	}
}

// failingStore wraps a Store and fails the selected operations.
type failingStore struct {
	cache.Store
	failGet bool
	failSet bool
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, errors.New("store unavailable")
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.failSet {
		return errors.New("store unavailable")
	}
	return s.Store.Set(ctx, key, value, ttl)
}

// appenderStub records appended listings.
type appenderStub struct {
	mu    sync.Mutex
	got   []models.Listing
	err   error
	calls int
}

func (a *appenderStub) Append(_ context.Context, l models.Listing) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return a.err
	}
	a.got = append(a.got, l)
	return nil
}

func sampleListing(id string, age time.Duration) models.Listing {
	return models.Listing{
		ID:          id,
		AuthorName:  "Alex",
		Category:    models.CategoryNeed,
		Title:       "Need a plumber for kitchen",
		Description: "Leaking pipe under the sink needs urgent repair",
		Tags:        []string{"plumbing"},
		Location:    "Springfield",
		Status:      models.StatusOpen,
		CreatedAt:   testNow.Add(-age),
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
