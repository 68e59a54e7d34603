// Package service holds the marketplace's business logic: the listing store,
// the post and profile composers, auth and the read-only task/review views.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"marketplace/internal/cache"
	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultLocalCacheKey is where the locally created listings are kept.
const DefaultLocalCacheKey = "userPosts"

// ListingStore is the feed's read model: listings created here, kept in the
// local cache, merged in front of the remote collection.
//
// The cached collection is rewritten in full on every change. Writers in the
// same process are serialized; writers in other processes are not, and the
// last full snapshot written wins.
type ListingStore struct {
	local       cache.Store
	remote      repository.ListingRepository
	key         string
	remoteLimit int

	mu sync.Mutex
}

// NewListingStore creates a store over the given cache and remote collection.
// remote may be nil, in which case only the local collection is served.
func NewListingStore(local cache.Store, remote repository.ListingRepository, key string, remoteLimit int) *ListingStore {
	if key == "" {
		key = DefaultLocalCacheKey
	}
	return &ListingStore{
		local:       local,
		remote:      remote,
		key:         key,
		remoteLimit: remoteLimit,
	}
}

// Load returns the locally cached listings, newest first. A missing,
// unreadable or corrupt cache entry yields an empty collection.
func (s *ListingStore) Load(ctx context.Context) []models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *ListingStore) loadLocked(ctx context.Context) []models.Listing {
	raw, ok, err := s.local.Get(ctx, s.key)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "local listing cache unavailable",
			slog.String("key", s.key), slog.String("error", err.Error()))
		return []models.Listing{}
	}
	if !ok {
		return []models.Listing{}
	}

	var listings []models.Listing
	if err := json.Unmarshal([]byte(raw), &listings); err != nil {
		observability.CacheCorruptions.Inc()
		observability.GlobalLogger.WarnContext(ctx, "discarding corrupt local listing cache",
			slog.String("key", s.key), slog.String("error", err.Error()))
		return []models.Listing{}
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return listings
}

func (s *ListingStore) saveLocked(ctx context.Context, listings []models.Listing) error {
	payload, err := json.Marshal(listings)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.local.Set(ctx, s.key, string(payload), 0); err != nil {
		return models.NewTransientIOError("Failed to save listing", err)
	}
	return nil
}

// Merge puts local before remote. Neither side is reordered.
func Merge(remote, local []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(local)+len(remote))
	out = append(out, local...)
	return append(out, remote...)
}

// Append prepends l to the local collection and rewrites the cache entry.
func (s *ListingStore) Append(ctx context.Context, l models.Listing) (err error) {
	ctx, span := observability.StartSpan(ctx, "ListingStore.Append", attribute.String("listing.id", l.ID))
	defer func() { observability.EndSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.loadLocked(ctx)
	next := make([]models.Listing, 0, len(current)+1)
	next = append(next, l)
	next = append(next, current...)
	if err := s.saveLocked(ctx, next); err != nil {
		return err
	}

	observability.ListingsCreated.WithLabelValues(string(l.Category)).Inc()
	return nil
}

// Replace rewrites the cached listing with the given id. It reports false
// when no cached listing has that id.
func (s *ListingStore) Replace(ctx context.Context, id string, fn func(models.Listing) models.Listing) (models.Listing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listings := s.loadLocked(ctx)
	for i := range listings {
		if listings[i].ID != id {
			continue
		}
		listings[i] = fn(listings[i])
		if err := s.saveLocked(ctx, listings); err != nil {
			return models.Listing{}, true, err
		}
		return listings[i], true, nil
	}
	return models.Listing{}, false, nil
}

// Feed returns the local collection followed by the remote one.
func (s *ListingStore) Feed(ctx context.Context) (_ []models.Listing, err error) {
	ctx, span := observability.StartSpan(ctx, "ListingStore.Feed")
	defer func() { observability.EndSpan(span, err) }()

	local := s.Load(ctx)
	if s.remote == nil {
		return local, nil
	}
	remote, err := s.remote.Select(ctx, s.remoteLimit)
	if err != nil {
		return nil, models.NewTransientIOError("Failed to load listings", err)
	}
	return Merge(remote, local), nil
}

// Accept marks a listing ACCEPTED wherever it lives: the local cache first,
// then the remote collection. Accepting twice is harmless.
func (s *ListingStore) Accept(ctx context.Context, id string) (_ models.Listing, err error) {
	ctx, span := observability.StartSpan(ctx, "ListingStore.Accept", attribute.String("listing.id", id))
	defer func() { observability.EndSpan(span, err) }()

	accepted, found, err := s.Replace(ctx, id, models.AcceptListing)
	if err != nil {
		return models.Listing{}, err
	}
	if found {
		observability.ListingsAccepted.WithLabelValues("local").Inc()
		return accepted, nil
	}

	if s.remote == nil {
		return models.Listing{}, models.NewNotFoundError("Listing", id)
	}
	current, err := s.remote.GetByID(ctx, id)
	if err != nil {
		return models.Listing{}, remoteErr(err)
	}
	if current.Status == models.StatusAccepted {
		return *current, nil
	}
	if err := s.remote.Update(ctx, id, map[string]any{"status": models.StatusAccepted}); err != nil {
		return models.Listing{}, remoteErr(err)
	}
	observability.ListingsAccepted.WithLabelValues("remote").Inc()
	return models.AcceptListing(*current), nil
}

func remoteErr(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewTransientIOError("Listing service unavailable", err)
}
