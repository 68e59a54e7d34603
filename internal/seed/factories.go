package seed

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"marketplace/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

var serviceTags = []string{
	"Plumbing", "Electrical", "Cleaning", "Carpentry", "Gardening", "Moving",
	"Painting", "Tutoring", "Pet Care", "Web Development", "Design", "Repairs",
	"Urgent", "Residential", "Weekend",
}

var urgencies = []models.Urgency{"", models.UrgencyNow, models.UrgencyToday, models.UrgencyFlexible}

// ListingInserter persists listings. repository.ListingRepository satisfies it.
type ListingInserter interface {
	Insert(ctx context.Context, listing *models.Listing) error
}

// Factory builds demo listings. A fixed seed gives a repeatable data set.
type Factory struct {
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
	// MaxDays bounds how far back CreatedAt is spread.
	MaxDays int
}

// NewFactory creates a factory. seed 0 picks a time-based seed.
func NewFactory(seed int64, now time.Time) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		faker:   gofakeit.New(seed),
		rng:     rand.New(rand.NewSource(seed)),
		now:     now,
		MaxDays: 14,
	}
}

// BuildListing returns a valid OPEN listing with randomized content.
func (f *Factory) BuildListing(overrides ...func(*models.Listing)) models.Listing {
	category := models.CategoryNeed
	verb := "Need help with"
	if f.rng.Intn(2) == 1 {
		category = models.CategoryProvide
		verb = "Offering"
	}

	tags := f.pickTags(1 + f.rng.Intn(3))
	minutesBack := f.rng.Intn(max(f.MaxDays, 1) * 24 * 60)

	l := models.Listing{
		ID:             models.NewListingID(),
		AuthorName:     f.faker.Name(),
		AuthorImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/150/150", f.faker.UUID()),
		Category:       category,
		Title:          fmt.Sprintf("%s %s", verb, tags[0]),
		Description:    f.faker.Sentence(12),
		Tags:           tags,
		Location:       fmt.Sprintf("%s, %s", f.faker.City(), f.faker.StateAbr()),
		Budget:         fmt.Sprintf("$%d", 50+f.rng.Intn(20)*25),
		Timeline:       f.faker.RandomString([]string{"ASAP", "This week", "This weekend", "2 weeks", "Flexible"}),
		DistanceKm:     float64(f.rng.Intn(80)) / 10,
		Urgency:        urgencies[f.rng.Intn(len(urgencies))],
		Status:         models.StatusOpen,
		CreatedAt:      f.now.Add(-time.Duration(minutesBack) * time.Minute).UTC(),
	}
	for _, o := range overrides {
		o(&l)
	}
	return l
}

// BuildListings returns n listings ordered newest first.
func (f *Factory) BuildListings(n int) []models.Listing {
	out := make([]models.Listing, 0, n)
	for range n {
		out = append(out, f.BuildListing())
	}
	sortNewestFirst(out)
	return out
}

// SeedListings builds n listings and inserts them through repo.
func (f *Factory) SeedListings(ctx context.Context, repo ListingInserter, n int) ([]models.Listing, error) {
	listings := f.BuildListings(n)
	for i := range listings {
		if err := repo.Insert(ctx, &listings[i]); err != nil {
			return nil, fmt.Errorf("insert listing %d: %w", i, err)
		}
	}
	return listings, nil
}

func (f *Factory) pickTags(n int) []string {
	perm := f.rng.Perm(len(serviceTags))
	out := make([]string, 0, n)
	for _, i := range perm[:n] {
		out = append(out, serviceTags[i])
	}
	return out
}

func sortNewestFirst(ls []models.Listing) {
	slices.SortStableFunc(ls, func(a, b models.Listing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
