package service

import (
	"math"
	"slices"
	"strings"

	"marketplace/internal/models"
	"marketplace/internal/seed"
)

// Review filters.
const (
	ReviewFilterAll      = "all"
	ReviewFilterFiveStar = "5-star"
	ReviewFilterVerified = "verified"
)

// RatingBucket is one row of the rating distribution.
type RatingBucket struct {
	Stars   int `json:"stars"`
	Count   int `json:"count"`
	Percent int `json:"percent"`
}

// ReviewSummary aggregates the review collection.
type ReviewSummary struct {
	Count        int            `json:"count"`
	Average      float64        `json:"average"`
	HelpfulVotes int            `json:"helpfulVotes"`
	Distribution []RatingBucket `json:"distribution"`
}

// ReviewService is the read-only view over provider reviews.
type ReviewService struct {
	reviews []models.Review
	badges  []seed.Badge
}

// NewReviewService serves the given reviews and badges.
func NewReviewService(reviews []models.Review, badges []seed.Badge) *ReviewService {
	return &ReviewService{reviews: slices.Clone(reviews), badges: slices.Clone(badges)}
}

// List returns the reviews passing filter, preserving order.
func (s *ReviewService) List(filter string) ([]models.Review, error) {
	var keep func(models.Review) bool
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", ReviewFilterAll:
		keep = func(models.Review) bool { return true }
	case ReviewFilterFiveStar:
		keep = func(r models.Review) bool { return r.Rating == 5 }
	case ReviewFilterVerified:
		keep = func(r models.Review) bool { return r.Verified }
	default:
		return nil, models.NewValidationError("Invalid filter: must be all, 5-star or verified")
	}

	out := make([]models.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Summary computes the average rating (one decimal) and the 5..1 star
// distribution with whole-number percentages.
func (s *ReviewService) Summary() ReviewSummary {
	sum := ReviewSummary{Count: len(s.reviews)}
	counts := make(map[int]int, 5)
	total := 0
	for _, r := range s.reviews {
		counts[r.Rating]++
		total += r.Rating
		sum.HelpfulVotes += r.Helpful
	}
	if sum.Count > 0 {
		sum.Average = math.Round(float64(total)/float64(sum.Count)*10) / 10
	}
	for stars := 5; stars >= 1; stars-- {
		b := RatingBucket{Stars: stars, Count: counts[stars]}
		if sum.Count > 0 {
			b.Percent = int(math.Round(float64(b.Count) / float64(sum.Count) * 100))
		}
		sum.Distribution = append(sum.Distribution, b)
	}
	return sum
}

// FilterCounts returns the filter strip with counts.
func (s *ReviewService) FilterCounts() []TabCount {
	five, verified := 0, 0
	for _, r := range s.reviews {
		if r.Rating == 5 {
			five++
		}
		if r.Verified {
			verified++
		}
	}
	return []TabCount{
		{Value: ReviewFilterAll, Label: "All Reviews", Count: len(s.reviews)},
		{Value: ReviewFilterFiveStar, Label: "5 Stars", Count: five},
		{Value: ReviewFilterVerified, Label: "Verified Only", Count: verified},
	}
}

// Badges returns the community trust badges.
func (s *ReviewService) Badges() []seed.Badge {
	return slices.Clone(s.badges)
}
