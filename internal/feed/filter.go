// Package feed narrows and orders listings for display.
package feed

import (
	"slices"
	"strconv"
	"strings"

	"marketplace/internal/models"
)

// RadiusOptions are the selectable search radii in kilometres.
var RadiusOptions = []float64{1, 3, 5}

// Criteria is the viewer's filter selection. Zero values disable a predicate.
type Criteria struct {
	Category models.Category `json:"category,omitempty"`
	RadiusKm float64         `json:"radiusKm,omitempty"`
	Urgency  models.Urgency  `json:"urgency,omitempty"`
	Tag      string          `json:"tag,omitempty"`
}

// Filter returns the listings matching c, newest first. Listings with equal
// CreatedAt keep their input order. The input slice is not modified.
func Filter(listings []models.Listing, c Criteria) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if c.matches(l) {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Listing) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// NearbyCount counts listings within radiusKm regardless of category or
// urgency. It backs the "N posts within X km" badge.
func NearbyCount(listings []models.Listing, radiusKm float64) int {
	c := Criteria{RadiusKm: radiusKm}
	n := 0
	for _, l := range listings {
		if c.matches(l) {
			n++
		}
	}
	return n
}

func (c Criteria) matches(l models.Listing) bool {
	if c.Category != "" && l.Category != c.Category {
		return false
	}
	if c.RadiusKm > 0 && l.DistanceKm > c.RadiusKm {
		return false
	}
	if c.Urgency != "" && l.Urgency != c.Urgency {
		return false
	}
	if c.Tag != "" && !slices.Contains(l.Tags, c.Tag) {
		return false
	}
	return true
}

// ParseCriteria builds Criteria from query-string values. Empty values and
// "all" leave the corresponding predicate off.
func ParseCriteria(category, radius, urgency, tag string) (Criteria, error) {
	var (
		c    Criteria
		errs models.ValidationErrors
	)

	if v := strings.TrimSpace(category); v != "" && !strings.EqualFold(v, "all") {
		cat, ok := models.ParseCategory(v)
		if !ok {
			errs.Add("category", "must be NEED or PROVIDE")
		}
		c.Category = cat
	}

	if v := strings.TrimSpace(radius); v != "" && v != "0" && !strings.EqualFold(v, "all") {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || !slices.Contains(RadiusOptions, r) {
			errs.Add("radius", "must be one of 1, 3 or 5")
		} else {
			c.RadiusKm = r
		}
	}

	if v := strings.TrimSpace(urgency); !strings.EqualFold(v, "all") {
		u, ok := models.ParseUrgency(v)
		if !ok {
			errs.Add("urgency", "must be NOW, TODAY or FLEXIBLE")
		}
		c.Urgency = u
	}

	c.Tag = strings.TrimSpace(tag)

	return c, errs.ErrOrNil()
}
