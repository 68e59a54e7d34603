// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Category is the side of the marketplace a listing represents.
type Category string

const (
	CategoryNeed    Category = "NEED"
	CategoryProvide Category = "PROVIDE"
)

// ParseCategory accepts the canonical names and the legacy lower-case
// "need"/"needs"/"provide"/"offers" spellings.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEED", "NEEDS":
		return CategoryNeed, true
	case "PROVIDE", "PROVIDES", "OFFER", "OFFERS":
		return CategoryProvide, true
	}
	return "", false
}

// ListingStatus tracks whether someone took the job.
type ListingStatus string

const (
	StatusOpen     ListingStatus = "OPEN"
	StatusAccepted ListingStatus = "ACCEPTED"
)

// Urgency is how soon the author needs the work done. The zero value means
// unset.
type Urgency string

const (
	UrgencyNow      Urgency = "NOW"
	UrgencyToday    Urgency = "TODAY"
	UrgencyFlexible Urgency = "FLEXIBLE"
)

// ParseUrgency parses an urgency name; the empty string parses to unset.
func ParseUrgency(s string) (Urgency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "NOW":
		return UrgencyNow, true
	case "TODAY":
		return UrgencyToday, true
	case "FLEXIBLE":
		return UrgencyFlexible, true
	}
	return "", false
}

// Listing is a marketplace post. The JSON field names are also the format
// of the local cache payload.
type Listing struct {
	ID             string        `gorm:"primaryKey;size:64" json:"id"`
	AuthorName     string        `json:"authorName"`
	AuthorImageURL string        `json:"authorImageUrl"`
	Category       Category      `gorm:"size:16;not null;index" json:"category"`
	Title          string        `gorm:"not null" json:"title"`
	Description    string        `gorm:"type:text;not null" json:"description"`
	Tags           []string      `gorm:"serializer:json" json:"tags"`
	Location       string        `gorm:"not null" json:"location"`
	Budget         string        `json:"budget,omitempty"`
	Timeline       string        `json:"timeline,omitempty"`
	ImageDataURI   string        `gorm:"type:text" json:"imageDataUri,omitempty"`
	DistanceKm     float64       `json:"distanceKm"`
	Urgency        Urgency       `gorm:"size:16" json:"urgency,omitempty"`
	Status         ListingStatus `gorm:"size:16;not null;default:OPEN" json:"status"`
	CreatedAt      time.Time     `gorm:"index" json:"createdAt"`
}

// ListingInput is the composer's draft as handed to CreateListing.
type ListingInput struct {
	AuthorName     string
	AuthorImageURL string
	Category       string
	Title          string
	Description    string
	Tags           []string
	Location       string
	Budget         string
	Timeline       string
	ImageDataURI   string
	Urgency        string
	DistanceKm     float64
}

// ListingRules are the validation thresholds for listings.
type ListingRules struct {
	TitleMinLen       int
	DescriptionMinLen int
	TagCap            int
	TagsRequired      bool
}

// DefaultListingRules is the canonical rule set.
var DefaultListingRules = ListingRules{
	TitleMinLen:       10,
	DescriptionMinLen: 20,
	TagCap:            10,
	TagsRequired:      true,
}

// NewListingID returns a time-ordered unique id.
func NewListingID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CreateListing validates input and builds an OPEN listing. Every violated
// constraint is reported; the listing is nil when errs is non-empty.
func CreateListing(in ListingInput, rules ListingRules, id string, now time.Time) (*Listing, ValidationErrors) {
	var errs ValidationErrors

	category := CategoryNeed
	if strings.TrimSpace(in.Category) != "" {
		c, ok := ParseCategory(in.Category)
		if !ok {
			errs.Add("category", "must be NEED or PROVIDE")
		}
		category = c
	}

	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		errs.Add("title", "is required")
	case utf8.RuneCountInString(title) < rules.TitleMinLen:
		errs.Add("title", minLenReason(rules.TitleMinLen))
	}

	description := strings.TrimSpace(in.Description)
	switch {
	case description == "":
		errs.Add("description", "is required")
	case utf8.RuneCountInString(description) < rules.DescriptionMinLen:
		errs.Add("description", minLenReason(rules.DescriptionMinLen))
	}

	tags, tagReason := normalizeTags(in.Tags, rules.TagCap)
	switch {
	case tagReason != "":
		errs.Add("tags", tagReason)
	case rules.TagsRequired && len(tags) == 0:
		errs.Add("tags", "at least one tag is required")
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		errs.Add("location", "is required")
	}

	urgency, ok := ParseUrgency(in.Urgency)
	if !ok {
		errs.Add("urgency", "must be NOW, TODAY or FLEXIBLE")
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Listing{
		ID:             id,
		AuthorName:     strings.TrimSpace(in.AuthorName),
		AuthorImageURL: strings.TrimSpace(in.AuthorImageURL),
		Category:       category,
		Title:          title,
		Description:    description,
		Tags:           tags,
		Location:       location,
		Budget:         strings.TrimSpace(in.Budget),
		Timeline:       strings.TrimSpace(in.Timeline),
		ImageDataURI:   in.ImageDataURI,
		DistanceKm:     in.DistanceKm,
		Urgency:        urgency,
		Status:         StatusOpen,
		CreatedAt:      now,
	}, nil
}

// AcceptListing returns a copy of l marked ACCEPTED. Accepting an accepted
// listing returns it unchanged.
func AcceptListing(l Listing) Listing {
	if l.Status == StatusAccepted {
		return l
	}
	l.Tags = append([]string(nil), l.Tags...)
	l.Status = StatusAccepted
	return l
}

func normalizeTags(raw []string, limit int) ([]string, string) {
	if len(raw) == 0 {
		return []string{}, ""
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, "tags cannot be empty"
		}
		if _, dup := seen[t]; dup {
			return nil, fmt.Sprintf("duplicate tag %q", t)
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		return nil, "too many tags"
	}
	return out, ""
}

func minLenReason(n int) string {
	return fmt.Sprintf("must be at least %d characters", n)
}
