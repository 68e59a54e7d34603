package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Role is how a user presents themselves on the marketplace.
type Role string

const (
	RoleProvider Role = "PROVIDER"
	RoleSeeker   Role = "SEEKER"
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PROVIDER":
		return RoleProvider, true
	case "SEEKER":
		return RoleSeeker, true
	}
	return "", false
}

// Availability is the user's current capacity to take work.
type Availability string

const (
	AvailabilityAvailable Availability = "AVAILABLE"
	AvailabilityBusy      Availability = "BUSY"
	AvailabilityOffline   Availability = "OFFLINE"
)

// ParseAvailability parses an availability name case-insensitively.
func ParseAvailability(s string) (Availability, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AVAILABLE":
		return AvailabilityAvailable, true
	case "BUSY":
		return AvailabilityBusy, true
	case "OFFLINE":
		return AvailabilityOffline, true
	}
	return "", false
}

// Contact holds optional ways to reach a user.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// Profile is a user's public marketplace profile.
type Profile struct {
	UserID       string       `gorm:"primaryKey;size:64" json:"userId"`
	Name         string       `json:"name"`
	Location     string       `json:"location"`
	Bio          string       `gorm:"type:text" json:"bio"`
	Role         Role         `gorm:"size:16" json:"role"`
	Services     []string     `gorm:"serializer:json" json:"services"`
	Availability Availability `gorm:"size:16" json:"availability"`
	Contact      Contact      `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewProfile returns the defaults shown for a user with no saved profile.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:       userID,
		Role:         RoleProvider,
		Availability: AvailabilityAvailable,
		Services:     []string{},
	}
}

// ProfileRules are the validation thresholds for profiles.
type ProfileRules struct {
	BioMinLen  int
	ServiceCap int
}

// DefaultProfileRules is the canonical rule set.
var DefaultProfileRules = ProfileRules{
	BioMinLen:  20,
	ServiceCap: 15,
}

// Completeness weights.
const (
	WeightName     = 15
	WeightLocation = 15
	WeightBio      = 20
	WeightServices = 20
	WeightEmail    = 10
	WeightPhone    = 10
	WeightWebsite  = 10
)

// Completeness scores how filled-in p is, 0..100.
func Completeness(p *Profile, rules ProfileRules) int {
	if p == nil {
		return 0
	}
	score := 0
	if present(p.Name) {
		score += WeightName
	}
	if present(p.Location) {
		score += WeightLocation
	}
	if bioLongEnough(p.Bio, rules.BioMinLen) {
		score += WeightBio
	}
	if len(p.Services) > 0 {
		score += WeightServices
	}
	if present(p.Contact.Email) {
		score += WeightEmail
	}
	if present(p.Contact.Phone) {
		score += WeightPhone
	}
	if present(p.Contact.Website) {
		score += WeightWebsite
	}
	return min(score, 100)
}

// ValidateProfile returns the problems that block saving p. It is
// independent of Completeness.
func ValidateProfile(p *Profile, rules ProfileRules) ValidationErrors {
	var errs ValidationErrors
	if !present(p.Name) {
		errs.Add("name", "is required")
	}
	if !present(p.Location) {
		errs.Add("location", "is required")
	}
	if !bioLongEnough(p.Bio, rules.BioMinLen) {
		errs.Add("bio", minLenReason(rules.BioMinLen))
	}
	switch {
	case len(p.Services) == 0:
		errs.Add("services", "at least one service is required")
	case rules.ServiceCap > 0 && len(p.Services) > rules.ServiceCap:
		errs.Add("services", "too many services")
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		errs.Add("role", "must be PROVIDER or SEEKER")
	}
	if _, ok := ParseAvailability(string(p.Availability)); !ok {
		errs.Add("availability", "must be AVAILABLE, BUSY or OFFLINE")
	}
	return errs
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func bioLongEnough(bio string, minLen int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(bio)) >= minLen
}
