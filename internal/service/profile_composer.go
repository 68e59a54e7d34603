package service

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/repository"
	"marketplace/internal/validation"
)

// DefaultSaveAckDuration is how long the "saved" acknowledgment stays up.
const DefaultSaveAckDuration = 3 * time.Second

// ProfileComposer holds the edit state of one user's profile.
type ProfileComposer struct {
	repo        repository.ProfileRepository
	rules       models.ProfileRules
	ackDuration time.Duration

	mu       sync.Mutex
	userID   string
	profile  models.Profile
	services *validation.TagSet
	errs     map[string]string
	saveErr  error
	loaded   bool
	saving   bool
	closed   bool

	saved    bool
	ackTimer *time.Timer
	ackGen   uint64
}

// NewProfileComposer creates a composer for userID seeded with the default
// profile. Call Load to pull the stored record.
func NewProfileComposer(repo repository.ProfileRepository, userID string, rules models.ProfileRules, ackDuration time.Duration) *ProfileComposer {
	if rules == (models.ProfileRules{}) {
		rules = models.DefaultProfileRules
	}
	if ackDuration <= 0 {
		ackDuration = DefaultSaveAckDuration
	}
	return &ProfileComposer{
		repo:        repo,
		rules:       rules,
		ackDuration: ackDuration,
		userID:      userID,
		profile:     *models.NewProfile(userID),
		services:    validation.NewTagSet(rules.ServiceCap),
		errs:        make(map[string]string),
	}
}

// Load fetches the stored profile once. A user without a stored profile
// keeps the defaults. Later calls are no-ops.
func (c *ProfileComposer) Load(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "ProfileComposer.Load")
	defer func() { observability.EndSpan(span, err) }()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	userID := c.userID
	c.mu.Unlock()

	stored, err := c.repo.Get(ctx, userID)
	if err != nil {
		return models.NewTransientIOError("Failed to load profile", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrComposerClosed
	}
	if c.loaded {
		return nil
	}
	c.loaded = true
	if stored == nil {
		return nil
	}
	c.profile = *stored
	c.profile.UserID = userID
	c.services = validation.TagSetFrom(c.rules.ServiceCap, stored.Services)
	c.profile.Services = nil
	return nil
}

// SetField updates one profile field. Known fields: name, location, bio,
// role, availability, email, phone, website. Role and availability values
// are checked on entry.
func (c *ProfileComposer) SetField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}

	switch field {
	case "name":
		c.profile.Name = value
	case "location":
		c.profile.Location = value
	case "bio":
		c.profile.Bio = value
	case "role":
		r, ok := models.ParseRole(value)
		if !ok {
			c.errs["role"] = "must be PROVIDER or SEEKER"
			return models.FieldError{Field: "role", Reason: c.errs["role"]}
		}
		c.profile.Role = r
	case "availability":
		a, ok := models.ParseAvailability(value)
		if !ok {
			c.errs["availability"] = "must be AVAILABLE, BUSY or OFFLINE"
			return models.FieldError{Field: "availability", Reason: c.errs["availability"]}
		}
		c.profile.Availability = a
	case "email":
		c.profile.Contact.Email = strings.TrimSpace(value)
	case "phone":
		c.profile.Contact.Phone = strings.TrimSpace(value)
	case "website":
		c.profile.Contact.Website = strings.TrimSpace(value)
	default:
		return models.NewValidationError("Unknown field: " + field)
	}
	delete(c.errs, field)
	return nil
}

// AddService appends a service. On failure the list is unchanged and the
// services field error is set.
func (c *ProfileComposer) AddService(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	if err := c.services.Add(raw); err != nil {
		c.errs["services"] = err.Error()
		return err
	}
	delete(c.errs, "services")
	return nil
}

// RemoveService removes the service at index. Invalid indexes are a no-op.
func (c *ProfileComposer) RemoveService(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editableLocked() != nil {
		return false
	}
	return c.services.RemoveAt(index)
}

// Profile returns a copy of the profile being edited.
func (c *ProfileComposer) Profile() models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Completeness scores the profile being edited.
func (c *ProfileComposer) Completeness() int {
	p := c.Profile()
	return models.Completeness(&p, c.rules)
}

// Validate returns what currently blocks Save without changing any state.
func (c *ProfileComposer) Validate() models.ValidationErrors {
	p := c.Profile()
	return models.ValidateProfile(&p, c.rules)
}

// Save validates and upserts the profile. On success the saved
// acknowledgment is shown until the ack duration elapses. On failure the
// form is kept as is.
func (c *ProfileComposer) Save(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "ProfileComposer.Save")
	defer func() { observability.EndSpan(span, err) }()

	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.saveErr = nil
	snapshot := c.snapshotLocked()
	if verrs := models.ValidateProfile(&snapshot, c.rules); len(verrs) > 0 {
		c.errs = verrs.Map()
		for _, f := range verrs.Fields() {
			observability.ValidationFailures.WithLabelValues("profile", f).Inc()
		}
		c.mu.Unlock()
		observability.ProfileSaves.WithLabelValues("invalid").Inc()
		return verrs
	}
	clear(c.errs)
	c.saving = true
	userID := c.userID
	c.mu.Unlock()

	upsertErr := c.repo.Upsert(ctx, userID, &snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if c.closed {
		return ErrComposerClosed
	}
	if upsertErr != nil {
		observability.ProfileSaves.WithLabelValues("error").Inc()
		observability.GlobalLogger.ErrorContext(ctx, "profile save failed",
			slog.String("user_id", userID), slog.String("error", upsertErr.Error()))
		c.saveErr = models.NewTransientIOError("Failed to save profile", upsertErr)
		return c.saveErr
	}

	observability.ProfileSaves.WithLabelValues("ok").Inc()
	c.showSavedLocked()
	return nil
}

func (c *ProfileComposer) showSavedLocked() {
	if c.ackTimer != nil {
		c.ackTimer.Stop()
	}
	c.ackGen++
	gen := c.ackGen
	c.saved = true
	c.ackTimer = time.AfterFunc(c.ackDuration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.ackGen {
			return
		}
		c.saved = false
	})
}

// Saved reports whether the saved acknowledgment is showing.
func (c *ProfileComposer) Saved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

// Errors returns a copy of the current field errors.
func (c *ProfileComposer) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errs)
}

// SaveError returns the top-level error of the last failed save.
func (c *ProfileComposer) SaveError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveErr
}

// Close discards the composer and stops the acknowledgment timer.
func (c *ProfileComposer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.ackGen++
	if c.ackTimer != nil {
		c.ackTimer.Stop()
	}
}

func (c *ProfileComposer) editableLocked() error {
	switch {
	case c.closed:
		return ErrComposerClosed
	case c.saving:
		return ErrComposerBusy
	}
	return nil
}

func (c *ProfileComposer) snapshotLocked() models.Profile {
	p := c.profile
	p.Services = c.services.Items()
	return p
}
