package server

import (
	"errors"
	"strings"

	"marketplace/internal/featureflags"
	"marketplace/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError writes err with the status the API maps it to.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// badRequest reports a body or query that could not be parsed.
func badRequest(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(message))
}

// collectFieldError appends err to verrs when it is a field error and
// reports whether it was one.
func collectFieldError(verrs *models.ValidationErrors, field string, err error) bool {
	var fe models.FieldError
	if errors.As(err, &fe) {
		*verrs = append(*verrs, fe)
		return true
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
		verrs.Add(field, appErr.Message)
		return true
	}
	return false
}

// splitTags accepts tags as repeated values or comma separated lists and
// drops blanks.
func splitTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for part := range strings.SplitSeq(r, ",") {
			if strings.TrimSpace(part) != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) listingRules(userID string) models.ListingRules {
	rules := models.DefaultListingRules
	if s.config.ListingTitleMinLen > 0 {
		rules.TitleMinLen = s.config.ListingTitleMinLen
	}
	if s.config.ListingDescMinLen > 0 {
		rules.DescriptionMinLen = s.config.ListingDescMinLen
	}
	if s.config.ListingTagCap > 0 {
		rules.TagCap = s.config.ListingTagCap
	}
	rules.TagsRequired = s.featureFlags.Enabled(featureflags.RequireTags, userID)
	return rules
}

func (s *Server) profileRules() models.ProfileRules {
	rules := models.DefaultProfileRules
	if s.config.ProfileBioMinLen > 0 {
		rules.BioMinLen = s.config.ProfileBioMinLen
	}
	if s.config.ProfileServiceCap > 0 {
		rules.ServiceCap = s.config.ProfileServiceCap
	}
	return rules
}
