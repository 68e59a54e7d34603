package server

import (
	"errors"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/service"

	"github.com/gofiber/fiber/v2"
)

// updateProfileRequest carries the fields to change. Omitted fields keep
// their stored value; a present services list replaces the stored one.
type updateProfileRequest struct {
	Name         *string   `json:"name"`
	Location     *string   `json:"location"`
	Bio          *string   `json:"bio"`
	Role         *string   `json:"role"`
	Availability *string   `json:"availability"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	Website      *string   `json:"website"`
	Services     *[]string `json:"services"`
}

func (r updateProfileRequest) fields() []struct {
	name  string
	value *string
} {
	return []struct {
		name  string
		value *string
	}{
		{"name", r.Name},
		{"location", r.Location},
		{"bio", r.Bio},
		{"role", r.Role},
		{"availability", r.Availability},
		{"email", r.Email},
		{"phone", r.Phone},
		{"website", r.Website},
	}
}

func (s *Server) newProfileComposer(userID string) *service.ProfileComposer {
	return service.NewProfileComposer(s.profileRepo, userID, s.profileRules(), s.config.SaveAckDuration())
}

func profileView(composer *service.ProfileComposer) fiber.Map {
	return fiber.Map{
		"profile":      composer.Profile(),
		"completeness": composer.Completeness(),
		"missing":      composer.Validate().Map(),
		"saved":        composer.Saved(),
	}
}

// GetProfile returns the signed-in user's profile and its completeness.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	composer := s.newProfileComposer(middleware.CurrentUserID(c))
	defer composer.Close()

	if err := composer.Load(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(profileView(composer))
}

// UpdateProfile applies the request to the stored profile and saves it.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	composer := s.newProfileComposer(middleware.CurrentUserID(c))
	defer composer.Close()

	if err := composer.Load(c.UserContext()); err != nil {
		return respondError(c, err)
	}

	var verrs models.ValidationErrors
	for _, f := range req.fields() {
		if f.value == nil {
			continue
		}
		if err := composer.SetField(f.name, *f.value); err != nil && !collectFieldError(&verrs, f.name, err) {
			return respondError(c, err)
		}
	}
	if req.Services != nil {
		for composer.RemoveService(0) {
		}
		for _, svc := range *req.Services {
			if err := composer.AddService(svc); err != nil {
				verrs.Add("services", composer.Errors()["services"])
				break
			}
		}
	}
	if len(verrs) > 0 {
		return respondError(c, verrs)
	}

	if err := composer.Save(c.UserContext()); err != nil {
		var saveErrs models.ValidationErrors
		if errors.As(err, &saveErrs) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":        "Validation failed",
				"code":         models.CodeValidation,
				"fields":       saveErrs.Map(),
				"completeness": composer.Completeness(),
			})
		}
		return respondError(c, err)
	}
	return c.JSON(profileView(composer))
}
