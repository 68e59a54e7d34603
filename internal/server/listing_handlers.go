package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"marketplace/internal/feed"
	"marketplace/internal/featureflags"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/service"

	"github.com/gofiber/fiber/v2"
)

// feedItem is a listing plus its display age.
type feedItem struct {
	models.Listing
	Age string `json:"age"`
}

// createListingRequest is accepted as JSON or as a multipart form with an
// optional "image" file part.
type createListingRequest struct {
	Title          string   `json:"title" form:"title"`
	Description    string   `json:"description" form:"description"`
	Category       string   `json:"category" form:"category"`
	Location       string   `json:"location" form:"location"`
	Budget         string   `json:"budget" form:"budget"`
	Timeline       string   `json:"timeline" form:"timeline"`
	Urgency        string   `json:"urgency" form:"urgency"`
	AuthorName     string   `json:"authorName" form:"authorName"`
	AuthorImageURL string   `json:"authorImageUrl" form:"authorImageUrl"`
	DistanceKm     float64  `json:"distanceKm" form:"distanceKm"`
	Tags           []string `json:"tags" form:"tags"`
}

// GetFeed returns the merged feed narrowed by the category, radius, urgency
// and tag query parameters.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	criteria, err := feed.ParseCriteria(c.Query("category"), c.Query("radius"), c.Query("urgency"), c.Query("tag"))
	if err != nil {
		return respondError(c, err)
	}

	all, err := s.listings.Feed(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	now := s.now()
	filtered := feed.Filter(all, criteria)
	items := make([]feedItem, 0, len(filtered))
	for _, l := range filtered {
		items = append(items, feedItem{Listing: l, Age: feed.Age(l, now)})
	}

	return c.JSON(fiber.Map{
		"listings":      items,
		"count":         len(items),
		"nearbyCount":   feed.NearbyCount(all, criteria.RadiusKm),
		"criteria":      criteria,
		"radiusOptions": feed.RadiusOptions,
	})
}

// CreateListing runs the draft through a post composer and stores it.
// Validation failures are 422 with per-field reasons. A rejected image does
// not block the listing; it is reported under "warnings".
func (s *Server) CreateListing(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.CurrentUserID(c)

	var req createListingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AuthorName == "" && userID != "" {
		req.AuthorName = s.authorName(c, userID)
	}

	composer := service.NewPostComposer(s.listings, s.encoder, service.PostComposerOptions{
		Rules:   s.listingRules(userID),
		Preview: s.featureFlags.Enabled(featureflags.ImagePreview, userID),
		Now:     func() time.Time { return s.now().UTC() },
	})
	defer composer.Close()

	fields := []struct{ name, value string }{
		{"title", req.Title},
		{"description", req.Description},
		{"category", req.Category},
		{"location", req.Location},
		{"budget", req.Budget},
		{"timeline", req.Timeline},
		{"urgency", req.Urgency},
		{"authorName", req.AuthorName},
		{"authorImageUrl", req.AuthorImageURL},
	}
	for _, f := range fields {
		if err := composer.SetField(f.name, f.value); err != nil {
			return respondError(c, err)
		}
	}
	if err := composer.SetDistance(req.DistanceKm); err != nil {
		return respondError(c, err)
	}

	tagRejected := false
	for _, tag := range splitTags(req.Tags) {
		if err := composer.AddTag(tag); err != nil {
			tagRejected = true
			break
		}
	}
	if tagRejected {
		return respondError(c, composer.Validate())
	}

	warnings := map[string]string{}
	if up, ok := imageUpload(c); ok {
		if err := <-composer.AttachImage(up); err != nil {
			reason := composer.Errors()["image"]
			if reason == "" {
				reason = err.Error()
			}
			warnings["image"] = reason
		}
	}

	listing, err := composer.Submit(ctx)
	if err != nil {
		var verrs models.ValidationErrors
		if !errors.As(err, &verrs) {
			middleware.Logger.ErrorContext(ctx, "listing submit failed", slog.String("error", err.Error()))
		}
		return respondError(c, err)
	}

	resp := fiber.Map{"listing": feedItem{Listing: *listing, Age: feed.Age(*listing, s.now())}}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// AcceptListing marks a listing ACCEPTED.
func (s *Server) AcceptListing(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return badRequest(c, "Invalid listing ID")
	}
	listing, err := s.listings.Accept(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(listing)
}

// imageUpload returns the "image" part of a multipart request.
func imageUpload(c *fiber.Ctx) (service.ImageUpload, bool) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return service.ImageUpload{}, false
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return service.ImageUpload{}, false
	}
	return service.ImageUpload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}, true
}

// authorName picks a display name for a signed-in author who left it blank.
func (s *Server) authorName(c *fiber.Ctx, userID string) string {
	if p, err := s.profileRepo.Get(c.UserContext(), userID); err == nil && p != nil && strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	if sess := middleware.CurrentSession(c); sess != nil {
		local, _, _ := strings.Cut(sess.User.Email, "@")
		return local
	}
	return ""
}
