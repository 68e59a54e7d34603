package server

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListingBody() map[string]any {
	return map[string]any{
		"title":       "Fix a leaking kitchen tap",
		"description": "The kitchen tap drips all night and needs a new washer.",
		"category":    "NEED",
		"location":    "Northside",
		"budget":      "$40",
		"urgency":     "TODAY",
		"distanceKm":  2,
		"tags":        []string{"plumbing", "kitchen"},
	}
}

func multipartListing(t *testing.T, fields map[string]string, tags []string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, tag := range tags {
		require.NoError(t, w.WriteField("tags", tag))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/listings", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestCreateListing_AppearsInFeed(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, body := env.do(t, http.MethodPost, "/api/listings", validListingBody(), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	listing := body["listing"].(map[string]any)
	assert.Equal(t, "OPEN", listing["status"])
	assert.Equal(t, "just now", listing["age"])
	assert.Equal(t, []any{"plumbing", "kitchen"}, listing["tags"])

	resp, body = env.do(t, http.MethodGet, "/api/feed", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
	first := body["listings"].([]any)[0].(map[string]any)
	assert.Equal(t, listing["id"], first["id"])
}

func TestCreateListing_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	resp, body := env.do(t, http.MethodPost, "/api/listings", map[string]any{"title": "short"}, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	f := fields(t, body)
	for _, name := range []string{"title", "description", "tags", "location"} {
		assert.Contains(t, f, name)
	}

	_, body = env.do(t, http.MethodGet, "/api/feed", nil, "")
	assert.EqualValues(t, 0, body["count"], "nothing is stored on validation failure")
}

func TestCreateListing_DuplicateTag(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	in := validListingBody()
	in["tags"] = []string{"plumbing", "plumbing"}
	resp, body := env.do(t, http.MethodPost, "/api/listings", in, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, map[string]any{"tags": "already added"}, fields(t, body))
}

func TestCreateListing_RejectedTagReportedWithOtherFields(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	in := map[string]any{
		"title":       "",
		"description": "short",
		"location":    "",
		"tags":        []string{"a", "a"},
	}
	resp, body := env.do(t, http.MethodPost, "/api/listings", in, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	f := fields(t, body)
	assert.Len(t, f, 4)
	assert.Equal(t, "already added", f["tags"])
	for _, name := range []string{"title", "description", "location"} {
		assert.Contains(t, f, name)
	}

	_, body = env.do(t, http.MethodGet, "/api/feed", nil, "")
	assert.EqualValues(t, 0, body["count"])
}

func TestCreateListing_TagsOptionalWhenFlagOff(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags = "require_tags=off"
	env := newTestEnv(t, setupTestDB(t), cfg)

	in := validListingBody()
	delete(in, "tags")
	resp, body := env.do(t, http.MethodPost, "/api/listings", in, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode, body)
}

func TestCreateListing_MultipartWithImage(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	req := multipartListing(t, map[string]string{
		"title":       "Dog walking every morning",
		"description": "Friendly labrador needs a thirty minute walk before work.",
		"category":    "PROVIDE",
		"location":    "Riverside",
	}, []string{"pets, dogs"}, pngImage(t))

	resp, body := env.send(t, req, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	listing := body["listing"].(map[string]any)
	assert.True(t, strings.HasPrefix(listing["imageDataUri"].(string), "data:image/png;base64,"))
	assert.Equal(t, []any{"pets", "dogs"}, listing["tags"])
	assert.Nil(t, body["warnings"])
}

func TestCreateListing_OversizedImageStillPosts(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	tooBig := make([]byte, 1024*1024+1)
	copy(tooBig, pngImage(t))
	req := multipartListing(t, map[string]string{
		"title":       "Garden hedge trimming",
		"description": "About twenty metres of hedge along the front fence.",
		"location":    "Hillcrest",
	}, []string{"garden"}, tooBig)

	resp, body := env.send(t, req, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	warnings := body["warnings"].(map[string]any)
	assert.Contains(t, warnings["image"], "File too large")
	assert.Empty(t, body["listing"].(map[string]any)["imageDataUri"])
}

func TestCreateListing_AuthorFromSession(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)
	token := env.signIn(t, "robin@example.com")

	resp, body := env.do(t, http.MethodPost, "/api/listings", validListingBody(), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "robin", body["listing"].(map[string]any)["authorName"])
}

func TestAcceptListing(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	_, body := env.do(t, http.MethodPost, "/api/listings", validListingBody(), "")
	id := body["listing"].(map[string]any)["id"].(string)
	path := fmt.Sprintf("/api/listings/%s/accept", id)

	resp, body := env.do(t, http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	_, body = env.do(t, http.MethodGet, "/api/feed", nil, "")
	listings := body["listings"].([]any)
	require.Len(t, listings, 1)
	assert.Equal(t, "OPEN", listings[0].(map[string]any)["status"], "anonymous accept leaves the listing open")

	token := env.signIn(t, "helper@example.com")
	resp, body = env.do(t, http.MethodPost, path, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ACCEPTED", body["status"])

	resp, body = env.do(t, http.MethodPost, "/api/listings/does-not-exist/accept", nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestFeedFilters(t *testing.T) {
	env := newTestEnv(t, setupTestDB(t), nil)

	near := validListingBody()
	far := validListingBody()
	far["title"] = "Paint the garden shed"
	far["category"] = "PROVIDE"
	far["distanceKm"] = 4
	far["urgency"] = "FLEXIBLE"
	far["tags"] = []string{"painting"}
	for _, in := range []map[string]any{near, far} {
		resp, body := env.do(t, http.MethodPost, "/api/listings", in, "")
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	}

	tests := []struct {
		query      string
		wantCount  int
		wantNearby int
	}{
		{"", 2, 2},
		{"?category=PROVIDE", 1, 2},
		{"?radius=3", 1, 1},
		{"?radius=5&urgency=TODAY", 1, 2},
		{"?tag=painting", 1, 2},
		{"?category=all&radius=0", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/api/feed"+tt.query, nil, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.EqualValues(t, tt.wantCount, body["count"])
			assert.EqualValues(t, tt.wantNearby, body["nearbyCount"])
		})
	}

	resp, body := env.do(t, http.MethodGet, "/api/feed?radius=2&category=jobs", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	f := fields(t, body)
	assert.Contains(t, f, "radius")
	assert.Contains(t, f, "category")
}
