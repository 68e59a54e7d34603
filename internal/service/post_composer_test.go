package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type composerHarness struct {
	c      *PostComposer
	store  *appenderStub
	mu     sync.Mutex
	states []ComposerState
}

func newComposerHarness(t *testing.T, rules models.ListingRules, encoder *ImageEncoder) *composerHarness {
	t.Helper()
	h := &composerHarness{store: &appenderStub{}}
	h.c = NewPostComposer(h.store, encoder, PostComposerOptions{
		Rules: rules,
		Now:   func() time.Time { return testNow },
		NewID: func() string { return "listing-1" },
		OnStateChange: func(s ComposerState) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.states = append(h.states, s)
		},
	})
	t.Cleanup(h.c.Close)
	return h
}

func (h *composerHarness) transitions() []ComposerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ComposerState(nil), h.states...)
}

func fillValidDraft(t *testing.T, c *PostComposer) {
	t.Helper()
	require.NoError(t, c.SetField("title", "Need a plumber for kitchen"))
	require.NoError(t, c.SetField("description", "Leaking pipe under the sink needs urgent repair"))
	require.NoError(t, c.SetField("location", "Springfield"))
}

func TestPostComposer_MissingTagsOnly(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	fillValidDraft(t, h.c)

	listing, err := h.c.Submit(context.Background())
	assert.Nil(t, listing)

	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"tags"}, verrs.Fields())
	assert.Equal(t, map[string]string{"tags": "at least one tag is required"}, h.c.Errors())
	assert.Equal(t, StateEditing, h.c.State())
	assert.Equal(t, []ComposerState{StateValidating, StateEditing}, h.transitions())
	assert.Zero(t, h.store.calls, "store must not be called for an invalid draft")
}

func TestPostComposer_SubmitSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	fillValidDraft(t, h.c)
	require.NoError(t, h.c.SetField("category", "provide"))
	require.NoError(t, h.c.SetField("urgency", "today"))
	require.NoError(t, h.c.SetDistance(1.2))
	require.NoError(t, h.c.AddTag("plumbing"))
	require.NoError(t, h.c.AddTag("  urgent "))

	listing, err := h.c.Submit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, listing)

	assert.Equal(t, "listing-1", listing.ID)
	assert.Equal(t, testNow, listing.CreatedAt)
	assert.Equal(t, models.CategoryProvide, listing.Category)
	assert.Equal(t, models.UrgencyToday, listing.Urgency)
	assert.Equal(t, []string{"plumbing", "urgent"}, listing.Tags)
	assert.Equal(t, models.StatusOpen, listing.Status)
	assert.Equal(t, 1.2, listing.DistanceKm)

	assert.Equal(t, StateSubmitted, h.c.State())
	assert.Equal(t, []ComposerState{StateValidating, StateSubmitting, StateSubmitted}, h.transitions())
	require.Len(t, h.store.got, 1)
	assert.Equal(t, *listing, h.store.got[0])

	assert.ErrorIs(t, h.c.SetField("title", "another"), ErrAlreadySubmitted)
	_, err = h.c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestPostComposer_ResubmitClearsFixedFields(t *testing.T) {
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	require.NoError(t, h.c.SetField("title", "short"))

	_, err := h.c.Submit(context.Background())
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"title", "description", "tags", "location"}, verrs.Fields())

	fillValidDraft(t, h.c)
	_, err = h.c.Submit(context.Background())
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"tags"}, verrs.Fields())
	assert.NotContains(t, h.c.Errors(), "title")
}

func TestPostComposer_TagRules(t *testing.T) {
	rules := models.DefaultListingRules
	rules.TagCap = 5
	h := newComposerHarness(t, rules, nil)

	for _, tag := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, h.c.AddTag(tag))
	}

	err := h.c.AddTag("f")
	assert.ErrorIs(t, err, validation.ErrTagCapReached)
	assert.Len(t, h.c.Tags(), 5)
	assert.Contains(t, h.c.Errors(), "tags")

	assert.True(t, h.c.RemoveTag(0))
	assert.False(t, h.c.RemoveTag(9))
	assert.False(t, h.c.RemoveTag(-1))
	assert.Equal(t, []string{"b", "c", "d", "e"}, h.c.Tags())

	assert.ErrorIs(t, h.c.AddTag("   "), validation.ErrEmptyTag)
	assert.ErrorIs(t, h.c.AddTag("b"), validation.ErrDuplicateTag)
	assert.Equal(t, []string{"b", "c", "d", "e"}, h.c.Tags())

	require.NoError(t, h.c.AddTag("B"))
	assert.NotContains(t, h.c.Errors(), "tags", "a successful add clears the tags error")
	assert.Equal(t, []string{"b", "c", "d", "e", "B"}, h.c.Tags())
}

func TestPostComposer_ValidateReportsEveryField(t *testing.T) {
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	require.NoError(t, h.c.SetField("description", "short"))
	require.NoError(t, h.c.AddTag("a"))
	require.ErrorIs(t, h.c.AddTag("a"), validation.ErrDuplicateTag)

	verrs := h.c.Validate()
	assert.ElementsMatch(t, []string{"tags", "title", "description", "location"}, verrs.Fields())
	assert.Equal(t, h.c.Errors()["tags"], verrs.Map()["tags"])
	assert.Equal(t, StateEditing, h.c.State())
	assert.Zero(t, h.store.calls, "validate never stores")

	fillValidDraft(t, h.c)
	require.NoError(t, h.c.AddTag("b"))
	assert.Empty(t, h.c.Validate())
}

func TestPostComposer_UnknownField(t *testing.T) {
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	err := h.c.SetField("price", "10")
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestPostComposer_AppendFailureKeepsDraft(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, nil)
	h.store.err = errors.New("quota exceeded")
	fillValidDraft(t, h.c)
	require.NoError(t, h.c.AddTag("plumbing"))

	_, err := h.c.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeTransientIO))
	assert.Equal(t, err, h.c.SubmitError())
	assert.Equal(t, StateEditing, h.c.State())
	assert.Equal(t, []ComposerState{StateValidating, StateSubmitting, StateEditing}, h.transitions())

	draft := h.c.Draft()
	assert.Equal(t, "Need a plumber for kitchen", draft.Title)
	assert.Equal(t, []string{"plumbing"}, draft.Tags)

	h.store.err = nil
	listing, err := h.c.Submit(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, listing)
	assert.NoError(t, h.c.SubmitError())
}

func TestPostComposer_AttachOversizedImage(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, NewImageEncoder(nil))
	require.NoError(t, <-h.c.AttachImage(BytesUpload("ok.png", pngBytes(t, 2, 2))))
	require.NotEmpty(t, h.c.Draft().ImageDataURI)

	before := counterValue(t, observability.OversizedUploads)
	big := ImageUpload{
		Filename: "huge.jpg",
		Size:     5*1024*1024 + 1,
		Open: func() (io.ReadCloser, error) {
			t.Fatal("oversized uploads must not be read")
			return nil, nil
		},
	}
	err := <-h.c.AttachImage(big)

	assert.True(t, models.IsCode(err, models.CodeOversizedUpload))
	assert.Empty(t, h.c.Draft().ImageDataURI, "pending image is cleared")
	assert.Contains(t, h.c.Errors(), "image")
	assert.Equal(t, before+1, counterValue(t, observability.OversizedUploads))

	// The rest of the form still works.
	fillValidDraft(t, h.c)
	require.NoError(t, h.c.AddTag("plumbing"))
	listing, err := h.c.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listing.ImageDataURI)
}

func TestPostComposer_AttachImage(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, nil)

	require.NoError(t, <-h.c.AttachImage(BytesUpload("photo.png", pngBytes(t, 3, 3))))
	assert.True(t, strings.HasPrefix(h.c.Draft().ImageDataURI, "data:image/png;base64,"))

	err := <-h.c.AttachImage(BytesUpload("notes.txt", []byte("plain text, not an image")))
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Empty(t, h.c.Draft().ImageDataURI)
	assert.Equal(t, "Invalid image type", h.c.Errors()["image"])
}

func TestPostComposer_NewerAttachSupersedes(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newComposerHarness(t, models.DefaultListingRules, nil)

	gate := make(chan struct{})
	slow := pngBytes(t, 2, 2)
	first := h.c.AttachImage(ImageUpload{
		Filename: "slow.png",
		Size:     int64(len(slow)),
		Open: func() (io.ReadCloser, error) {
			<-gate
			return io.NopCloser(strings.NewReader(string(slow))), nil
		},
	})
	second := h.c.AttachImage(BytesUpload("fast.png", pngBytes(t, 4, 4)))

	require.NoError(t, <-second)
	want := h.c.Draft().ImageDataURI
	close(gate)

	assert.ErrorIs(t, <-first, ErrImageSuperseded)
	assert.Equal(t, want, h.c.Draft().ImageDataURI)
}

func TestPostComposer_CloseDiscardsPendingImage(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := NewPostComposer(&appenderStub{}, nil, PostComposerOptions{})

	gate := make(chan struct{})
	content := pngBytes(t, 2, 2)
	result := c.AttachImage(ImageUpload{
		Filename: "late.png",
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			<-gate
			return io.NopCloser(strings.NewReader(string(content))), nil
		},
	})

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	assert.Eventually(t, func() bool {
		return errors.Is(c.SetField("title", "x"), ErrComposerClosed)
	}, time.Second, 5*time.Millisecond)

	close(gate)
	<-closed
	assert.ErrorIs(t, <-result, ErrComposerClosed)
	assert.Empty(t, c.Draft().ImageDataURI)

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrComposerClosed)
	assert.ErrorIs(t, <-c.AttachImage(BytesUpload("x.png", content)), ErrComposerClosed)
}

func TestPostComposer_PreviewEncoding(t *testing.T) {
	defer goleak.VerifyNone(t)
	enc := NewImageEncoder(&config.Config{ImageMaxUploadSizeMB: 1, ImagePreviewMaxPx: 4})
	c := NewPostComposer(&appenderStub{}, enc, PostComposerOptions{Preview: true})
	defer c.Close()

	require.NoError(t, <-c.AttachImage(BytesUpload("wide.png", pngBytes(t, 16, 8))))
	assert.True(t, strings.HasPrefix(c.Draft().ImageDataURI, "data:image/webp;base64,"))
}
