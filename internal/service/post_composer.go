package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/validation"
)

// ComposerState is where a composer is in its submit cycle.
type ComposerState string

const (
	StateEditing    ComposerState = "EDITING"
	StateValidating ComposerState = "VALIDATING"
	StateSubmitting ComposerState = "SUBMITTING"
	StateSubmitted  ComposerState = "SUBMITTED"
)

var (
	// ErrComposerClosed is returned by every operation after Close.
	ErrComposerClosed = errors.New("composer closed")
	// ErrComposerBusy is returned for edits while a submit or save is in flight.
	ErrComposerBusy = errors.New("composer busy")
	// ErrAlreadySubmitted is returned by Submit after a successful submit.
	ErrAlreadySubmitted = errors.New("listing already submitted")
	// ErrImageSuperseded is delivered to an AttachImage caller whose result
	// was dropped because a newer image was attached.
	ErrImageSuperseded = errors.New("image attach superseded")
)

// ListingAppender receives newly composed listings.
type ListingAppender interface {
	Append(ctx context.Context, l models.Listing) error
}

// PostComposerOptions configures a PostComposer. Zero values fall back to
// the canonical rules, wall-clock time and v7 ids.
type PostComposerOptions struct {
	Rules models.ListingRules
	// Preview enables downscaled previews for attached images.
	Preview bool
	Now     func() time.Time
	NewID   func() string
	// OnStateChange is called with each new state while the composer's lock
	// is held. It must not call back into the composer.
	OnStateChange func(ComposerState)
}

// PostComposer holds the draft of one new listing.
type PostComposer struct {
	store   ListingAppender
	encoder *ImageEncoder
	opts    PostComposerOptions

	mu        sync.Mutex
	draft     models.ListingInput
	tags      *validation.TagSet
	errs      map[string]string
	submitErr error
	state     ComposerState
	closed    bool

	ctx      context.Context
	cancel   context.CancelFunc
	imageGen uint64
	wg       sync.WaitGroup
}

// NewPostComposer creates an empty composer in the EDITING state.
func NewPostComposer(store ListingAppender, encoder *ImageEncoder, opts PostComposerOptions) *PostComposer {
	if opts.Rules == (models.ListingRules{}) {
		opts.Rules = models.DefaultListingRules
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = models.NewListingID
	}
	if encoder == nil {
		encoder = NewImageEncoder(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &PostComposer{
		store:   store,
		encoder: encoder,
		opts:    opts,
		tags:    validation.NewTagSet(opts.Rules.TagCap),
		errs:    make(map[string]string),
		state:   StateEditing,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetField updates one draft field. Known fields: title, description,
// location, budget, timeline, category, urgency, authorName, authorImageUrl.
func (c *PostComposer) SetField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}

	switch field {
	case "title":
		c.draft.Title = value
	case "description":
		c.draft.Description = value
	case "location":
		c.draft.Location = value
	case "budget":
		c.draft.Budget = value
	case "timeline":
		c.draft.Timeline = value
	case "category":
		c.draft.Category = value
	case "urgency":
		c.draft.Urgency = value
	case "authorName":
		c.draft.AuthorName = value
	case "authorImageUrl":
		c.draft.AuthorImageURL = value
	default:
		return models.NewValidationError("Unknown field: " + field)
	}
	return nil
}

// SetDistance sets the data-source distance attribute of the draft.
func (c *PostComposer) SetDistance(km float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}
	c.draft.DistanceKm = km
	return nil
}

// AddTag appends a tag. On failure the tag list is unchanged and the tags
// field error is set.
func (c *PostComposer) AddTag(raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return err
	}

	if err := c.tags.Add(raw); err != nil {
		c.errs["tags"] = err.Error()
		return err
	}
	delete(c.errs, "tags")
	return nil
}

// RemoveTag removes the tag at index. Invalid indexes are a no-op.
func (c *PostComposer) RemoveTag(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editableLocked() != nil {
		return false
	}
	return c.tags.RemoveAt(index)
}

// Tags returns the current tags in order.
func (c *PostComposer) Tags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tags.Items()
}

// AttachImage starts encoding up into the draft's preview. Any previously
// attached image is cleared at once. The returned channel yields exactly one
// value once the attach has settled: nil when the image was stored, or the
// reason it was not. Oversized files are rejected without being read.
func (c *PostComposer) AttachImage(up ImageUpload) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		done <- err
		close(done)
		return done
	}

	c.imageGen++
	gen := c.imageGen
	c.draft.ImageDataURI = ""

	if err := c.encoder.CheckSize(up); err != nil {
		c.rejectImageLocked(err, up)
		done <- err
		close(done)
		return done
	}
	delete(c.errs, "image")

	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		observability.LogAsyncOperationStart(ctx, "attach_image", slog.String("filename", up.Filename))
		uri, err := c.encoder.Encode(ctx, up, c.opts.Preview)

		c.mu.Lock()
		defer c.mu.Unlock()
		switch {
		case c.closed:
			observability.LogAsyncOperationDiscarded(ctx, "attach_image", "composer closed")
			done <- ErrComposerClosed
		case gen != c.imageGen:
			observability.LogAsyncOperationDiscarded(ctx, "attach_image", "superseded")
			done <- ErrImageSuperseded
		case err != nil:
			c.rejectImageLocked(err, up)
			done <- err
		default:
			c.draft.ImageDataURI = uri
			delete(c.errs, "image")
			observability.LogAsyncOperationEnd(ctx, "attach_image", slog.Int("bytes", len(uri)))
			done <- nil
		}
	}()
	return done
}

func (c *PostComposer) rejectImageLocked(err error, up ImageUpload) {
	c.draft.ImageDataURI = ""
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.errs["image"] = appErr.Message
	} else {
		c.errs["image"] = err.Error()
	}
	if models.IsCode(err, models.CodeOversizedUpload) {
		observability.OversizedUploads.Inc()
		observability.GlobalLogger.WarnContext(c.ctx, "image exceeds upload cap",
			slog.String("filename", up.Filename),
			slog.Int64("size", up.Size),
			slog.Int64("limit", c.encoder.MaxBytes()),
		)
		return
	}
	observability.LogAsyncOperationError(c.ctx, "attach_image", err, slog.String("filename", up.Filename))
}

// Submit validates the draft and, when valid, appends the new listing to the
// store. Validation failures come back as models.ValidationErrors and leave
// the composer EDITING with the field errors replaced. A store failure is
// returned as a single submission error; the draft is kept for a retry.
func (c *PostComposer) Submit(ctx context.Context) (_ *models.Listing, err error) {
	ctx, span := observability.StartSpan(ctx, "PostComposer.Submit")
	defer func() { observability.EndSpan(span, err) }()

	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	c.setStateLocked(StateValidating)
	c.submitErr = nil
	clear(c.errs)

	input := c.draft
	input.Tags = c.tags.Items()
	listing, verrs := models.CreateListing(input, c.opts.Rules, c.opts.NewID(), c.opts.Now())
	if len(verrs) > 0 {
		c.errs = verrs.Map()
		for _, f := range verrs.Fields() {
			observability.ValidationFailures.WithLabelValues("post", f).Inc()
		}
		c.setStateLocked(StateEditing)
		c.mu.Unlock()
		return nil, verrs
	}

	c.setStateLocked(StateSubmitting)
	c.mu.Unlock()

	appendErr := c.store.Append(ctx, *listing)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// The listing may have been stored; the torn-down draft is left alone.
		if appendErr != nil {
			return nil, appendErr
		}
		return listing, nil
	}
	if appendErr != nil {
		if !models.IsCode(appendErr, models.CodeTransientIO) {
			appendErr = models.NewTransientIOError("Failed to submit listing", appendErr)
		}
		c.submitErr = appendErr
		c.setStateLocked(StateEditing)
		return nil, appendErr
	}
	c.setStateLocked(StateSubmitted)
	return listing, nil
}

// Validate returns every field that currently blocks Submit without changing
// any state. A rejected tag entry is reported in place of the tag list check.
func (c *PostComposer) Validate() models.ValidationErrors {
	c.mu.Lock()
	defer c.mu.Unlock()

	input := c.draft
	input.Tags = c.tags.Items()
	_, verrs := models.CreateListing(input, c.opts.Rules, "", c.opts.Now())

	reason, rejected := c.errs["tags"]
	if !rejected {
		return verrs
	}
	out := models.ValidationErrors{{Field: "tags", Reason: reason}}
	for _, fe := range verrs {
		if fe.Field != "tags" {
			out = append(out, fe)
		}
	}
	return out
}

// State returns the current state.
func (c *PostComposer) State() ComposerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Errors returns a copy of the current field errors.
func (c *PostComposer) Errors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.errs)
}

// SubmitError returns the top-level error of the last failed submit.
func (c *PostComposer) SubmitError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitErr
}

// Draft returns a copy of the draft with the current tags.
func (c *PostComposer) Draft() models.ListingInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.Tags = c.tags.Items()
	return d
}

// Close discards the composer. Pending image encodes are cancelled and their
// results dropped; Close returns once they have finished.
func (c *PostComposer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *PostComposer) editableLocked() error {
	switch {
	case c.closed:
		return ErrComposerClosed
	case c.state == StateSubmitted:
		return ErrAlreadySubmitted
	case c.state != StateEditing:
		return ErrComposerBusy
	}
	return nil
}

func (c *PostComposer) setStateLocked(s ComposerState) {
	c.state = s
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}
