package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"

	"marketplace/internal/config"
	"marketplace/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	PreviewWebPQuality          = 70
)

// ImageUpload is an attached file as the composer sees it. Size is the
// size reported by the client; Open yields the content.
type ImageUpload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesUpload wraps in-memory content as an ImageUpload.
func BytesUpload(filename string, content []byte) ImageUpload {
	return ImageUpload{
		Filename: filename,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// ImageEncoder turns an upload into a data URI for the listing preview.
type ImageEncoder struct {
	maxUploadSizeBytes int64
	previewMaxPx       int
}

// NewImageEncoder builds an encoder from config; nil config uses defaults.
func NewImageEncoder(cfg *config.Config) *ImageEncoder {
	maxMB := DefaultImageMaxUploadSizeMB
	previewMaxPx := 0
	if cfg != nil {
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxMB = cfg.ImageMaxUploadSizeMB
		}
		previewMaxPx = cfg.ImagePreviewMaxPx
	}
	return &ImageEncoder{
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
		previewMaxPx:       previewMaxPx,
	}
}

// MaxBytes is the source size cap.
func (e *ImageEncoder) MaxBytes() int64 {
	return e.maxUploadSizeBytes
}

// CheckSize rejects uploads over the cap before any content is read.
func (e *ImageEncoder) CheckSize(up ImageUpload) error {
	if up.Size > e.maxUploadSizeBytes {
		return models.NewOversizedUploadError(up.Size, e.maxUploadSizeBytes)
	}
	return nil
}

// Encode reads the upload and returns "data:<mime>;base64,<payload>". With
// preview set and a positive preview size, the image is downscaled and
// re-encoded as WebP.
func (e *ImageEncoder) Encode(ctx context.Context, up ImageUpload, preview bool) (string, error) {
	if err := e.CheckSize(up); err != nil {
		return "", err
	}
	if up.Open == nil {
		return "", models.NewValidationError("No file uploaded")
	}

	rc, err := up.Open()
	if err != nil {
		return "", models.NewTransientIOError("Failed to read image", err)
	}
	defer rc.Close()

	// The reported size may lie; never read past the cap.
	content, err := io.ReadAll(io.LimitReader(rc, e.maxUploadSizeBytes+1))
	if err != nil {
		return "", models.NewTransientIOError("Failed to read image", err)
	}
	if int64(len(content)) > e.maxUploadSizeBytes {
		return "", models.NewOversizedUploadError(int64(len(content)), e.maxUploadSizeBytes)
	}
	if len(content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mimeType := normalizeContentType(http.DetectContentType(content))
	if !isAllowedImageMIME(mimeType) {
		return "", models.NewValidationError("Invalid image type")
	}

	if preview && e.previewMaxPx > 0 {
		decoded, _, err := image.Decode(bytes.NewReader(content))
		if err != nil {
			return "", models.NewValidationError("Invalid image file")
		}
		encoded, err := encodeWebP(resizeToFit(decoded, e.previewMaxPx, e.previewMaxPx), PreviewWebPQuality)
		if err != nil {
			return "", models.NewInternalError(err)
		}
		content, mimeType = encoded, "image/webp"
	}

	return dataURI(mimeType, content), nil
}

func dataURI(mimeType string, content []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(content))
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
