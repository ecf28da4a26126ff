package encoding

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"

	"stockmeta/internal/config"
	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
)

const defaultJPEGQuality = 90

// Encoder converts queued files into base64 data URIs.
type Encoder struct {
	maxDimension int
	jpegQuality  int
	logger       *slog.Logger
}

// NewEncoder constructs an encoder. A nil config sends original bytes.
func NewEncoder(cfg *config.Config, logger *slog.Logger) *Encoder {
	enc := &Encoder{
		jpegQuality: defaultJPEGQuality,
		logger:      logging.NewComponentLogger(logger, "encoder"),
	}
	if cfg != nil {
		enc.maxDimension = cfg.Encoding.MaxDimension
		if cfg.Encoding.JPEGQuality > 0 {
			enc.jpegQuality = cfg.Encoding.JPEGQuality
		}
	}
	return enc
}

// Encode reads the item's content and returns data:<media type>;base64,<payload>.
// Read failures are reported as encoding errors.
func (e *Encoder) Encode(ctx context.Context, item queue.Item) (string, error) {
	if item.Source == nil {
		return "", services.Fail(services.ErrEncoding, "Failed to read file.", fmt.Errorf("item %d has no source", item.ID))
	}
	rc, err := item.Source.Open()
	if err != nil {
		return "", services.Fail(services.ErrEncoding, "Failed to read file.", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(&contextReader{ctx: ctx, r: rc})
	if err != nil {
		return "", services.Fail(services.ErrEncoding, "Failed to read file.", err)
	}

	mediaType := strings.TrimSpace(item.MediaType)
	data = e.downscale(ctx, item, mediaType, data)
	return DataURI(mediaType, data), nil
}

// DataURI formats raw bytes as a base64 data URI.
func DataURI(mediaType string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mediaType) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mediaType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

var resizableFormats = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
	"image/tiff": imaging.TIFF,
	"image/bmp":  imaging.BMP,
}

// downscale fits oversized raster images inside the configured bounding box.
// Anything that cannot be decoded or re-encoded is returned unchanged.
func (e *Encoder) downscale(ctx context.Context, item queue.Item, mediaType string, data []byte) []byte {
	if e.maxDimension <= 0 {
		return data
	}
	format, ok := resizableFormats[strings.ToLower(mediaType)]
	if !ok {
		return data
	}
	logger := logging.WithContext(ctx, e.logger)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		logger.Debug("image not decodable; sending original bytes",
			logging.String("file", item.Name),
			logging.Error(err),
		)
		return data
	}
	bounds := img.Bounds()
	if bounds.Dx() <= e.maxDimension && bounds.Dy() <= e.maxDimension {
		return data
	}

	resized := imaging.Fit(img, e.maxDimension, e.maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(e.jpegQuality)); err != nil {
		logger.Debug("re-encode failed; sending original bytes",
			logging.String("file", item.Name),
			logging.Error(err),
		)
		return data
	}
	logger.Debug("downscaled image",
		logging.String("file", item.Name),
		logging.Int("width", bounds.Dx()),
		logging.Int("height", bounds.Dy()),
		logging.Int("max_dimension", e.maxDimension),
		logging.Int("bytes_before", len(data)),
		logging.Int("bytes_after", buf.Len()),
	)
	return buf.Bytes()
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
