// Package media turns picked images into inline data URI payloads that fit
// in a single remote message record.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/matheus3301/chatroom/internal/logging"
	"github.com/matheus3301/chatroom/internal/model"
	"go.uber.org/zap"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPayloadBytes bounds the complete data URI, prefix included, so the
// whole message record stays under the remote 1 MiB document limit.
const MaxPayloadBytes = 1_048_487

const (
	dataScheme   = "data:"
	base64Marker = ";base64,"
)

// Asset is a picked image.
type Asset struct {
	Name     string
	MimeType string // declared type; sniffed when empty
	Data     []byte
}

// Options controls re-encoding of large images.
type Options struct {
	MaxDimension int // 0 disables downscaling
	JPEGQuality  int
}

// Gate validates and encodes assets.
type Gate struct {
	opts   Options
	logger *zap.Logger
}

func NewGate(opts Options, logger *zap.Logger) *Gate {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 50
	}
	return &Gate{opts: opts, logger: logging.OrNop(logger).Named("media")}
}

// PickFile loads the asset at path. An empty path is a cancelled pick and
// yields a nil asset without error.
func PickFile(path string) (*Asset, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &Asset{Name: filepath.Base(path), Data: data}, nil
}

// Encode produces the inline payload for asset. The final encoded size is
// checked before the payload is built.
func (g *Gate) Encode(ctx context.Context, asset *Asset) (*model.EncodedMedia, error) {
	if asset == nil || len(asset.Data) == 0 {
		return nil, ErrNoAssetSelected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mime := baseType(asset.MimeType)
	if mime == "" {
		mime = baseType(mimetype.Detect(asset.Data).String())
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, &UnsupportedTypeError{MimeType: mime}
	}

	data := asset.Data
	if g.opts.MaxDimension > 0 {
		data, mime = g.downscale(data, mime)
	}

	size := EncodedSize(mime, len(data))
	if size > MaxPayloadBytes {
		g.logger.Info("image rejected", zap.String("name", asset.Name), zap.Int("size", size))
		return nil, &SizeExceededError{Size: size, Limit: MaxPayloadBytes}
	}

	var b strings.Builder
	b.Grow(size)
	b.WriteString(dataScheme)
	b.WriteString(mime)
	b.WriteString(base64Marker)
	b.WriteString(base64.StdEncoding.EncodeToString(data))

	g.logger.Debug("image encoded", zap.String("name", asset.Name), zap.String("mime", mime), zap.Int("size", size))
	return &model.EncodedMedia{MimeType: mime, Payload: b.String()}, nil
}

// downscale fits images larger than MaxDimension into a MaxDimension square
// and re-encodes them as JPEG. Undecodable images pass through unchanged.
func (g *Gate) downscale(data []byte, mime string) ([]byte, string) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		g.logger.Debug("image not decodable, sending as is", zap.String("mime", mime), zap.Error(err))
		return data, mime
	}
	limit := g.opts.MaxDimension
	if cfg.Width <= limit && cfg.Height <= limit {
		return data, mime
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		g.logger.Warn("image decode failed, sending as is", zap.Error(err))
		return data, mime
	}
	resized := imaging.Fit(img, limit, limit, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(g.opts.JPEGQuality)); err != nil {
		g.logger.Warn("image re-encode failed, sending as is", zap.Error(err))
		return data, mime
	}
	g.logger.Debug("image downscaled",
		zap.Int("from_w", cfg.Width), zap.Int("from_h", cfg.Height),
		zap.Int("to_w", resized.Bounds().Dx()), zap.Int("to_h", resized.Bounds().Dy()))
	return buf.Bytes(), "image/jpeg"
}

// EncodedSize returns the length of the data URI for n raw bytes of mime.
func EncodedSize(mime string, n int) int {
	return len(dataScheme) + len(mime) + len(base64Marker) + base64.StdEncoding.EncodedLen(n)
}

// Decode splits a data URI payload into its media type and raw bytes.
func Decode(payload string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(payload, dataScheme)
	if !ok {
		return "", nil, ErrMalformedPayload
	}
	mime, encoded, ok := strings.Cut(rest, base64Marker)
	if !ok || mime == "" {
		return "", nil, ErrMalformedPayload
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return mime, data, nil
}

// Extension returns the usual file extension for mime, including the dot.
func Extension(mime string) string {
	if t := mimetype.Lookup(mime); t != nil {
		return t.Extension()
	}
	return ".bin"
}

func baseType(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}
