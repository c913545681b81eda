// Package imaging decodes photographs into handles the embedding providers
// can upload.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// ErrDecode marks input that is not a decodable image.
var ErrDecode = errors.New("image decode failed")

// DefaultMaxPixels caps width*height of decoded images.
const DefaultMaxPixels = 89478485

// Image is a decoded photograph together with the bytes that will be sent to
// an embedding provider.
type Image struct {
	Decoded image.Image
	Format  string // as reported by image.Decode: "jpeg", "png", ...
	Data    []byte
}

// Decode validates raw bytes as an image of at most DefaultMaxPixels pixels.
// The returned error wraps ErrDecode.
func Decode(data []byte) (*Image, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel cap. The header is checked
// before any pixel buffer is allocated. maxPixels <= 0 means DefaultMaxPixels.
func DecodeLimit(data []byte, maxPixels int64) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &Image{Decoded: img, Format: format, Data: data}, nil
}

// MIMEType returns the media type of the encoded bytes.
func (i *Image) MIMEType() string {
	switch i.Format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// DataURI renders the encoded bytes as a base64 data URI.
func (i *Image) DataURI() string {
	return "data:" + i.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Base64 returns the encoded bytes as standard base64.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Fit returns an image whose longer side is at most maxSide pixels,
// re-encoded as JPEG (PNG when the source was PNG). The receiver is returned
// unchanged when it already fits or maxSide <= 0.
func (i *Image) Fit(maxSide int) (*Image, error) {
	if maxSide <= 0 {
		return i, nil
	}
	b := i.Decoded.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return i, nil
	}

	nw, nh := maxSide, maxSide
	if w >= h {
		nh = h * maxSide / w
	} else {
		nw = w * maxSide / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), i.Decoded, b, draw.Over, nil)

	var buf bytes.Buffer
	format := "jpeg"
	if i.Format == "png" {
		format = "png"
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("encode resized png: %w", err)
		}
	} else if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode resized jpeg: %w", err)
	}
	return &Image{Decoded: dst, Format: format, Data: buf.Bytes()}, nil
}

// ParseDataURI extracts the payload of "data:<mime>;base64,<payload>".
// Input without a "data:" prefix is treated as bare base64.
func ParseDataURI(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty image field", ErrDecode)
	}
	payload := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data uri has no payload", ErrDecode)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data uri is not base64 encoded", ErrDecode)
		}
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some browsers drop padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}
	return data, nil
}
