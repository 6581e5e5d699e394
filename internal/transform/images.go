package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/model"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Images downsamples to the requested size times the display scale and persists JPEG.
type Images struct {
	scale     float64
	quality   int
	maxPixels int64
}

func NewImages(cfg *config.ImagesCfg) *Images {
	maxPixels := cfg.MaxSourcePixels
	if maxPixels <= 0 {
		maxPixels = config.DefaultMaxSourcePixels
	}
	return &Images{scale: cfg.Scale, quality: cfg.Quality, maxPixels: maxPixels}
}

func (c *Images) Transform(ctx context.Context, key model.Key, raw []byte) (image.Image, []byte, error) {
	size, ok := key.Variant.(model.Size)
	if !ok {
		return nil, nil, fmt.Errorf("%w: image key %s has no size", model.ErrInvalidInput, key)
	}
	return detached(ctx, func() (image.Image, []byte, error) {
		src, err := c.decode(raw)
		if err != nil {
			return nil, nil, err
		}
		dst := Downsample(src, size.Pixels(c.scale))

		var buf bytes.Buffer
		if err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality}); err != nil {
			return nil, nil, fmt.Errorf("%w: jpeg encode: %w", model.ErrTransformFailed, err)
		}
		return dst, buf.Bytes(), nil
	})
}

func (c *Images) Decode(ctx context.Context, data []byte) (image.Image, error) {
	img, _, err := detached(ctx, func() (image.Image, []byte, error) {
		img, err := c.decode(data)
		return img, nil, err
	})
	return img, err
}

// Cost counts four bytes per pixel.
func (c *Images) Cost(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return 4 * int64(b.Dx()) * int64(b.Dy())
}

// Downsample scales src so its longer side is maxPixels, keeping the aspect ratio.
// Images already within maxPixels are returned as is.
func Downsample(src image.Image, maxPixels int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := max(w, h)
	if longer <= maxPixels {
		return src
	}

	nw := max(w*maxPixels/longer, 1)
	nh := max(h*maxPixels/longer, 1)
	if w >= h {
		nw = maxPixels
	} else {
		nh = maxPixels
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// decode reads the header first so oversized sources are refused before any pixel is allocated.
func (c *Images) decode(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDecode, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > c.maxPixels {
		return nil, fmt.Errorf("%w: source is %dx%d, over the %d pixel limit", model.ErrDecode, cfg.Width, cfg.Height, c.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", model.ErrDecode)
	}
	return img, nil
}
