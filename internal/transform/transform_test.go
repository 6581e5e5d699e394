package transform

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// pngHeader is a PNG signature plus an IHDR chunk declaring w x h, with no pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8], ihdr[9] = 8, 0 // 8-bit grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func imageKey(w, h float64) model.Key {
	return model.NewKey("https://cdn.example.com/a.png", model.NewSize(w, h))
}

// TestDownsample bounds the longer side and keeps the aspect ratio.
func TestDownsample(t *testing.T) {
	cases := []struct {
		name      string
		w, h, max int
		wantW     int
		wantH     int
	}{
		{name: "landscape", w: 400, h: 200, max: 100, wantW: 100, wantH: 50},
		{name: "portrait", w: 200, h: 400, max: 100, wantW: 50, wantH: 100},
		{name: "thin", w: 1000, h: 2, max: 10, wantW: 10, wantH: 1},
		{name: "already small", w: 80, h: 40, max: 100, wantW: 80, wantH: 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tc.w, tc.h))
			dst := Downsample(src, tc.max)
			require.Equal(t, tc.wantW, dst.Bounds().Dx())
			require.Equal(t, tc.wantH, dst.Bounds().Dy())
		})
	}
}

// TestImages_Transform scales by the display factor and persists a decodable JPEG.
func TestImages_Transform(t *testing.T) {
	c := NewImages(&config.ImagesCfg{Scale: 2, Quality: 80})

	img, persisted, err := c.Transform(context.Background(), imageKey(50, 25), encodePNG(t, 400, 200))
	require.NoError(t, err)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 50, img.Bounds().Dy())
	require.Equal(t, int64(4*100*50), c.Cost(img))

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(persisted))
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Width)

	decoded, err := c.Decode(context.Background(), persisted)
	require.NoError(t, err)
	require.Equal(t, img.Bounds(), decoded.Bounds())
}

// TestImages_Errors classifies bad input, undecodable bytes and cancellation.
func TestImages_Errors(t *testing.T) {
	c := NewImages(&config.ImagesCfg{Scale: 1, Quality: 70})
	ctx := context.Background()

	_, _, err := c.Transform(ctx, model.NewKey("https://cdn/a.png", model.NewPage(1, 1)), encodePNG(t, 2, 2))
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, _, err = c.Transform(ctx, imageKey(10, 10), []byte("not an image"))
	require.ErrorIs(t, err, model.ErrDecode)

	_, err = c.Decode(ctx, nil)
	require.ErrorIs(t, err, model.ErrDecode)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = c.Transform(cancelled, imageKey(10, 10), encodePNG(t, 2, 2))
	require.ErrorIs(t, err, model.ErrCancelled)
	require.Zero(t, c.Cost(nil))
}

// TestImages_MaxSourcePixels refuses oversized sources from their header alone.
func TestImages_MaxSourcePixels(t *testing.T) {
	ctx := context.Background()

	huge := pngHeader(100000, 100000)
	_, err := image.DecodeConfig(bytes.NewReader(huge))
	require.NoError(t, err)

	c := NewImages(&config.ImagesCfg{Scale: 1, Quality: 70})
	_, _, err = c.Transform(ctx, imageKey(10, 10), huge)
	require.ErrorIs(t, err, model.ErrDecode)
	require.Contains(t, err.Error(), "pixel limit")

	_, err = c.Decode(ctx, huge)
	require.ErrorIs(t, err, model.ErrDecode)

	small := NewImages(&config.ImagesCfg{Scale: 1, Quality: 70, MaxSourcePixels: 100})
	_, _, err = small.Transform(ctx, imageKey(5, 5), encodePNG(t, 20, 20))
	require.ErrorIs(t, err, model.ErrDecode)

	img, _, err := small.Transform(ctx, imageKey(5, 5), encodePNG(t, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 5, img.Bounds().Dx())
}

// TestDetached returns on cancellation without waiting for the work and recovers panics.
func TestDetached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, _, err := detached(ctx, func() (int, []byte, error) {
		<-release
		return 1, nil, nil
	})
	require.ErrorIs(t, err, model.ErrCancelled)

	_, _, err = detached(context.Background(), func() (int, []byte, error) {
		panic("boom")
	})
	require.ErrorIs(t, err, model.ErrTransformFailed)
}

// TestPages validates JSON and counts items.
func TestPages(t *testing.T) {
	c := NewPages()
	ctx := context.Background()
	key := model.NewKey("news", model.NewPage(0, 2))

	raw := []byte(`{"items":[{"id":1},{"id":2}]}`)
	v, persisted, err := c.Transform(ctx, key, raw)
	require.NoError(t, err)
	require.Equal(t, raw, v)
	require.Equal(t, raw, persisted)
	require.Equal(t, int64(len(raw)), c.Cost(v))
	require.Equal(t, 2, Items(v))
	require.Equal(t, 3, Items([]byte(`[1,2,3]`)))
	require.Zero(t, Items([]byte(`{"total":0}`)))

	_, _, err = c.Transform(ctx, key, []byte(`{"items":[`))
	require.ErrorIs(t, err, model.ErrDecode)

	_, err = c.Decode(ctx, []byte(`nope`))
	require.ErrorIs(t, err, model.ErrDecode)

	got, err := c.Decode(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}
