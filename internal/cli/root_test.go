package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type origin struct {
	*httptest.Server
	hits atomic.Int64
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 400, 200))))

	o := &origin{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		if strings.HasSuffix(r.URL.Path, ".png") {
			_, _ = w.Write(img.Bytes())
			return
		}
		page := r.URL.Query().Get("page")
		_, _ = fmt.Fprintf(w, `{"page":%s,"items":[1,2]}`, page)
	}))
	t.Cleanup(o.Close)
	return o
}

func writeConfig(t *testing.T, o *origin) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
persistence:
  dir: %s
  lock: true
images:
  memory:
    size: 1048576
pages:
  memory:
    size: 65536
  url_template: "%s/news?page={page}&size={size}"
`, filepath.Join(dir, "store"), o.URL)

	path := filepath.Join(dir, "ashfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestPageCommand prints the payload and serves the second run from disk.
func TestPageCommand(t *testing.T) {
	o := newOrigin(t)
	cfg := writeConfig(t, o)

	out, err := run(t, "--config", cfg, "page", "3", "--size", "10")
	require.NoError(t, err)
	require.JSONEq(t, `{"page":3,"items":[1,2]}`, out)

	_, err = run(t, "--config", cfg, "page", "3", "--size", "10")
	require.NoError(t, err)
	require.Equal(t, int64(1), o.hits.Load())

	_, err = run(t, "--config", cfg, "page", "x")
	require.Error(t, err)
}

// TestImageCommand writes the downsampled jpeg.
func TestImageCommand(t *testing.T) {
	o := newOrigin(t)
	cfg := writeConfig(t, o)
	dst := filepath.Join(t.TempDir(), "a.jpg")

	_, err := run(t, "--config", cfg, "image", o.URL+"/a.png", "--width", "50", "--height", "50", "--out", dst)
	require.NoError(t, err)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	out, err := run(t, "--config", cfg, "image", o.URL+"/a.png", "--width", "50", "--height", "50")
	require.NoError(t, err)
	require.Equal(t, o.URL+"/a.png 100x50\n", out)
	require.Equal(t, int64(1), o.hits.Load())
}

// TestPrefetchAndPurge warms a page range, then empties the store.
func TestPrefetchAndPurge(t *testing.T) {
	o := newOrigin(t)
	cfg := writeConfig(t, o)

	out, err := run(t, "--config", cfg, "prefetch", "--from", "1", "--to", "4", "--concurrency", "2")
	require.NoError(t, err)
	require.Equal(t, "prefetched 4 pages, 8 items\n", out)
	require.Equal(t, int64(4), o.hits.Load())

	out, err = run(t, "--config", cfg, "purge")
	require.NoError(t, err)
	require.Equal(t, "purged\n", out)

	_, err = run(t, "--config", cfg, "page", "1")
	require.NoError(t, err)
	require.Equal(t, int64(5), o.hits.Load())

	_, err = run(t, "--config", cfg, "prefetch", "--from", "3", "--to", "1")
	require.Error(t, err)
}
