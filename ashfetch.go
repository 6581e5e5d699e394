// Package ashfetch serves remote images and paginated JSON payloads through a memory tier,
// a persistent disk tier and the origin, deduplicating concurrent fetches of the same resource.
package ashfetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/internal/diskstore"
	"github.com/Borislavv/go-ash-fetch/internal/evictor"
	"github.com/Borislavv/go-ash-fetch/internal/memcache"
	"github.com/Borislavv/go-ash-fetch/internal/metrics"
	"github.com/Borislavv/go-ash-fetch/internal/origin"
	"github.com/Borislavv/go-ash-fetch/internal/resolver"
	"github.com/Borislavv/go-ash-fetch/internal/telemetry"
	"github.com/Borislavv/go-ash-fetch/internal/transform"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// PagesIdentity is the identity of every page key; pages differ by their model.Page variant.
const PagesIdentity = "news"

// Fetcher is one resolving pipeline.
type Fetcher[V any] interface {
	Fetch(ctx context.Context, key model.Key) (V, error)
	Cancel(key model.Key) bool
	CancelAll() int
	Invalidate(ctx context.Context, key model.Key) error
	Purge(ctx context.Context) error
}

// Images is the image pipeline: values are downsampled bitmaps.
type Images struct {
	*resolver.Service[image.Image]
}

// FetchImage returns the image at url downsampled for size.
func (i *Images) FetchImage(ctx context.Context, url string, size model.Size) (image.Image, error) {
	return i.Fetch(ctx, model.NewKey(url, size))
}

func (i *Images) CancelImage(url string, size model.Size) bool {
	return i.Cancel(model.NewKey(url, size))
}

var (
	_ Fetcher[image.Image] = (*Images)(nil)
	_ Fetcher[[]byte]      = (*Pages)(nil)
)

// Pages is the paginated payload pipeline: values are raw JSON documents.
type Pages struct {
	*resolver.Service[[]byte]
}

func PageKey(page, pageSize int) model.Key {
	return model.NewKey(PagesIdentity, model.NewPage(page, pageSize))
}

func (p *Pages) FetchPage(ctx context.Context, page, pageSize int) ([]byte, error) {
	return p.Fetch(ctx, PageKey(page, pageSize))
}

func (p *Pages) CancelPage(page, pageSize int) bool {
	return p.Cancel(PageKey(page, pageSize))
}

type Client struct {
	images  *Images
	pages   *Pages
	cancel  context.CancelFunc
	closers []io.Closer
}

// New builds the configured pipelines. A nil cfg means config.Default().
func New(ctx context.Context, cfg *config.Fetcher, logger *slog.Logger, opts ...Option) (c *Client, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.AdjustConfig()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := newOptions(opts...)
	ctx, cancel := context.WithCancel(ctx)
	c = &Client{cancel: cancel}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	fs, root, err := o.filesystem(cfg.Persistence)
	if err != nil {
		return nil, err
	}
	loader := o.loader
	if loader == nil {
		loader = origin.NewHTTPLoader(ctx, cfg.Origin, nil, logger)
	}
	m := metrics.NewMetrics(o.registerer)

	var sources []telemetry.Source

	if cfg.Images.Enabled() {
		p := cfg.Images
		store, err := c.openStore(fs, root, p.Namespace, p.Compression, cfg.Persistence.Lock, o)
		if err != nil {
			return nil, err
		}
		mem := memcache.New[image.Image](p.Memory, p.Eviction, logger)
		ev := evictor.New(ctx, p.Eviction, logger, mem)
		c.closers = append(c.closers, ev)

		svc := resolver.New[image.Image](ctx, resolver.Pipeline[image.Image]{
			Namespace: p.Namespace,
			Memory:    mem,
			Store:     store,
			Loader:    loader,
			Codec:     transform.NewImages(p),
			Locate:    resolver.ImageURL,
			Metrics:   m.Pipeline(p.Namespace),
		}, logger)
		c.closers = append(c.closers, svc)
		c.images = &Images{Service: svc}

		sources = append(sources, source(p.Namespace, mem, ev, svc, p.Eviction, p.Memory))
	}

	if cfg.Pages.Enabled() {
		p := cfg.Pages
		store, err := c.openStore(fs, root, p.Namespace, p.Compression, cfg.Persistence.Lock, o)
		if err != nil {
			return nil, err
		}
		mem := memcache.New[[]byte](p.Memory, p.Eviction, logger)
		ev := evictor.New(ctx, p.Eviction, logger, mem)
		c.closers = append(c.closers, ev)

		svc := resolver.New[[]byte](ctx, resolver.Pipeline[[]byte]{
			Namespace: p.Namespace,
			Memory:    mem,
			Store:     store,
			Loader:    loader,
			Codec:     transform.NewPages(),
			Locate:    resolver.PageURL(p.URLTemplate),
			Metrics:   m.Pipeline(p.Namespace),
		}, logger)
		c.closers = append(c.closers, svc)
		c.pages = &Pages{Service: svc}

		sources = append(sources, source(p.Namespace, mem, ev, svc, p.Eviction, p.Memory))
	}

	c.closers = append(c.closers, telemetry.New(ctx, cfg.Telemetry, logger, sources...))

	logger.Info("ashfetch client is ready",
		"images", cfg.Images.Enabled(), "pages", cfg.Pages.Enabled(),
		"persistence", root, "in_memory", cfg.Persistence.InMemory)
	return c, nil
}

// Images is nil when the image pipeline is not configured.
func (c *Client) Images() *Images { return c.images }

// Pages is nil when the pages pipeline is not configured.
func (c *Client) Pages() *Pages { return c.pages }

// CancelAll cancels the in-flight fetches of every pipeline.
func (c *Client) CancelAll() {
	if c.images != nil {
		c.images.CancelAll()
	}
	if c.pages != nil {
		c.pages.CancelAll()
	}
}

// Purge empties the memory and disk tiers of every pipeline.
func (c *Client) Purge(ctx context.Context) error {
	var errs []error
	if c.images != nil {
		errs = append(errs, c.images.Purge(ctx))
	}
	if c.pages != nil {
		errs = append(errs, c.pages.Purge(ctx))
	}
	return errors.Join(errs...)
}

// Close cancels in-flight fetches, stops background workers and releases namespace locks.
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	c.cancel()
	return errors.Join(errs...)
}

func (c *Client) openStore(fs billy.Filesystem, root, namespace string, compression *config.CompressionCfg, lock bool, o *options) (*diskstore.Store, error) {
	store, err := diskstore.New(fs, namespace, compression, o.storeLogger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, store)

	if lock && root != "" {
		if err = store.Lock(root); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func source(namespace string, mem telemetry.Memory, ev evictor.Evictor, co telemetry.Coordinator, eviction *config.EvictionCfg, memory config.MemoryCfg) telemetry.Source {
	src := telemetry.Source{
		Namespace:   namespace,
		Memory:      mem,
		Evictor:     ev,
		Coordinator: co,
		HardLimit:   memory.SizeBytes,
	}
	if eviction.Enabled() {
		src.SoftLimit = eviction.SoftMemoryLimitBytes
	}
	return src
}

// filesystem picks the injected filesystem, an in-memory one, or the OS directory of cfg.
// root is the OS path of the filesystem, empty when it is not OS-backed.
func (o *options) filesystem(cfg config.PersistenceCfg) (fs billy.Filesystem, root string, err error) {
	switch {
	case o.fs != nil:
		return o.fs, "", nil
	case cfg.InMemory:
		return memfs.New(), "", nil
	}

	root = cfg.Dir
	if root == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, "", fmt.Errorf("resolve user cache dir: %w", err)
		}
		root = filepath.Join(base, "go-ash-fetch")
	}
	if err = os.MkdirAll(root, 0o755); err != nil {
		return nil, "", fmt.Errorf("create persistence dir %s: %w", root, err)
	}
	return osfs.New(root), root, nil
}
