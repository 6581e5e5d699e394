package ashfetch

import (
	"github.com/Borislavv/go-ash-fetch/internal/origin"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Option func(*options)

type options struct {
	loader      origin.Loader
	fs          billy.Filesystem
	registerer  prometheus.Registerer
	storeLogger zerolog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{storeLogger: log.Logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLoader replaces the HTTP origin transport.
func WithLoader(l origin.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithFilesystem persists into fs instead of the configured directory. Namespace locks are
// not taken on injected filesystems.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithRegisterer registers the pipeline metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithStoreLogger sets the logger of the disk tier.
func WithStoreLogger(l zerolog.Logger) Option {
	return func(o *options) { o.storeLogger = l }
}
