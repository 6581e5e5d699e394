// Package origin fetches raw resource bytes from their source.
package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Borislavv/go-ash-fetch/config"
	"github.com/Borislavv/go-ash-fetch/internal/shared/rate"
	"github.com/Borislavv/go-ash-fetch/model"
	"github.com/avast/retry-go/v4"
	perrors "github.com/jmgilman/go/errors"
)

// Loader fetches the raw bytes behind a locator. Failures wrap model.ErrTransport,
// cancellation wraps model.ErrCancelled.
type Loader interface {
	Load(ctx context.Context, locator string) ([]byte, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, locator string) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

type HTTPLoader struct {
	cfg     config.OriginCfg
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewHTTPLoader builds the loader; the rate limiter, if configured, lives until ctx ends.
func NewHTTPLoader(ctx context.Context, cfg config.OriginCfg, client *http.Client, logger *slog.Logger) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	l := &HTTPLoader{cfg: cfg, client: client, logger: logger}
	if cfg.RateLimit > 0 {
		l.limiter = rate.NewLimiter(ctx, cfg.RateLimit)
	}
	return l
}

func (l *HTTPLoader) Load(ctx context.Context, locator string) ([]byte, error) {
	u, err := url.Parse(locator)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported locator %q", model.ErrInvalidInput, locator)
	}

	var (
		data []byte
		last error
	)
	if l.cfg.Retries == 0 {
		data, last = l.load(ctx, locator)
	} else {
		data, last = retry.DoWithData(
			func() ([]byte, error) { return l.load(ctx, locator) },
			retry.Attempts(l.cfg.Retries+1),
			retry.Delay(l.cfg.RetryDelay),
			retry.MaxDelay(10*l.cfg.RetryDelay),
			retry.DelayType(retry.BackOffDelay),
			retry.RetryIf(perrors.IsRetryable),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				l.logger.Debug("origin request retry", "locator", locator, "attempt", n+1, "err", err)
			}),
		)
	}

	if last != nil {
		if ctx.Err() != nil {
			return nil, model.Cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, last)
	}
	return data, nil
}

func (l *HTTPLoader) load(ctx context.Context, locator string) ([]byte, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, model.Cancelled(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidInput, "build request")
	}
	req.Header.Set("User-Agent", l.cfg.UserAgent)

	started := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.Cancelled(ctx.Err())
		}
		return nil, classifyDoErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, classifyStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.Cancelled(ctx.Err())
		}
		return nil, classifyDoErr(err)
	}
	if int64(len(data)) > l.cfg.MaxBodyBytes {
		return nil, perrors.Newf(perrors.CodeExecutionFailed, "response body exceeds %d bytes", l.cfg.MaxBodyBytes)
	}

	l.logger.Debug("origin request done", "locator", locator, "bytes", len(data), "took", time.Since(started).String())
	return data, nil
}

func classifyDoErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return perrors.Wrap(err, perrors.CodeTimeout, "origin request timed out")
	}
	return perrors.Wrap(err, perrors.CodeNetwork, "origin request failed")
}

func classifyStatus(status int) error {
	msg := fmt.Sprintf("origin responded %d %s", status, http.StatusText(status))
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return perrors.New(perrors.CodeNotFound, msg)
	case status == http.StatusTooManyRequests:
		return perrors.New(perrors.CodeRateLimit, msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return perrors.New(perrors.CodeTimeout, msg)
	case status >= 500:
		return perrors.New(perrors.CodeUnavailable, msg)
	default:
		return perrors.New(perrors.CodeExecutionFailed, msg)
	}
}
