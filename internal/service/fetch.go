package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultReadTimeout    = 30 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 2 * time.Second
)

// HTTPGetter is what the source clients need from the network. Retries
// happen behind it.
type HTTPGetter interface {
	// Open returns the body of a successful GET. The caller closes it.
	Open(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error)
	// GetBytes reads the whole body of a successful GET.
	GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// StatusError is a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code %d", e.URL, e.StatusCode)
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type FetcherOptions struct {
	ConnectTimeout time.Duration
	// ReadTimeout bounds a whole request, including reading the body.
	ReadTimeout time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	// MinInterval spaces out requests; zero disables rate limiting.
	MinInterval time.Duration
	UserAgent   string
}

// Fetcher performs GETs with connect and read timeouts, exponential
// backoff on transient failures, and optional rate limiting.
type Fetcher struct {
	client    *http.Client
	opts      FetcherOptions
	limiter   *rate.Limiter
	log       *logrus.Entry
	newPolicy func() backoff.BackOff
}

// NewFetcher creates a Fetcher. Zero options take package defaults.
func NewFetcher(opts FetcherOptions, logger *logrus.Logger) *Fetcher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{Transport: transport, Timeout: opts.ReadTimeout},
		opts:   opts,
		log:    logger.WithField("component", "fetcher"),
	}
	if opts.MinInterval > 0 {
		f.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	f.newPolicy = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = opts.BaseDelay
		b.Multiplier = 2
		b.MaxElapsedTime = 0
		return backoff.WithMaxRetries(b, uint64(opts.MaxAttempts-1))
	}
	return f
}

func (f *Fetcher) Open(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	resp, err := f.do(ctx, url, headers, func(resp *http.Response) (*http.Response, error) {
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (f *Fetcher) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var body []byte
	_, err := f.do(ctx, url, headers, func(resp *http.Response) (*http.Response, error) {
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		body = b
		return resp, nil
	})
	return body, err
}

// do retries the whole request, including handle, until it succeeds, the
// error is permanent, attempts run out or ctx is done.
func (f *Fetcher) do(ctx context.Context, url string, headers map[string]string, handle func(*http.Response) (*http.Response, error)) (*http.Response, error) {
	attempts := 0
	op := func() (*http.Response, error) {
		attempts++
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode}
			if statusErr.Temporary() {
				return nil, statusErr
			}
			return nil, backoff.Permanent(statusErr)
		}
		return handle(resp)
	}

	notify := func(err error, wait time.Duration) {
		f.log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempts,
			"wait":    wait.String(),
		}).WithError(err).Warn("Request failed, retrying")
	}

	resp, err := backoff.RetryNotifyWithData(op, backoff.WithContext(f.newPolicy(), ctx), notify)
	if err != nil {
		return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
	}
	return resp, nil
}
