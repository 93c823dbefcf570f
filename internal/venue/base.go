package venue

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdoElHodaky/oms-core/pkg/config"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

const tokenCacheKey = "access_token"

// BaseAdapter carries the transport plumbing shared by concrete venue
// adapters: a retrying HTTP client (transport errors only; business
// rejections are never retried), a request rate limiter, and an auth
// token cache. Concrete adapters embed it and layer their wire protocol
// on top.
type BaseAdapter struct {
	Name    string
	Client  *retryablehttp.Client
	Limiter *rate.Limiter
	Logger  *zap.Logger

	tokens *cache.Cache
}

// NewBaseAdapter builds the shared plumbing from VenueConfig. The retry
// decision and backoff schedule are delegated to the error taxonomy's
// DefaultErrorHandler: transport failures retry with exponential backoff,
// venue business answers never do.
func NewBaseAdapter(cfg config.VenueConfig, logger *zap.Logger) *BaseAdapter {
	handler := errors.NewDefaultErrorHandler()
	if cfg.MaxRetries > 0 {
		handler.MaxRetries = cfg.MaxRetries
	}

	client := retryablehttp.NewClient()
	client.RetryMax = handler.MaxRetries
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.Logger = nil
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return handler.ShouldRetry(errors.Wrap(err, errors.ErrAdapterTransport, "venue request")), nil
		}
		// 5xx means the venue never gave a business answer; retry.
		return resp != nil && resp.StatusCode >= http.StatusInternalServerError, nil
	}
	client.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return handler.GetRetryDelay(nil, attempt)
	}

	limit := rate.Limit(cfg.RateLimitPerSecond)
	if cfg.RateLimitPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &BaseAdapter{
		Name:    cfg.Name,
		Client:  client,
		Limiter: rate.NewLimiter(limit, burst),
		Logger:  logger,
		tokens:  cache.New(23*time.Hour, time.Hour),
	}
}

// Wait blocks until the rate limiter admits one request, or the context
// expires.
func (b *BaseAdapter) Wait(ctx context.Context) error {
	if err := b.Limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, errors.ErrAdapterTimeout, "rate limit wait")
	}
	return nil
}

// Do sends one rate-limited request through the retrying client.
func (b *BaseAdapter) Do(ctx context.Context, req *retryablehttp.Request) (*http.Response, error) {
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := b.Client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrAdapterTransport, "venue request")
	}
	return resp, nil
}

// CachedToken returns the cached auth token, if still valid.
func (b *BaseAdapter) CachedToken() (string, bool) {
	v, ok := b.tokens.Get(tokenCacheKey)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// StoreToken caches an auth token until ttl elapses.
func (b *BaseAdapter) StoreToken(token string, ttl time.Duration) {
	b.tokens.Set(tokenCacheKey, token, ttl)
}

// DropToken evicts the cached token, forcing a refresh on next use.
func (b *BaseAdapter) DropToken() {
	b.tokens.Delete(tokenCacheKey)
}
