package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cs-lavezzi/shopify-moysklad-integration/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from a platform API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// defaultCooldown is used when a throttled response carries no cooldown hint
const defaultCooldown = 5 * time.Second

// cooldownFunc extracts the server-requested cooldown from a 429 response
type cooldownFunc func(h http.Header) (time.Duration, bool)

// sleepFunc blocks for d or until ctx is done
type sleepFunc func(ctx context.Context, d time.Duration) error

// apiClient is the HTTP transport shared by the platform adapters.
// It paces outbound requests with a token bucket and absorbs 429 responses
// by waiting out the cooldown and re-sending, so throttling surfaces to
// callers only as latency until MaxThrottleRetries is exhausted.
type apiClient struct {
	platform           string
	baseURL            string
	httpClient         *http.Client
	authorize          func(req *http.Request)
	limiter            *rate.Limiter
	cooldown           cooldownFunc
	maxThrottleRetries int
	sleep              sleepFunc
	logger             *zap.Logger
}

// apiResponse is a fully read platform response
type apiResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// newAPIClient creates the shared transport. rps <= 0 disables pacing.
func newAPIClient(platform, baseURL string, timeout time.Duration, rps float64, burst int, maxThrottleRetries int, logger *zap.Logger) *apiClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiClient{
		platform:           platform,
		baseURL:            strings.TrimRight(baseURL, "/"),
		httpClient:         &http.Client{Timeout: timeout},
		authorize:          func(*http.Request) {},
		limiter:            limiter,
		cooldown:           retryAfterCooldown,
		maxThrottleRetries: maxThrottleRetries,
		sleep:              sleepContext,
		logger:             logger,
	}
}

// getJSON issues a GET and decodes the JSON body into out
func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out any) (*apiResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if err := c.decode(resp, out); err != nil {
		return nil, err
	}
	return resp, nil
}

// sendJSON issues a request with a JSON body and decodes the response into out when non-nil
func (c *apiClient) sendJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, nil, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(resp, out)
}

func (c *apiClient) decode(resp *apiResponse, out any) error {
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", integration.ErrPlatformInvalidResponse, c.platform, err)
	}
	return nil
}

// do sends a request, honoring the rate limiter and throttling cooldowns.
// Network failures and 5xx map to ErrPlatformUnavailable, other 4xx to
// ErrPlatformRequestFailed.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body any) (*apiResponse, error) {
	target := c.resolve(path, query)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", c.platform, err)
		}
	}

	for throttled := 0; ; throttled++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.roundTrip(ctx, method, target, payload)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if throttled >= c.maxThrottleRetries {
				return nil, fmt.Errorf("%w: %s %s", integration.ErrPlatformRateLimited, method, path)
			}
			wait, ok := c.cooldown(resp.Header)
			if !ok {
				wait = defaultCooldown
			}
			c.logger.Warn("Platform rate limit hit, cooling down",
				zap.String("platform", c.platform),
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("cooldown", wait),
				zap.Int("attempt", throttled+1),
			)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %s HTTP %d: %s", integration.ErrPlatformUnavailable, c.platform, resp.StatusCode, snippet(resp.Body))
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s HTTP %d", integration.ErrPlatformAuthFailed, c.platform, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: %s HTTP %d: %s", integration.ErrPlatformRequestFailed, c.platform, resp.StatusCode, snippet(resp.Body))
		}
		return resp, nil
	}
}

func (c *apiClient) roundTrip(ctx context.Context, method, target string, payload []byte) (*apiResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.platform, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", integration.ErrPlatformUnavailable, c.platform, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: failed to read response: %v", integration.ErrPlatformUnavailable, c.platform, err)
	}

	return &apiResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// resolve joins a relative path onto the base URL; absolute URLs (pagination links) pass through
func (c *apiClient) resolve(path string, query url.Values) string {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

// retryAfterCooldown reads a standard Retry-After header (seconds or HTTP date)
func retryAfterCooldown(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
