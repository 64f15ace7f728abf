package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// defaultRetryAfter is used when a 429 carries no usable hint.
const defaultRetryAfter = time.Second

// HTTPSource resolves entities from a JSON HTTP directory at
// GET {BaseURL}/entities/{id}.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
}

// NewHTTPSource creates an HTTPSource with the given per-request timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Now:     time.Now,
	}
}

// Resolve implements Source.
//
// 200 decodes the body, 404 and 410 map to ErrNotFound, 429 maps to
// *RateLimitedError using Retry-After (seconds or HTTP date) or
// X-RateLimit-Reset (epoch seconds). Anything else is a transient error.
func (s *HTTPSource) Resolve(ctx context.Context, entityID string) (DisplayInfo, error) {
	endpoint := s.BaseURL + "/entities/" + url.PathEscape(entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return DisplayInfo{}, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return DisplayInfo{}, fmt.Errorf("directory request for %s failed: %w", entityID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var info DisplayInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return DisplayInfo{}, fmt.Errorf("failed to decode directory response for %s: %w", entityID, err)
		}
		return info, nil

	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return DisplayInfo{}, ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		return DisplayInfo{}, &RateLimitedError{RetryAfter: s.retryAfter(resp.Header)}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return DisplayInfo{}, fmt.Errorf("directory returned %d for %s: %s", resp.StatusCode, entityID, strings.TrimSpace(string(body)))
	}
}

func (s *HTTPSource) retryAfter(h http.Header) time.Duration {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := at.Sub(now()); d > 0 {
				return d
			}
			return 0
		}
	}

	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseFloat(v, 64); err == nil {
			reset := time.Unix(0, int64(epoch*float64(time.Second)))
			if d := reset.Sub(now()); d > 0 {
				return d
			}
			return 0
		}
	}

	return defaultRetryAfter
}
