// Package civitai implements the metadata client for the Civitai API.
// Lookups are keyed by content hash; responses are classified into a small
// error taxonomy (not-found, rate-limited, transient) so the pipeline can
// tell "not on server" apart from "couldn't ask server".
package civitai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flanksource/commons/logger"
	"golang.org/x/time/rate"

	"github.com/modelcat/modelcat/models"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://civitai.com/api/v1"

const (
	defaultTimeout      = 30 * time.Second
	defaultImageTimeout = 60 * time.Second
)

// Options configures a Client. Zero values select defaults.
type Options struct {
	// BaseURL overrides the API root (tests point this at httptest servers).
	BaseURL string
	// Timeout bounds each metadata request.
	Timeout time.Duration
	// ImageTimeout bounds each image download.
	ImageTimeout time.Duration
	// RequestsPerSecond caps the outbound request rate. Zero means the
	// default of 1 request per second with a burst of 2.
	RequestsPerSecond float64
	// UserAgent is sent with every request.
	UserAgent string
}

// Client queries the Civitai API. It holds no local state beyond its HTTP
// clients and rate limiter; all persistence is the caller's concern.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	imageClient *http.Client
	limiter     *rate.Limiter
	userAgent   string
}

// New creates a Client with sane timeouts and rate limiting.
func New(opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	imageTimeout := opts.ImageTimeout
	if imageTimeout <= 0 {
		imageTimeout = defaultImageTimeout
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "modelcat"
	}
	return &Client{
		baseURL:     strings.TrimRight(base, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		imageClient: &http.Client{Timeout: imageTimeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 2),
		userAgent:   ua,
	}
}

// LookupByHash fetches the model version owning the given content hash.
func (c *Client) LookupByHash(ctx context.Context, hash string) (*models.VersionInfo, error) {
	url := c.baseURL + "/model-versions/by-hash/" + hash
	logger.Debugf("Fetching version data: %s", url)

	var version models.VersionInfo
	if err := c.getJSON(ctx, url, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// ModelDetails fetches the model-level record for modelID.
func (c *Client) ModelDetails(ctx context.Context, modelID int) (*models.ModelInfo, error) {
	url := fmt.Sprintf("%s/models/%d", c.baseURL, modelID)
	logger.Debugf("Fetching model details: %s", url)

	var model models.ModelInfo
	if err := c.getJSON(ctx, url, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// getJSON performs a rate-limited GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apiError{kind: ErrTransient, msg: fmt.Sprintf("GET %s: %v", url, err)}
	}
	defer resp.Body.Close()

	if err := classifyStatus(url, resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apiError{
			status: resp.StatusCode,
			kind:   ErrTransient,
			msg:    fmt.Sprintf("GET %s: parsing response: %v", url, err),
		}
	}
	return nil
}

// classifyStatus maps an HTTP status to the error taxonomy. 2xx is success,
// 404 is a normal not-found outcome, 429 signals throttling and everything
// else is transient.
func classifyStatus(url string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &apiError{
			status: status,
			kind:   ErrNotFound,
			msg:    fmt.Sprintf("GET %s: status %d", url, status),
		}
	case status == http.StatusTooManyRequests:
		return &apiError{
			status: status,
			kind:   ErrRateLimited,
			msg:    fmt.Sprintf("GET %s: status %d", url, status),
		}
	default:
		return &apiError{
			status: status,
			kind:   ErrTransient,
			msg:    fmt.Sprintf("GET %s: status %d", url, status),
		}
	}
}
