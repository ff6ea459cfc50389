// ABOUTME: Low-level HTTP client for the upstream posts API
// ABOUTME: Handles bearer auth, paging parameters, and error classification

package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Error classes surfaced to the retry policy. Callers classify with
// errors.Is; anything not matching a sentinel is treated as transient.
var (
	ErrRateLimited      = errors.New("upstream API rate limit exceeded")
	ErrAuthFailed       = errors.New("upstream API authentication failed")
	ErrForbidden        = errors.New("upstream API access forbidden")
	ErrNotFound         = errors.New("upstream resource not found")
	ErrTemporaryFailure = errors.New("temporary upstream API failure")
)

// PostAPIClient talks to the upstream paginated posts API.
type PostAPIClient struct {
	baseURL     string
	bearerToken string
	pageSize    int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewPostAPIClient creates a client for the given API base URL.
func NewPostAPIClient(baseURL, bearerToken string, pageSize int, logger *slog.Logger) *PostAPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	return &PostAPIClient{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		pageSize:    pageSize,
		logger:      logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
			},
		},
	}
}

// FetchPage fetches one page of posts for a resource, following the
// continuation token when provided.
func (c *PostAPIClient) FetchPage(ctx context.Context, resourceID, continuationToken string) (*PageResponse, error) {
	endpoint := fmt.Sprintf("%s/users/%s/posts", c.baseURL, url.PathEscape(resourceID))

	params := url.Values{
		"max_results":  {strconv.Itoa(c.pageSize)},
		"media.fields": {"media_key,type,url,width,height"},
	}
	if continuationToken != "" {
		params.Set("pagination_token", continuationToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("User-Agent", "post-collector/1.0")

	c.logger.Debug("Fetching page from upstream API",
		"resource_id", resourceID,
		"page_size", c.pageSize,
		"has_continuation", continuationToken != "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemporaryFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(resp, resourceID)
	}

	var page PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.logger.Error("Failed to decode page response",
			"resource_id", resourceID,
			"error", err)
		return nil, fmt.Errorf("failed to decode page response: %w", err)
	}

	c.logger.Debug("Fetched page from upstream API",
		"resource_id", resourceID,
		"items", len(page.Items),
		"media", len(page.Includes.Media),
		"has_next", page.Meta.NextToken != "")

	return &page, nil
}

// classifyStatus maps non-200 responses onto the sentinel error classes.
func (c *PostAPIClient) classifyStatus(resp *http.Response, resourceID string) error {
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	c.logger.Warn("Upstream API request failed",
		"resource_id", resourceID,
		"status_code", resp.StatusCode,
		"response_body", truncateBody(bodyStr))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, retryAfter)

	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, bodyStr)

	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, bodyStr)

	case http.StatusNotFound:
		return fmt.Errorf("%w: resource %s", ErrNotFound, resourceID)

	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrTemporaryFailure, resp.StatusCode)

	default:
		return fmt.Errorf("upstream API request failed with status %d: %s", resp.StatusCode, bodyStr)
	}
}

func truncateBody(body string) string {
	const maxLogged = 200
	if len(body) > maxLogged {
		return body[:maxLogged]
	}
	return body
}
