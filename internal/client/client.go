// Package client is a typed Go client for the reelvault REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/reelvault/internal/auth"
	"github.com/glefebvre/reelvault/internal/availability"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/models"
)

const retryAfterKey = "retry_after"

// Client represents a reelvault API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// New creates a new API client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for a token and keeps it for later calls
func (c *Client) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	var result auth.LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// ListContent fetches one page of the catalog
func (c *Client) ListContent(ctx context.Context, page, limit int) (*models.Page[models.Content], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var result models.Page[models.Content]
	if err := c.do(ctx, http.MethodGet, "/api/content?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAvailability fetches every availability row of a content
func (c *Client) ListAvailability(ctx context.Context, contentID uint) ([]models.Availability, error) {
	var result struct {
		Data []models.Availability `json:"data"`
	}
	endpoint := fmt.Sprintf("/api/content/%d/availability", contentID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// UpdateAvailability replaces one availability row
func (c *Client) UpdateAvailability(ctx context.Context, contentID, availabilityID uint, in availability.Input) (*models.Availability, error) {
	var result models.Availability
	endpoint := fmt.Sprintf("/api/content/%d/availability/%d", contentID, availabilityID)
	if err := c.do(ctx, http.MethodPut, endpoint, in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetryAfter returns the wait the server asked for on a rate-limited response
func RetryAfter(err error) (time.Duration, bool) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Context == nil {
		return 0, false
	}
	d, ok := appErr.Context[retryAfterKey].(time.Duration)
	return d, ok
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.InternalError(fmt.Sprintf("%s %s failed", method, endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.InternalError("failed to decode response", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

// decodeError maps the error envelope back to a typed error
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	appErr := apperrors.FromHTTPStatus(resp.StatusCode, message)
	if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
		appErr.WithContext(retryAfterKey, wait)
	}
	return appErr
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}
