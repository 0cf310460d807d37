package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/snd-est/snd-rental/internal/shared"
)

const errorBodyLimit = 2048

// Client talks to the accounting system's REST API using token
// authentication.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	redis  *redis.Client
	group  singleflight.Group
}

// NewClient constructs a client. The redis client is optional and only
// used to cache catalog lookups.
func NewClient(cfg Config, logger *slog.Logger, redisClient *redis.Client) (*Client, error) {
	if err := cfg.Configured(); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotConfigured, err.Error())
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		redis:  redisClient,
	}, nil
}

// apiError is the error envelope returned on non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Exc     string `json:"exc"`
}

// do performs one API call. Non-2xx responses are logged with endpoint,
// status and a body snippet, and surface as ErrExternal (ErrNotFound
// for 404 so catalog lookups can branch on a missing document).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.cfg.BaseURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erpnext: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("erpnext: build request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.cfg.APIKey, c.cfg.APISecret))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %s", shared.ErrExternal, method, path, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		message := extractMessage(snippet)
		c.logger.Error("erpnext call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", shared.ErrNotFound, path)
		}
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrExternal, method, path, resp.StatusCode, message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %s", shared.ErrExternal, path, err.Error())
	}
	return nil
}

// extractMessage pulls the human-readable message from an error body,
// falling back to the raw snippet.
func extractMessage(snippet []byte) string {
	var envelope apiError
	if err := json.Unmarshal(snippet, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Exc != "" {
			return envelope.Exc
		}
	}
	return string(snippet)
}
