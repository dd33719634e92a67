package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/sethvargo/go-retry"
)

// HTTPClient implements Store against the walletsync server's JSON API.
// It holds the session token pair and transparently refreshes the access
// token once when the server reports it expired.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	ownerID      string
	accessToken  string
	refreshToken string

	// maxRetries bounds the per-call retry loop for transient failures.
	maxRetries uint64
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
	}
}

// OwnerID returns the authenticated owner's id, empty before login.
func (c *HTTPClient) OwnerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownerID
}

// LoggedIn reports whether a session token pair is held.
func (c *HTTPClient) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// Logout drops the session state.
func (c *HTTPClient) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ownerID, c.accessToken, c.refreshToken = "", "", ""
}

type tokenPair struct {
	OwnerID      string `json:"owner_id,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Register creates an account.
func (c *HTTPClient) Register(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.call(ctx, http.MethodPost, "/api/register", body, nil, false)
}

// Login authenticates and stores the session token pair.
func (c *HTTPClient) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	var tp tokenPair
	if err := c.call(ctx, http.MethodPost, "/api/login", body, &tp, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.ownerID, c.accessToken, c.refreshToken = tp.OwnerID, tp.AccessToken, tp.RefreshToken
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	if rt == "" {
		return common.ErrUnauthorized
	}

	var tp tokenPair
	if err := c.call(ctx, http.MethodPost, "/api/refresh", map[string]string{"refresh_token": rt}, &tp, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.accessToken, c.refreshToken = tp.AccessToken, tp.RefreshToken
	if tp.OwnerID != "" {
		c.ownerID = tp.OwnerID
	}
	c.mu.Unlock()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/ping", nil, nil, true)
}

func (c *HTTPClient) Upsert(ctx context.Context, collection string, rec Record) error {
	path := fmt.Sprintf("/api/%s/%s", url.PathEscape(collection), url.PathEscape(rec.ID))
	return c.call(ctx, http.MethodPut, path, rec, nil, true)
}

func (c *HTTPClient) MarkDeleted(ctx context.Context, collection, id string, deletedAt time.Time) error {
	path := fmt.Sprintf("/api/%s/%s/delete", url.PathEscape(collection), url.PathEscape(id))
	body := map[string]any{"deleted_at": deletedAt.UTC()}
	return c.call(ctx, http.MethodPost, path, body, nil, true)
}

func (c *HTTPClient) FetchSince(ctx context.Context, collection string, since time.Time) ([]Record, error) {
	path := fmt.Sprintf("/api/%s?since=%s", url.PathEscape(collection), url.QueryEscape(since.UTC().Format(time.RFC3339Nano)))
	var out []Record
	if err := c.call(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

type presignResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// PresignReceipt asks the server for a presigned PUT URL for a receipt image.
func (c *HTTPClient) PresignReceipt(ctx context.Context) (key, putURL string, err error) {
	var resp presignResponse
	if err := c.call(ctx, http.MethodPost, "/api/receipts/presign", nil, &resp, true); err != nil {
		return "", "", err
	}
	return resp.Key, resp.URL, nil
}

// call performs one API request with JSON body/response, bounded retries for
// transient failures, and a single token-refresh attempt on expiry.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out any, authed bool) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doOnce(ctx, method, path, body, out, authed)
		if err == nil {
			return nil
		}
		if authed && errors.Is(err, common.ErrTokenExpired) {
			if rerr := c.refresh(ctx); rerr != nil {
				return rerr
			}
			err = c.doOnce(ctx, method, path, body, out, authed)
			if err == nil {
				return nil
			}
		}
		var te *transportError
		if errors.As(err, &te) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// transportError marks failures worth retrying: network errors and 5xx.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		if token == "" {
			return common.ErrUnauthorized
		}
		req.Header.Set(common.AccessTokenHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: fmt.Errorf("remote unreachable: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Error == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		return common.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return common.ErrUserExists
	case resp.StatusCode >= 500:
		return &transportError{err: fmt.Errorf("remote error: status %d", resp.StatusCode)}
	default:
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Error != "" {
			return fmt.Errorf("remote error: %s", eb.Error)
		}
		return fmt.Errorf("remote error: status %d", resp.StatusCode)
	}
}
