// Package cms is the authenticated HTTP client for the headless CMS.
//
// Writes (create, update, delete) are sent exactly once; the bulk job that
// drives them owns failure accounting. Reads are idempotent and retried on
// transport errors and 5xx answers.
package cms

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

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultLookupAttempts = 3
	defaultRetryDelay     = 500 * time.Millisecond
	listPageSize          = 100
)

// Client talks to the CMS REST API with a bearer token.
type Client struct {
	baseURL        *url.URL
	token          string
	httpClient     *http.Client
	lookupAttempts uint
	retryDelay     time.Duration
	logger         zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLookupAttempts sets how many times a read is tried in total.
func WithLookupAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.lookupAttempts = uint(n)
		}
	}
}

// WithRetryDelay sets the base delay between read attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client for baseURL (e.g. https://cms.example.org/api).
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL:        u,
		token:          token,
		httpClient:     &http.Client{Timeout: defaultTimeout},
		lookupAttempts: defaultLookupAttempts,
		retryDelay:     defaultRetryDelay,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Data any `json:"data"`
}

// Create posts one record and returns its id.
func (c *Client) Create(ctx context.Context, collection string, fields any) (RecordID, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, []string{collection}, nil, envelope{Data: fields}, &out); err != nil {
		return "", err
	}

	var created struct {
		ID RecordID `json:"id"`
	}
	if len(out.Data) > 0 {
		if err := json.Unmarshal(out.Data, &created); err != nil {
			return "", fmt.Errorf("decoding created record: %w", err)
		}
	}
	return created.ID, nil
}

// Update replaces fields of one record.
func (c *Client) Update(ctx context.Context, collection string, id RecordID, fields any) error {
	if id == "" {
		return ErrEmptyID
	}
	return c.do(ctx, http.MethodPut, []string{collection, id.String()}, nil, envelope{Data: fields}, nil)
}

// Delete removes one record. Any 2xx counts as success.
func (c *Client) Delete(ctx context.Context, collection string, id RecordID) error {
	if id == "" {
		return ErrEmptyID
	}
	return c.do(ctx, http.MethodDelete, []string{collection, id.String()}, nil, nil, nil)
}

// ExistsBy reports whether any record in collection has field == value.
func (c *Client) ExistsBy(ctx context.Context, collection, field, value string) (bool, error) {
	q := url.Values{}
	q.Set("filter["+field+"]", value)
	q.Set("pagination[pageSize]", "1")

	var out struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := c.read(ctx, []string{collection}, q, &out); err != nil {
		return false, err
	}
	return len(out.Data) > 0, nil
}

type listPage struct {
	Data []json.RawMessage `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageCount int `json:"pageCount"`
		} `json:"pagination"`
	} `json:"meta"`
}

// ListChapters loads every chapter of a work, following pagination.
func (c *Client) ListChapters(ctx context.Context, collection string, workID RecordID) ([]Chapter, error) {
	var chapters []Chapter
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("filter[work]", workID.String())
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(listPageSize))

		var out listPage
		if err := c.read(ctx, []string{collection}, q, &out); err != nil {
			return nil, fmt.Errorf("listing %s page %d: %w", collection, page, err)
		}

		for i, raw := range out.Data {
			var ch Chapter
			if err := decodeEntry(raw, &ch); err != nil {
				return nil, fmt.Errorf("decoding %s page %d entry %d: %w", collection, page, i, err)
			}
			if ch.WorkID == "" {
				ch.WorkID = workID
			}
			chapters = append(chapters, ch)
		}

		if len(out.Data) == 0 || page >= out.Meta.Pagination.PageCount {
			return chapters, nil
		}
	}
}

// read performs a GET with bounded retries on transient failures.
func (c *Client) read(ctx context.Context, segments []string, query url.Values, out any) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, segments, query, nil, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.lookupAttempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Uint("attempt", n+1).Str("path", joinPath(segments)).Err(err).Msg("retrying read")
		}),
	)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

func (c *Client) do(ctx context.Context, method string, segments []string, query url.Values, body, out any) error {
	path := joinPath(segments)
	u := c.endpoint(segments)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// endpoint appends escaped path segments to the base URL.
func (c *Client) endpoint(segments []string) *url.URL {
	u := *c.baseURL
	p, raw := c.baseURL.Path, c.baseURL.EscapedPath()
	for _, s := range segments {
		s = strings.Trim(s, "/")
		p += "/" + s
		raw += "/" + url.PathEscape(s)
	}
	u.Path, u.RawPath = p, raw
	return &u
}

func joinPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}
