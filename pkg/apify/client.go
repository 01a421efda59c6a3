// Package apify wraps the Apify actor-run API: starting actor runs, polling
// run status, and paging through dataset items.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for the Apify v2 API.
const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the Apify API.
const (
	RunStatusReady     = "READY"
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
	RunStatusAborted   = "ABORTED"
	RunStatusTimedOut  = "TIMED-OUT"
)

// Client defines the Apify API operations used by this application.
type Client interface {
	StartRun(ctx context.Context, actorID string, input any) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListItems(ctx context.Context, datasetID string, offset, limit int) (*ItemsPage, error)
}

// Run is an actor run as reported by the API.
type Run struct {
	ID               string    `json:"id"`
	ActorID          string    `json:"actId"`
	Status           string    `json:"status"`
	DefaultDatasetID string    `json:"defaultDatasetId"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
}

// runEnvelope wraps run responses, which the API nests under "data".
type runEnvelope struct {
	Data Run `json:"data"`
}

// ItemsPage is one page of dataset items. Items are opaque JSON objects;
// callers decode them against their expected record shape. Total is the
// full dataset size, taken from the pagination headers.
type ItemsPage struct {
	Items  []json.RawMessage
	Offset int
	Count  int
	Total  int
}

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apify client.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	var resp runEnvelope
	path := fmt.Sprintf("/acts/%s/runs", url.PathEscape(actorID))
	if err := c.post(ctx, path, input, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: start run of %s", actorID))
	}
	return &resp.Data, nil
}

func (c *httpClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var resp runEnvelope
	path := fmt.Sprintf("/actor-runs/%s", url.PathEscape(runID))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: get run %s", runID))
	}
	return &resp.Data, nil
}

// ListItems fetches one page of a dataset. The response body is a bare JSON
// array; the dataset size comes back in the X-Apify-Pagination-Total header.
func (c *httpClient) ListItems(ctx context.Context, datasetID string, offset, limit int) (*ItemsPage, error) {
	path := fmt.Sprintf("/datasets/%s/items?clean=true&offset=%d&limit=%d",
		url.PathEscape(datasetID), offset, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: list items of %s", datasetID))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrap(err, "decode items")
	}

	page := &ItemsPage{
		Items:  items,
		Offset: offset,
		Count:  len(items),
		Total:  len(items),
	}
	if h := resp.Header.Get("X-Apify-Pagination-Total"); h != "" {
		total, err := strconv.Atoi(h)
		if err != nil {
			return nil, eris.Wrapf(err, "apify: bad pagination total %q", h)
		}
		page.Total = total
	}
	return page, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
