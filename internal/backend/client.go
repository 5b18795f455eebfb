// Package backend is the client side of the Life Tape service API.
package backend

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

	"life.tape/internal/audio"
	"life.tape/internal/models"
)

var ErrNotFound = errors.New("backend: not found")

// APIError is any non-2xx response other than 404.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// New creates a client handle from a URL/key pair.
func New(baseURL, key string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid url %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// app_state

func (c *Client) GetState(ctx context.Context, key string) (json.RawMessage, error) {
	var rec models.StateRecord
	if err := c.do(ctx, http.MethodGet, "/api/state/"+url.PathEscape(key), nil, &rec); err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (c *Client) UpsertState(ctx context.Context, key string, value json.RawMessage) error {
	body := map[string]json.RawMessage{"value": value}
	return c.do(ctx, http.MethodPut, "/api/state/"+url.PathEscape(key), body, nil)
}

func (c *Client) DeleteState(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/state/"+url.PathEscape(key), nil, nil)
}

// entries

func (c *Client) ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error) {
	q := url.Values{}
	if filter.DarkSide != nil {
		q.Set("darkSide", strconv.FormatBool(*filter.DarkSide))
	}
	if filter.Tag != "" {
		q.Set("tag", filter.Tag)
	}
	if filter.Search != "" {
		q.Set("q", filter.Search)
	}
	if filter.Ascending {
		q.Set("order", "asc")
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/api/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var entries []models.Entry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	var e models.Entry
	if err := c.do(ctx, http.MethodGet, "/api/entries/"+url.PathEscape(id), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) InsertEntry(ctx context.Context, e models.Entry) (*models.Entry, error) {
	var out models.Entry
	if err := c.do(ctx, http.MethodPost, "/api/entries", e, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (*models.Entry, error) {
	var out models.Entry
	if err := c.do(ctx, http.MethodPatch, "/api/entries/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/entries/"+url.PathEscape(id), nil, nil)
}

// audio

func (c *Client) CreateAudioUpload(ctx context.Context, ext string) (*audio.Upload, error) {
	var up audio.Upload
	body := map[string]string{"ext": ext}
	if err := c.do(ctx, http.MethodPost, "/api/audio/uploads", body, &up); err != nil {
		return nil, err
	}
	return &up, nil
}

// UploadAudio PUTs data to a presigned upload URL.
func (c *Client) UploadAudio(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}

func (c *Client) AudioURL(ctx context.Context, key string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/audio/url?key="+url.QueryEscape(key), nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
