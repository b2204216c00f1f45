package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

const maxErrorBody = 1 << 20

var ErrMalformedResponse = fmt.Errorf("malformed response envelope")

// Client talks JSON to the timesheets backend and unwraps its response envelopes.
// Authentication is the business of the *http.Client it is built with.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.do(ctx, http.MethodGet, path, query, nil, out)
	return err
}

// GetPage fetches a paginated collection into out (a pointer to a slice).
func (c *Client) GetPage(ctx context.Context, path string, query url.Values, out any) (PageMeta, error) {
	env, err := c.do(ctx, http.MethodGet, path, query, nil, out)
	if err != nil {
		return PageMeta{}, err
	}
	if env.Meta == nil {
		return PageMeta{}, nil
	}
	return *env.Meta, nil
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, out)
	return err
}

func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	_, err := c.do(ctx, http.MethodPut, path, nil, body, out)
	return err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		// bytes.Reader lets the transport replay the body after a credential refresh
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (envelope, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return envelope{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		log.Debugf("%s %s failed: %v", method, path, apiErr)
		return envelope{}, apiErr
	}

	if resp.StatusCode == http.StatusNoContent {
		return envelope{Success: true}, nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if err == io.EOF {
			return envelope{Success: true}, nil
		}
		return envelope{}, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	if !env.Success {
		return envelope{}, &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return envelope{}, fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
		}
	}
	return env, nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Error
		}
	}
	return apiErr
}

// File is a downloaded export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Download fetches a binary resource. The file name comes from the
// Content-Disposition header when present, otherwise fallbackName is used.
func (c *Client) Download(ctx context.Context, path string, query url.Values, fallbackName string) (File, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return File{}, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("failed to send GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return File{}, decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("failed to read download body: %w", err)
	}
	return File{
		Name:        FilenameFromDisposition(resp.Header.Get("Content-Disposition"), fallbackName),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

var dispositionFilename = regexp.MustCompile(`filename=(.+)`)

func FilenameFromDisposition(header string, fallback string) string {
	if header == "" {
		return fallback
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	if m := dispositionFilename.FindStringSubmatch(header); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"`)
	}
	return fallback
}
