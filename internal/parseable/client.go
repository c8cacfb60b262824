package parseable

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/five82/plume/internal/query"
)

// Backend is the transport surface the session controller depends on.
// *Client implements it; tests substitute fakes.
type Backend interface {
	ListDatasets(ctx context.Context) (DatasetList, error)
	FetchSchema(ctx context.Context, dataset string) (Schema, error)
	RunQuery(ctx context.Context, spec query.Spec) ([]LogRecord, error)
	ExportCSV(ctx context.Context, dataset, filter string, rng query.TimeRange) (io.ReadCloser, error)
}

// Ensure Client implements Backend at compile time.
var _ Backend = (*Client)(nil)

// Client talks to the Parseable HTTP API.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	credential string
	timeout    time.Duration
}

const (
	defaultUserAgent = "plume/0.1"
	defaultTimeout   = 10 * time.Second
	maxBodyBytes     = 64 << 20

	// The public demo instance is always reached with its published admin
	// login, whatever credential is configured.
	demoHost       = "demo.parseable.com"
	demoCredential = "YWRtaW46YWRtaW4="
)

// NewClient builds a Client for baseURL. credential is the base64 form of
// "user:pass"; it may be empty only for the demo endpoint. A zero timeout uses
// the default.
func NewClient(baseURL, credential string, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	credential = strings.TrimSpace(credential)
	if credential == "" && !isDemo(base) {
		return nil, ErrNoCredential
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    base,
		http:       &http.Client{},
		userAgent:  defaultUserAgent,
		credential: credential,
		timeout:    timeout,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Identity returns the user name carried by the effective credential.
func (c *Client) Identity() string {
	raw, err := base64.StdEncoding.DecodeString(c.authCredential())
	if err != nil {
		return ""
	}
	user, _, _ := strings.Cut(string(raw), ":")
	return user
}

// ListDatasets retrieves the datasets visible to the configured user.
func (c *Client) ListDatasets(ctx context.Context) (DatasetList, error) {
	const op = "list datasets"
	body, err := c.get(ctx, op, c.endpoint("api", "v1", "logstream"))
	if err != nil {
		return DatasetList{}, err
	}

	var raw any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return DatasetList{}, &FormatError{Op: op, Expectation: "response is not valid JSON", Err: err}
	}
	items, ok := raw.([]any)
	if !ok {
		return DatasetList{}, &FormatError{Op: op, Expectation: "expected an array of datasets"}
	}

	datasets := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		switch v := item.(type) {
		case map[string]any:
			name, _ = v["name"].(string)
		case string:
			name = v
		}
		if name = strings.TrimSpace(name); name != "" {
			datasets = append(datasets, name)
		}
	}
	return DatasetList{Identity: c.Identity(), Datasets: datasets}, nil
}

// FetchSchema retrieves the field map of dataset.
func (c *Client) FetchSchema(ctx context.Context, dataset string) (Schema, error) {
	const op = "fetch schema"
	if strings.TrimSpace(dataset) == "" {
		return Schema{}, fmt.Errorf("%s: %w", op, query.ErrNoDataset)
	}
	body, err := c.get(ctx, op, c.endpoint("api", "v1", "logstream", dataset, "schema"))
	if err != nil {
		return Schema{}, err
	}

	var raw map[string]any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return Schema{}, &FormatError{Op: op, Expectation: "expected a schema object", Err: err}
	}
	return Schema{Dataset: dataset, Fields: schemaFields(raw), Raw: raw}, nil
}

// RunQuery submits spec and returns the validated records.
func (c *Client) RunQuery(ctx context.Context, spec query.Spec) ([]LogRecord, error) {
	const op = "run query"
	payload, err := sonic.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rel := c.endpoint("api", "v1", "query")
	resp, err := c.do(ctx, op, http.MethodPost, rel, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Path: rel.Path, Err: err}
	}
	return parseRecords(body)
}

// ExportCSV asks the backend to render dataset as CSV, restricted to filter
// and rng. The filter goes through the same classification as query
// compilation; a zero rng exports every row. The caller must close the
// returned stream; ctx bounds the whole transfer.
func (c *Client) ExportCSV(ctx context.Context, dataset, filter string, rng query.TimeRange) (io.ReadCloser, error) {
	const op = "export csv"
	if strings.TrimSpace(dataset) == "" {
		return nil, fmt.Errorf("%s: %w", op, query.ErrNoDataset)
	}
	q, err := query.ExportQuery(filter, rng)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rel := c.endpoint("api", "v1", "logstream", dataset, "csv")
	if q != "" {
		rel.RawQuery = url.Values{"q": []string{q}}.Encode()
	}
	resp, err := c.do(ctx, op, http.MethodGet, rel, nil, "")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) get(ctx context.Context, op string, rel *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, op, http.MethodGet, rel, nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Path: rel.Path, Err: err}
	}
	return body, nil
}

// do executes the request and classifies failures. On success the caller owns
// resp.Body.
func (c *Client) do(ctx context.Context, op, method string, rel *url.URL, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rel.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Basic "+c.authCredential())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Path: rel.Path, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Op: op, Path: rel.Path, Status: resp.StatusCode}
	}
	reason, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, &TransportError{
		Op:     op,
		Path:   rel.Path,
		Status: resp.StatusCode,
		Reason: strings.TrimSpace(string(reason)),
	}
}

func (c *Client) authCredential() string {
	if isDemo(c.baseURL) {
		return demoCredential
	}
	return c.credential
}

func (c *Client) endpoint(elem ...string) *url.URL {
	return c.baseURL.JoinPath(elem...)
}

func isDemo(u *url.URL) bool {
	return strings.Contains(u.String(), demoHost)
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("response body exceeds size limit")
	}
	return body, nil
}

func schemaFields(raw map[string]any) []SchemaField {
	list, ok := raw["fields"].([]any)
	if !ok {
		return nil
	}
	fields := make([]SchemaField, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		field := SchemaField{Name: name}
		switch dt := m["data_type"].(type) {
		case string:
			field.DataType = dt
		case nil:
		default:
			if b, err := sonic.ConfigStd.Marshal(dt); err == nil {
				field.DataType = string(b)
			}
		}
		field.Nullable, _ = m["nullable"].(bool)
		fields = append(fields, field)
	}
	return fields
}

func parseBaseURL(baseURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, ErrNoBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
