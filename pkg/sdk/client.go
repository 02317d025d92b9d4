package plantclf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/plantclf/internal/version"
)

const (
	defaultTimeout = 2 * time.Minute
	maxErrorBody   = 64 << 10
)

var defaultUserAgent = "plantclf-go-sdk/" + version.Version

// Client talks to one plantclf service instance.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	obs       *observer
}

// New creates a Client for the service at baseURL (for example "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("plantclf: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("plantclf: base url must be http or https, got %q", baseURL)
	}
	if u.Host == "" {
		return nil, errors.New("plantclf: base url has no host")
	}

	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if cfg.userAgent == "" {
		cfg.userAgent = defaultUserAgent
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		http:      cfg.httpClient,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Predict uploads image under filename and returns the classification.
// The service decides acceptance by the filename's extension (.png, .jpg, .jpeg).
func (c *Client) Predict(ctx context.Context, filename string, image io.Reader) (pred Prediction, err error) {
	start := time.Now()
	defer func() { c.obs.observe("predict", start, err) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return Prediction{}, fmt.Errorf("plantclf: create form file: %w", err)
	}
	if _, err = io.Copy(part, image); err != nil {
		return Prediction{}, fmt.Errorf("plantclf: read image: %w", err)
	}
	if err = mw.Close(); err != nil {
		return Prediction{}, fmt.Errorf("plantclf: close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/predict/", &body)
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = c.do(req, &pred)
	return pred, err
}

// PredictFile uploads the file at path under its base name.
func (c *Client) PredictFile(ctx context.Context, path string) (Prediction, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Prediction{}, fmt.Errorf("plantclf: open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	return c.Predict(ctx, filepath.Base(path), f)
}

// Health fetches /health. ModelLoaded reflects whether the model file is on the server's disk.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	err = c.do(req, &hs)
	return hs, err
}

// Info returns the service banner from the root endpoint.
func (c *Client) Info(ctx context.Context) (msg string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("info", start, err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err = c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("plantclf: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. Other statuses become *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("plantclf: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := parseDetail(body)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("plantclf: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
