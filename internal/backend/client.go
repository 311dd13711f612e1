package backend

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
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrEmailNotAuthorized is returned when registration is restricted to approved emails.
	ErrEmailNotAuthorized = errors.New("backend: email not authorized for registration")
	// ErrInvalidResponse wraps payloads that fail schema validation.
	ErrInvalidResponse = errors.New("backend: invalid response")
)

const emailNotAuthorizedDetail = "Email not authorized for registration."

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client talks to the remote collaboration backend.
type Client struct {
	baseURL  string
	http     *http.Client
	validate *validator.Validate
	logger   *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for baseURL, e.g. http://localhost:3000/api.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		validate: validator.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	method      string
	path        string
	query       url.Values
	token       string
	body        io.Reader
	contentType string
}

func jsonBody(v any) (io.Reader, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(payload), nil
}

func formBody(values url.Values) io.Reader {
	return strings.NewReader(values.Encode())
}

// multipartBody streams one file part plus optional fields.
func multipartBody(field, filename string, content io.Reader, fields map[string][]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", err
			}
		}
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	c.logger.Debug("backend request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch d := payload.Detail.(type) {
		case string:
			apiErr.Detail = d
		case nil:
			apiErr.Detail = payload.Error
		default:
			raw, _ := json.Marshal(d)
			apiErr.Detail = string(raw)
		}
	} else {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}

// call performs r and decodes the JSON body into out, validating it.
func (c *Client) call(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrInvalidResponse, r.method, r.path, err)
	}
	if err := c.check(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, r.method, r.path, err)
	}
	return nil
}

// check validates structs and slices of structs.
func (c *Client) check(out any) error {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return c.validate.Struct(v.Interface())
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			item := v.Index(i)
			if item.Kind() != reflect.Struct {
				continue
			}
			if err := c.validate.Struct(item.Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}
