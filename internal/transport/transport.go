// Package transport performs the raw Graph API calls. It owns request
// encoding and default headers; it never interprets provider payloads.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// MessagingProduct is the product string every Graph API body carries.
const MessagingProduct = "whatsapp"

const defaultMaxBodyBytes = 1 << 20

var (
	// ErrMissingPath is returned when an envelope has no request path.
	ErrMissingPath = errors.New("transport: path is required in making a request")
	// ErrMissingBaseURL is returned when an envelope has no base URL.
	ErrMissingBaseURL = errors.New("transport: base url is required in making a request")
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Envelope is a fully formed request. Body is JSON encoded; Form, when set,
// takes precedence and is sent as multipart/form-data.
type Envelope struct {
	BaseURL string
	Path    string
	Method  string
	Headers http.Header
	Body    any
	Form    *Form
}

// Form is an ordered multipart form with at most one attached file.
type Form struct {
	Fields []Field
	File   *FormFile
}

// Field is a single multipart text field.
type Field struct {
	Name  string
	Value string
}

// FormFile is the file part of a multipart form.
type FormFile struct {
	Field    string
	FileName string
	Reader   io.Reader
}

// RawOutcome is the unprocessed provider answer. Err is set for network
// failures and non-2xx responses; Body holds whatever the provider returned.
type RawOutcome struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

// Failed reports whether the call should be treated as a failure.
func (o *RawOutcome) Failed() bool {
	if o == nil {
		return true
	}
	return o.Err != nil || o.StatusCode < 200 || o.StatusCode >= 300
}

// Option customises the transport client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to talk to the Graph API.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBodyLimit adjusts how many bytes are retained from a response body.
func WithBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// Client sends envelopes to the provider.
type Client struct {
	logger       zerolog.Logger
	accessToken  string
	httpClient   HTTPClient
	maxBodyBytes int64
}

// New constructs a transport client authorised with the given bearer token.
func New(accessToken string, logger zerolog.Logger, opts ...Option) *Client {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	c := &Client{
		logger:       logger,
		accessToken:  strings.TrimSpace(accessToken),
		httpClient:   http.DefaultClient,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// DefaultHeaders returns the headers applied to every request.
func DefaultHeaders(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept-Language", "en_US")
	h.Set("Accept", "application/json")
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
	return h
}

// MergeHeaders returns a new header set holding defaults overlaid with
// overrides. A key present in overrides replaces all default values for that
// key. Neither input is modified.
func MergeHeaders(defaults, overrides http.Header) http.Header {
	merged := make(http.Header, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	for k, v := range overrides {
		merged[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	return merged
}

// Send performs exactly one HTTP call for the envelope. The returned error is
// reserved for envelopes that cannot be turned into a request; network and
// provider failures are reported through RawOutcome.Err.
func (c *Client) Send(ctx context.Context, env Envelope) (*RawOutcome, error) {
	if strings.TrimSpace(env.Path) == "" {
		return nil, ErrMissingPath
	}
	if strings.TrimSpace(env.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}

	method := strings.ToUpper(strings.TrimSpace(env.Method))
	if method == "" {
		c.logger.Warn().Str("path", env.Path).Msg("transport: method is missing, defaulting to GET")
		method = http.MethodGet
	}

	body, contentType, err := c.encodeBody(method, env)
	if err != nil {
		return nil, err
	}

	defaults := DefaultHeaders(c.accessToken)
	if contentType != "" {
		defaults.Set("Content-Type", contentType)
	}
	headers := MergeHeaders(defaults, env.Headers)

	endpoint := strings.TrimRight(env.BaseURL, "/") + env.Path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("transport: new request: %w", err)
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Str("method", method).Str("path", env.Path).Err(err).Msg("transport: request failed")
		return &RawOutcome{Err: fmt.Errorf("transport: http do: %w", err)}, nil
	}
	defer resp.Body.Close()

	data, err := c.readBody(resp.Body)
	outcome := &RawOutcome{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
		Err:        err,
	}
	if outcome.Err == nil && outcome.Failed() {
		outcome.Err = fmt.Errorf("transport: http %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", env.Path).
		Int("status_code", resp.StatusCode).
		Msg("transport: request completed")
	return outcome, nil
}

// Download streams the resource at rawURL into w using the bearer token. On a
// non-2xx answer nothing is written and the error body is kept in the outcome.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (*RawOutcome, int64, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, 0, errors.New("transport: download url is required")
	}
	if w == nil {
		return nil, 0, errors.New("transport: download writer is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("transport: new request: %w", err)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RawOutcome{Err: fmt.Errorf("transport: http do: %w", err)}, 0, nil
	}
	defer resp.Body.Close()

	outcome := &RawOutcome{StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	if outcome.Failed() {
		outcome.Body, _ = c.readBody(resp.Body)
		outcome.Err = fmt.Errorf("transport: http %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		return outcome, 0, nil
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		outcome.Err = fmt.Errorf("transport: copy body: %w", err)
	}
	return outcome, n, nil
}

func (c *Client) encodeBody(method string, env Envelope) (io.Reader, string, error) {
	if env.Form != nil {
		return encodeForm(env.Form)
	}

	payload := env.Body
	if payload == nil {
		if method == http.MethodGet || method == http.MethodHead {
			return nil, "", nil
		}
		c.logger.Warn().Str("path", env.Path).Msg("transport: body is missing, defaulting to {}")
		payload = map[string]any{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("transport: encode body: %w", err)
	}
	return bytes.NewReader(data), "", nil
}

func encodeForm(form *Form) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for _, f := range form.Fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("transport: write form field %s: %w", f.Name, err)
		}
	}

	if form.File != nil {
		if form.File.Reader == nil {
			return nil, "", errors.New("transport: form file reader is required")
		}
		field := form.File.Field
		if field == "" {
			field = "file"
		}
		part, err := writer.CreateFormFile(field, form.File.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("transport: create form file: %w", err)
		}
		if _, err := io.Copy(part, form.File.Reader); err != nil {
			return nil, "", fmt.Errorf("transport: copy form file: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: close form: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

func (c *Client) readBody(rc io.Reader) ([]byte, error) {
	if rc == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(rc, c.maxBodyBytes))
	if err != nil {
		return data, fmt.Errorf("transport: read body: %w", err)
	}
	return data, nil
}
