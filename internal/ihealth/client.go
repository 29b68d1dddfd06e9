package ihealth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/florianilch/ihealth-mcp/internal/ihealth"

// Default gateway settings.
const (
	DefaultBaseURL   = "https://ihealth2-api.f5.com/qkview-analyzer/api"
	DefaultUserAgent = "F5iHealthMCPServer/1.0"
	DefaultTimeout   = 120 * time.Second
)

// Media types understood by the iHealth API.
const (
	MediaTypeAPI         = "application/vnd.f5.ihealth.api"
	MediaTypeAPIJSON     = "application/vnd.f5.ihealth.api+json"
	MediaTypeAPIXML      = "application/vnd.f5.ihealth.api+xml"
	MediaTypePDF         = "application/pdf"
	MediaTypeCSV         = "text/csv"
	MediaTypeOctetStream = "application/octet-stream"
)

// TokenSource supplies bearer tokens. Implementations refresh transparently.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// File is a multipart file payload.
type File struct {
	// Field is the multipart form field name.
	Field string
	// Name is the file name sent to the server.
	Name    string
	Content io.Reader
}

// Request describes one API call. It is owned by the caller that builds it
// and discarded once the response is classified.
type Request struct {
	Method string
	// Path is relative to the base URL and may carry a query string.
	Path string
	// Accept defaults to MediaTypeAPI.
	Accept string
	Form   url.Values
	File   *File
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithHTTPClient replaces the HTTP client used for API calls. The client is
// used as given; WithTimeout does not modify it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// Client is the HTTP gateway to the iHealth API. Every call results in exactly
// one normalized Response; no error escapes as a Go error.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	timeout    time.Duration
	tokens     TokenSource

	tracer   trace.Tracer
	requests metric.Int64Counter
}

// New creates a Client authenticating with tokens.
func New(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("missing token source")
	}

	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		tokens:    tokens,
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		// Redirects are followed by default
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	requests, err := otel.Meter(instrumentationName).Int64Counter(
		"ihealth.api.requests",
		metric.WithDescription("iHealth API requests by method and normalized response kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	c.requests = requests

	return c, nil
}

// Do performs req and classifies the outcome.
func (c *Client) Do(ctx context.Context, req *Request) *Response {
	method := strings.ToUpper(req.Method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return ErrorResponse(&UnsupportedMethodError{Method: req.Method})
	}

	ctx, span := c.tracer.Start(ctx, "ihealth "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	resp := c.do(ctx, method, req)

	kind := resp.Kind.String()
	span.SetAttributes(attribute.String("ihealth.response.kind", kind))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Err.Error())
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("kind", kind),
	))

	return resp
}

func (c *Client) do(ctx context.Context, method string, req *Request) *Response {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.ErrorContext(ctx, "missing credentials", "error", err)
		}
		return ErrorResponse(err)
	}

	accept := req.Accept
	if accept == "" {
		accept = MediaTypeAPI
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, nil)
	if err != nil {
		return ErrorResponse(&TransportError{Err: err})
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.userAgent)

	if method == http.MethodPost || method == http.MethodPut {
		setBody(httpReq, req)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.ErrorContext(ctx, "API request failed", "error", err)
		return ErrorResponse(&TransportError{Err: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusAccepted {
		_, _ = io.Copy(io.Discard, resp.Body)
		return PendingResponse()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return ErrorResponse(&TransportError{Err: err})
		}
		slog.ErrorContext(ctx, "API request failed", "status", resp.StatusCode, "body", string(body))
		return ErrorResponse(&RemoteError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	return classify(resp.Header.Get("Content-Type"), resp.Body)
}

// classify maps a successful response onto one of the normalized shapes.
func classify(contentType string, body io.Reader) *Response {
	switch {
	case strings.Contains(contentType, "application/json") || strings.Contains(contentType, MediaTypeAPIJSON):
		data, err := io.ReadAll(body)
		if err != nil {
			return ErrorResponse(&TransportError{Err: err})
		}
		var doc json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			return ErrorResponse(&TransportError{Err: fmt.Errorf("decoding JSON response: %w", err)})
		}
		return JSONResponse(doc)
	case strings.Contains(contentType, "xml"):
		data, err := io.ReadAll(body)
		if err != nil {
			return ErrorResponse(&TransportError{Err: err})
		}
		return XMLResponse(string(data))
	case strings.Contains(contentType, MediaTypeOctetStream):
		n, err := io.Copy(io.Discard, body)
		if err != nil {
			return ErrorResponse(&TransportError{Err: err})
		}
		return BinaryResponse(n)
	default:
		data, err := io.ReadAll(body)
		if err != nil {
			return ErrorResponse(&TransportError{Err: err})
		}
		return TextResponse(string(data))
	}
}

// setBody attaches the form fields and optional file to httpReq.
// File uploads stream through a pipe so large bundles are never buffered.
func setBody(httpReq *http.Request, req *Request) {
	if req.File == nil {
		if len(req.Form) == 0 {
			return
		}
		encoded := req.Form.Encode()
		httpReq.Body = io.NopCloser(strings.NewReader(encoded))
		httpReq.ContentLength = int64(len(encoded))
		httpReq.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(encoded)), nil
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// No goroutine leak on failure: the transport closes pr, which unblocks
	// all writes to pw with ErrClosedPipe.
	go func() {
		pw.CloseWithError(writeMultipart(mw, req.Form, req.File))
	}()

	httpReq.Body = pr
	httpReq.ContentLength = -1
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
}

func writeMultipart(mw *multipart.Writer, form url.Values, file *File) error {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range form[k] {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}

	part, err := mw.CreateFormFile(file.Field, file.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return err
	}
	return mw.Close()
}
