package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/rs/zerolog/log"
)

// BeforeSend runs after the HTTP request is built and before it is sent.
// Hooks may only decorate req; an error aborts the call.
type BeforeSend func(ctx context.Context, call *Call, req *http.Request) error

// AfterReceive inspects a completed response and may replace it, for example
// with the outcome of a resend. Transport failures never reach these hooks.
type AfterReceive func(ctx context.Context, resp *Response) (*Response, error)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func WithUserAgent(ua string) Option {
	return func(d *Dispatcher) { d.userAgent = ua }
}

func WithBeforeSend(hooks ...BeforeSend) Option {
	return func(d *Dispatcher) { d.before = append(d.before, hooks...) }
}

func WithAfterReceive(hooks ...AfterReceive) Option {
	return func(d *Dispatcher) { d.after = append(d.after, hooks...) }
}

// Dispatcher sends Calls to the remote service.
type Dispatcher struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	before     []BeforeSend
	after      []AfterReceive
}

func New(baseURL string, opts ...Option) (*Dispatcher, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[dispatch New] invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[dispatch New] base URL %q must be absolute", baseURL)
	}

	d := &Dispatcher{baseURL: u}
	for _, opt := range opts {
		opt(d)
	}
	if d.httpClient == nil {
		d.httpClient = &http.Client{Timeout: d.timeout}
	}
	return d, nil
}

// AddBeforeSend appends hooks. Not safe to call once calls are in flight.
func (d *Dispatcher) AddBeforeSend(hooks ...BeforeSend) {
	d.before = append(d.before, hooks...)
}

// AddAfterReceive appends hooks. Not safe to call once calls are in flight.
func (d *Dispatcher) AddAfterReceive(hooks ...AfterReceive) {
	d.after = append(d.after, hooks...)
}

// BaseURL returns the URL endpoints are resolved against.
func (d *Dispatcher) BaseURL() string {
	return d.baseURL.String()
}

// Do sends the call, runs the AfterReceive hooks on the response and turns a
// final non-2xx status into a *StatusError.
func (d *Dispatcher) Do(ctx context.Context, call *Call) (*Response, error) {
	resp, err := d.Send(ctx, call)
	if err != nil {
		return nil, err
	}

	for _, hook := range d.after {
		if resp, err = hook(ctx, resp); err != nil {
			return nil, err
		}
	}

	if !resp.OK() {
		return resp, NewStatusError(resp)
	}
	return resp, nil
}

// Send runs the BeforeSend hooks and performs a single HTTP exchange. Any
// status is a successful Send; only transport failures return an error.
func (d *Dispatcher) Send(ctx context.Context, call *Call) (*Response, error) {
	req, err := d.newRequest(ctx, call)
	if err != nil {
		return nil, err
	}

	for _, hook := range d.before {
		if err := hook(ctx, call, req); err != nil {
			return nil, fmt.Errorf("[dispatch Send] %s %s: %w", call.Method, call.Endpoint, err)
		}
	}

	start := time.Now()
	httpResp, err := d.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("request_id", call.ID).Str("endpoint", call.Endpoint).Msg("Transport failure")
		return nil, fmt.Errorf("[dispatch Send] %s %s: %w: %w", call.Method, call.Endpoint, apperrors.ErrNetworkFailure, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("[dispatch Send] read %s body: %w: %w", call.Endpoint, apperrors.ErrNetworkFailure, err)
	}

	log.Debug().
		Str("request_id", call.ID).
		Str("method", call.Method).
		Str("endpoint", call.Endpoint).
		Int("status", httpResp.StatusCode).
		Bool("retried", call.Retried()).
		Dur("elapsed", time.Since(start)).
		Msg("Call completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Call:       call,
	}, nil
}

func (d *Dispatcher) newRequest(ctx context.Context, call *Call) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(call.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("[dispatch newRequest] invalid endpoint %q: %w", call.Endpoint, err)
	}
	target := d.baseURL.ResolveReference(ref)

	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[dispatch newRequest] %w", err)
	}

	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if call.ContentType != "" {
		req.Header.Set("Content-Type", call.ContentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", ContentTypeJSON)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if call.ID != "" {
		req.Header.Set(headerRequestID, call.ID)
	}
	return req, nil
}
