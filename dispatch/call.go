package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const (
	ContentTypeJSON = "application/json"

	headerRequestID = "X-Request-ID"
)

// Call is one logical request to the remote service. The body is kept as
// bytes so the same call can be sent again after a credential refresh.
type Call struct {
	ID          string // sent as X-Request-ID
	Method      string
	Endpoint    string // relative to the dispatcher base URL
	Body        []byte
	ContentType string
	Header      http.Header

	// Public marks endpoints that are unauthenticated by design (login,
	// signup, token refresh). Authorization failures on them are final.
	Public bool

	retried atomic.Bool

	mu         sync.Mutex
	sentAccess string
}

// NewCall creates a call with a raw body.
func NewCall(method, endpoint string, body []byte, contentType string) *Call {
	return &Call{
		ID:          uuid.NewString(),
		Method:      method,
		Endpoint:    endpoint,
		Body:        body,
		ContentType: contentType,
		Header:      make(http.Header),
	}
}

// NewJSONCall creates a call whose body is payload encoded as JSON. A nil
// payload sends no body.
func NewJSONCall(method, endpoint string, payload any) (*Call, error) {
	if payload == nil {
		return NewCall(method, endpoint, nil, ""), nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("[dispatch NewJSONCall] marshal %s payload: %w", endpoint, err)
	}
	return NewCall(method, endpoint, body, ContentTypeJSON), nil
}

// NewMultipartCall creates a POST carrying one file part.
func NewMultipartCall(endpoint, field, filename string, r io.Reader) (*Call, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, fmt.Errorf("[dispatch NewMultipartCall] create part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("[dispatch NewMultipartCall] copy %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("[dispatch NewMultipartCall] close writer: %w", err)
	}
	return NewCall(http.MethodPost, endpoint, buf.Bytes(), w.FormDataContentType()), nil
}

// AsPublic marks the call as not needing credentials and returns it.
func (c *Call) AsPublic() *Call {
	c.Public = true
	return c
}

// MarkRetried flips the retried marker. It returns false when the call was
// already retried, in which case it must not be refreshed again.
func (c *Call) MarkRetried() bool {
	return c.retried.CompareAndSwap(false, true)
}

// Retried reports whether the call has been through a refresh-and-resend.
func (c *Call) Retried() bool {
	return c.retried.Load()
}

// SetSentAccess records the access credential attached to the latest send.
func (c *Call) SetSentAccess(access string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentAccess = access
}

// SentAccess returns the access credential attached to the latest send.
func (c *Call) SentAccess() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sentAccess
}

// Response is a completed exchange. The body has been fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Call       *Call
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("[dispatch Decode] %s: empty body", r.Call.Endpoint)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[dispatch Decode] %s: %w", r.Call.Endpoint, err)
	}
	return nil
}
