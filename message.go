package xplorer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Status is the outcome of dispatching a Request. It is deliberately a
// small, closed set (unlike raw HTTP status codes) because the core only
// ever needs to distinguish a client mistake from a handler failure from
// success.
type Status int

// The only statuses a Response can carry.
const (
	StatusOK            Status = 200
	StatusBadRequest    Status = 400
	StatusNotFound      Status = 404
	StatusInternalError Status = 500
)

// String renders the Status the way it is written on the wire and in logs.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "BadRequest"
	case StatusNotFound:
		return "NotFound"
	case StatusInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// statusFromWire parses a status code received from a peer. Unknown values
// are treated as InternalError: a client must never crash on an
// unrecognized status from a future server version.
func statusFromWire(code int) Status {
	switch Status(code) {
	case StatusOK, StatusBadRequest, StatusNotFound, StatusInternalError:
		return Status(code)
	default:
		return StatusInternalError
	}
}

// ContentType is the enumerated set of MIME families a Response body can
// carry. It is a string type, not an int, because handlers read better when
// they write `xplorer.ContentTypeJSON` and the wire value is the same
// string.
type ContentType string

// The enumerated content types.
const (
	ContentTypeJSON   ContentType = "application/json"
	ContentTypeHTML   ContentType = "text/html"
	ContentTypeText   ContentType = "text/plain"
	ContentTypePNG    ContentType = "image/png"
	ContentTypeJPEG   ContentType = "image/jpeg"
	ContentTypeBinary ContentType = "application/octet-stream"
)

// contentTypeFromWire maps a MIME string received from a peer onto the
// closed ContentType set. Anything unrecognized becomes binary, the same
// "when in doubt, don't interpret" rule the Status side of the wire
// contract uses for unknown statuses.
func contentTypeFromWire(mime string) ContentType {
	switch ContentType(mime) {
	case ContentTypeJSON, ContentTypeHTML, ContentTypeText, ContentTypePNG,
		ContentTypeJPEG, ContentTypeBinary:
		return ContentType(mime)
	default:
		return ContentTypeBinary
	}
}

// Request is an inbound, transport-agnostic call into the router. Once
// constructed, a Request is never mutated in place; dispatch derives new
// Request values (e.g. when stripping a mount prefix) rather than editing
// one.
type Request struct {
	// Path is non-empty and always begins with "/".
	Path string

	// QueryParams holds string query parameters, decoded from either
	// transport's wire form.
	QueryParams map[string]string

	// Body is the optional request payload. Nil means "no body", as
	// opposed to an empty-but-present slice.
	Body []byte

	// Metadata holds transport-attached key/value pairs (HTTP headers,
	// or the P2P envelope's "metadata" object).
	Metadata map[string]string
}

// NewRequest returns a Request for path with empty, non-nil maps for
// QueryParams and Metadata, so handlers never need a nil check before
// indexing into them.
func NewRequest(path string) *Request {
	return &Request{
		Path:        path,
		QueryParams: map[string]string{},
		Metadata:    map[string]string{},
	}
}

// Query returns the value of key, or "" if it is not present.
func (r *Request) Query(key string) string {
	if r.QueryParams == nil {
		return ""
	}
	return r.QueryParams[key]
}

// withPath returns a shallow copy of r with Path replaced. QueryParams,
// Body, and Metadata are shared (they are never mutated after
// construction, so sharing is safe and avoids a copy per mount hop).
func (r *Request) withPath(path string) *Request {
	n := *r
	n.Path = path
	return &n
}

// Response is the single, bounded result of dispatching a Request.
// Responses are immutable once constructed.
type Response struct {
	Status      Status
	ContentType ContentType
	Body        []byte
}

// JSONResponse marshals v to JSON and wraps it as an application/json
// Response with the given status. A marshal failure collapses to an
// InternalError response rather than panicking, since handlers call this
// as their last step before returning.
func JSONResponse(status Status, v interface{}) *Response {
	b, err := json.Marshal(v)
	if err != nil {
		return ErrorResponse(StatusInternalError, err.Error())
	}
	return &Response{Status: status, ContentType: ContentTypeJSON, Body: b}
}

// MsgpackResponse marshals v with msgpack and wraps it as a binary
// Response. The bundled /hierarchy/views endpoint, whose deep walks return
// a large, repetitive payload, exposes this as an opt-in
// `encoding=msgpack` query choice, since msgpack's binary framing is
// markedly smaller than the equivalent JSON for those shapes; JSON remains
// the canonical encoding everywhere else.
func MsgpackResponse(status Status, v interface{}) *Response {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return ErrorResponse(StatusInternalError, err.Error())
	}
	return &Response{Status: status, ContentType: ContentTypeBinary, Body: b}
}

// ErrorResponse builds the well-formed `{"error":"..."}` body every
// client-visible failure is reported through.
func ErrorResponse(status Status, message string) *Response {
	b, _ := json.Marshal(map[string]string{"error": message})
	return &Response{Status: status, ContentType: ContentTypeJSON, Body: b}
}

// NotFoundResponse is the canonical "no such endpoint" response used by the
// default not-found handler and by transports that reject a request before
// it ever reaches a Router.
func NotFoundResponse() *Response {
	return ErrorResponse(StatusNotFound, "Endpoint not found")
}

// wireRequest is the JSON shape of a Request on the P2P wire. Fields beyond
// these are ignored by encoding/json by default, so a newer peer can add
// envelope fields without breaking an older one.
type wireRequest struct {
	Path     string            `json:"path"`
	Query    map[string]string `json:"query,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Body     string            `json:"body,omitempty"`
}

// wireResponse is the JSON shape of a Response on the P2P wire.
type wireResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// encodeWireRequest renders r as the JSON body of a P2P frame. The body is
// always base64-encoded, regardless of its semantic content type, so the
// JSON framing stays binary-safe no matter what a handler returns.
func encodeWireRequest(r *Request) ([]byte, error) {
	wr := wireRequest{
		Path:     r.Path,
		Query:    r.QueryParams,
		Metadata: r.Metadata,
	}
	if r.Body != nil {
		wr.Body = base64.StdEncoding.EncodeToString(r.Body)
	}
	return json.Marshal(wr)
}

// decodeWireRequest parses a P2P frame's JSON payload back into a Request.
// A missing "path" field is treated as a parse failure by the caller, so
// this only reports the structural JSON error here.
func decodeWireRequest(data []byte) (*Request, error) {
	var wr wireRequest
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("%w: request: %v", ErrMalformedFrame, err)
	}

	req := NewRequest(wr.Path)
	if wr.Query != nil {
		req.QueryParams = wr.Query
	}
	if wr.Metadata != nil {
		req.Metadata = wr.Metadata
	}
	if wr.Body != "" {
		body, err := base64.StdEncoding.DecodeString(wr.Body)
		if err != nil {
			return nil, fmt.Errorf("xplorer: malformed request body: %w", err)
		}
		req.Body = body
	}

	return req, nil
}

// encodeWireResponse renders resp as the JSON body of a P2P frame.
func encodeWireResponse(resp *Response) ([]byte, error) {
	return json.Marshal(wireResponse{
		Status:      int(resp.Status),
		ContentType: string(resp.ContentType),
		Body:        base64.StdEncoding.EncodeToString(resp.Body),
	})
}

// decodeWireResponse parses a P2P frame's JSON payload back into a
// Response, applying the unknown-status/unknown-content-type tolerance
// rules above.
func decodeWireResponse(data []byte) (*Response, error) {
	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("%w: response: %v", ErrMalformedFrame, err)
	}

	var body []byte
	if wr.Body != "" {
		b, err := base64.StdEncoding.DecodeString(wr.Body)
		if err != nil {
			return nil, fmt.Errorf("xplorer: malformed response body: %w", err)
		}
		body = b
	}

	return &Response{
		Status:      statusFromWire(wr.Status),
		ContentType: contentTypeFromWire(wr.ContentType),
		Body:        body,
	}, nil
}
