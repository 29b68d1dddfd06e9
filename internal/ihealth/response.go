package ihealth

import "fmt"

// Kind tags the shape of a normalized response.
type Kind int

const (
	// KindJSON is a parsed JSON document.
	KindJSON Kind = iota + 1
	// KindXML is raw XML text.
	KindXML
	// KindBinary is a binary payload reported by size only.
	KindBinary
	// KindText is any other textual payload.
	KindText
	// KindPending is HTTP 202: the remote side queued the work.
	KindPending
	// KindError carries one of the error types in this package.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindJSON:
		return "json-object"
	case KindXML:
		return "xml-text"
	case KindBinary:
		return "binary-summary"
	case KindText:
		return "opaque-text"
	case KindPending:
		return "accepted-pending"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fixed texts for the accepted-pending and binary-summary shapes.
const (
	PendingStatus  = "processing"
	PendingMessage = "Request accepted, processing in progress. Retry in 10 seconds."
	BinaryMessage  = "Binary content retrieved successfully"
)

// Response is the normalized result of one API call. Exactly one payload field
// is meaningful, selected by Kind. A Response is classified once and never
// re-classified downstream.
type Response struct {
	Kind Kind

	// JSON holds the validated document for KindJSON.
	JSON []byte
	// Text holds the body for KindXML and KindText.
	Text string
	// Size holds the byte length for KindBinary. The bytes themselves are discarded.
	Size int64
	// Err holds the failure for KindError.
	Err error
}

// JSONResponse builds a KindJSON response.
func JSONResponse(doc []byte) *Response {
	return &Response{Kind: KindJSON, JSON: doc}
}

// XMLResponse builds a KindXML response.
func XMLResponse(text string) *Response {
	return &Response{Kind: KindXML, Text: text}
}

// BinaryResponse builds a KindBinary response.
func BinaryResponse(size int64) *Response {
	return &Response{Kind: KindBinary, Size: size}
}

// TextResponse builds a KindText response.
func TextResponse(text string) *Response {
	return &Response{Kind: KindText, Text: text}
}

// PendingResponse builds a KindPending response.
func PendingResponse() *Response {
	return &Response{Kind: KindPending}
}

// ErrorResponse builds a KindError response.
func ErrorResponse(err error) *Response {
	return &Response{Kind: KindError, Err: err}
}

// IsError reports whether the response carries an error.
func (r *Response) IsError() bool {
	return r.Kind == KindError
}
