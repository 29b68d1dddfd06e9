package ihealth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// NoDetails is printed when an error carries no response body.
const NoDetails = "No additional details"

// Format renders a Response as the text returned to the tool host.
//
// Errors render as "Error: <message>" followed by "Details: <details>", except
// local validation failures which render as the single "Error: <message>" line.
// Every other shape renders as JSON indented with two spaces.
func Format(r *Response) string {
	if r == nil {
		return FormatError(errors.New("empty response"))
	}

	switch r.Kind {
	case KindError:
		return FormatError(r.Err)
	case KindJSON:
		var buf bytes.Buffer
		if err := json.Indent(&buf, r.JSON, "", "  "); err != nil {
			return string(r.JSON)
		}
		return buf.String()
	case KindXML:
		return formatStructured(struct {
			XMLContent string `json:"xml_content"`
		}{r.Text})
	case KindBinary:
		return formatStructured(struct {
			BinarySize int64  `json:"binary_size"`
			Message    string `json:"message"`
		}{r.Size, BinaryMessage})
	case KindText:
		return formatStructured(struct {
			Content string `json:"content"`
		}{r.Text})
	case KindPending:
		return formatStructured(struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}{PendingStatus, PendingMessage})
	default:
		return fmt.Sprintf("%v", *r)
	}
}

// FormatError renders an error in the two-line error format.
func FormatError(err error) string {
	if err == nil {
		err = errors.New("unknown error")
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return "Error: " + validationErr.Error()
	}

	details := NoDetails
	var d detailer
	if errors.As(err, &d) && d.Details() != "" {
		details = d.Details()
	}
	return "Error: " + err.Error() + "\nDetails: " + details
}

// formatStructured encodes v as indented JSON without HTML escaping.
func formatStructured(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
