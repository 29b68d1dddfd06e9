// Package ihealth is the HTTP gateway to the F5 iHealth qkview-analyzer API.
//
// A Client turns one Request into one authenticated HTTP call and classifies
// the outcome into a Response tagged with one of six kinds: json-object,
// xml-text, binary-summary, opaque-text, accepted-pending or error. HTTP-level
// failures, transport failures and authentication failures all become
// KindError responses; nothing is retried. Format renders any Response as
// the text handed back to the tool host.
package ihealth
