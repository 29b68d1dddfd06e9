// Package tools exposes the iHealth API as named MCP tools.
//
// Every tool validates its required parameters locally, in declaration order,
// before any token or network activity. A missing parameter yields the single
// line "Error: <param> parameter is required". Everything else is delegated to
// the gateway and rendered with ihealth.Format.
package tools
