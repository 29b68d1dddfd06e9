package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v3"
)

// sessionHeader carries the streamable HTTP session ID.
const sessionHeader = "Mcp-Session-Id"

// internalErrorBody is a JSON-RPC internal error without a request ID.
const internalErrorBody = `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`

// Recovery turns a panic in the MCP handler into a JSON-RPC internal error.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "mcp handler panicked",
					"panic", rec,
					"method", r.Method,
					"session_id", r.Header.Get(sessionHeader),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(internalErrorBody))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs MCP requests. The server-to-client event stream opened with
// GET stays up for the whole session and is not logged.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema: httplog.SchemaECS.Concise(true),
		Skip:   isEventStream,

		// Bodies carry tool arguments and results
		LogRequestHeaders:  []string{"Content-Type", sessionHeader, "Mcp-Protocol-Version"},
		LogResponseHeaders: []string{sessionHeader},
		LogRequestBody:     nil,
		LogResponseBody:    nil,

		RecoverPanics: false,
	})
}

func isEventStream(r *http.Request, _ int) bool {
	return r.Method == http.MethodGet
}
