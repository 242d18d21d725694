package tools

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jonwraymond/toolgate/auth"
	"github.com/jonwraymond/toolgate/observe"
)

// MaxRequestBytes bounds invocation request bodies.
const MaxRequestBytes = 64 << 10

// ListOperation is the operation name used to authorize GET /tools.
const ListOperation = "tools/list"

// Handler serves the tool HTTP surface.
type Handler struct {
	invoker *Invoker
	scopes  func(operation string) string
	logger  observe.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithScopeLookup reports the scope each tool requires in listings,
// typically (*auth.ScopeAuthorizer).RequiredScope.
func WithScopeLookup(fn func(operation string) string) HandlerOption {
	return func(h *Handler) { h.scopes = fn }
}

// WithHandlerLogger sets the logger. Default: no-op.
func WithHandlerLogger(logger observe.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler over invoker.
func NewHandler(invoker *Invoker, opts ...HandlerOption) *Handler {
	h := &Handler{
		invoker: invoker,
		scopes:  func(string) string { return "" },
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InvokeResponse is the body of a successful invocation.
type InvokeResponse struct {
	Tool       string          `json:"tool"`
	Result     json.RawMessage `json:"result"`
	Subject    string          `json:"subject,omitempty"`
	AuthMethod string          `json:"auth_method,omitempty"`
}

// ToolInfo describes a tool in listings.
type ToolInfo struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	RequiredScope string   `json:"required_scope,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

// ListResponse is the body of GET /tools.
type ListResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// Invoke handles POST /tools/{name}. The request body is the JSON
// arguments object.
func (h *Handler) Invoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if len(body) > 0 && !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "request body is not valid JSON")
			return
		}

		result, err := h.invoker.Invoke(r.Context(), name, body)
		switch {
		case errors.Is(err, ErrUnknownTool):
			writeError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, ErrInvalidArguments):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			h.logger.Error(r.Context(), "tool invocation failed", observe.F("tool", name), observe.F("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "tool invocation failed")
			return
		}

		resp := InvokeResponse{Tool: name, Result: result}
		if id := auth.IdentityFromContext(r.Context()); id != nil {
			resp.Subject = id.Subject
			resp.AuthMethod = string(id.Method)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// List handles GET /tools.
func (h *Handler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tools := h.invoker.Registry().List()
		resp := ListResponse{Tools: make([]ToolInfo, 0, len(tools))}
		for _, t := range tools {
			resp.Tools = append(resp.Tools, ToolInfo{
				Name:          t.Name,
				Description:   t.Description,
				RequiredScope: h.scopes(t.Name),
				Tags:          t.Tags,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
