package authhttp

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolgate/observe"
)

// RequestIDHeader carries the request id.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request an id, taken from X-Request-ID when it
// is a valid UUID and generated otherwise. The id is echoed in the
// response and attached to log fields of the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := observe.ContextWithFields(r.Context(), observe.F("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
