package authhttp

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/jonwraymond/toolgate/auth"
)

// MetadataPath is the well-known path of the protected resource metadata.
const MetadataPath = "/.well-known/oauth-protected-resource"

// ResourceMetadata is the OAuth 2.0 Protected Resource Metadata document
// (RFC 9728).
type ResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ResourceName           string   `json:"resource_name,omitempty"`
}

// NewResourceMetadata describes resource using the issuers and required
// scopes of stack.
func NewResourceMetadata(resource, name string, stack *auth.Stack) ResourceMetadata {
	meta := ResourceMetadata{
		Resource:               resource,
		BearerMethodsSupported: []string{"header"},
		ResourceName:           name,
	}
	if stack == nil {
		return meta
	}
	for _, c := range stack.Keyring.Caches() {
		meta.AuthorizationServers = append(meta.AuthorizationServers, c.Issuer())
	}
	if stack.Authorizer != nil {
		meta.ScopesSupported = stack.Authorizer.Scopes()
	}
	return meta
}

// MetadataHandler serves meta as JSON.
func MetadataHandler(meta ResourceMetadata) http.HandlerFunc {
	meta.AuthorizationServers = slices.Clone(meta.AuthorizationServers)
	meta.ScopesSupported = slices.Clone(meta.ScopesSupported)
	body, _ := json.Marshal(meta)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// RegisterMetadata registers the metadata document at MetadataPath.
func RegisterMetadata(mux *http.ServeMux, meta ResourceMetadata) {
	mux.HandleFunc("GET "+MetadataPath, MetadataHandler(meta))
}
