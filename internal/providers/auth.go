package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Authenticator handles authentication for a provider.
type Authenticator interface {
	// Authenticate prepares authentication for a request
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext holds authentication information for a request
type AuthContext interface {
	// ApplyToRequest applies authentication to an HTTP request
	ApplyToRequest(ctx context.Context, req any) error
}

// SimpleAPIKeyAuth sends a static API key in a header
type SimpleAPIKeyAuth struct {
	apiKey string
	header string
	prefix string
}

// NewSimpleAPIKeyAuth creates a header-based API key authenticator.
// An empty key sends no header, which suits public catalog endpoints.
func NewSimpleAPIKeyAuth(apiKey, header, prefix string) *SimpleAPIKeyAuth {
	return &SimpleAPIKeyAuth{apiKey: apiKey, header: header, prefix: prefix}
}

func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	return a, nil
}

func (a *SimpleAPIKeyAuth) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("unsupported request type %T", req)
	}
	if a.apiKey != "" {
		httpReq.Header.Set(a.header, a.prefix+a.apiKey)
	}
	return nil
}
