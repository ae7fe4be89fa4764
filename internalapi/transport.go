// Package internalapi carries internal service tokens between the session
// layer and downstream storefront APIs.
package internalapi

import (
	"errors"
	"net/http"
)

// TokenFunc mints the service token for an outgoing request
type TokenFunc func(r *http.Request) (string, error)

// Transport attaches a freshly minted service token to every request
type Transport struct {
	Base  http.RoundTripper // Defaults to http.DefaultTransport
	Token TokenFunc
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token == nil {
		closeBody(req)
		return nil, errors.New("[internalapi.Transport] no token func")
	}
	raw, err := t.Token(req)
	if err != nil {
		closeBody(req)
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+raw)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
