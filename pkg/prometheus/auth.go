package prometheus

import (
	"net/http"
)

// newAuthTransport wraps rt with basic or bearer authentication when
// credentials are configured, and returns rt unchanged otherwise.
func newAuthTransport(username, password, token string, rt http.RoundTripper) http.RoundTripper {
	if (username == "" || password == "") && token == "" {
		return rt
	}
	return &authTransport{
		username:  username,
		password:  password,
		token:     token,
		transport: rt,
	}
}

// authTransport handles authentication for HTTP requests
type authTransport struct {
	username  string
	password  string
	token     string
	transport http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	reqCopy := req.Clone(req.Context())

	if t.token != "" {
		reqCopy.Header.Set("Authorization", "Bearer "+t.token)
	} else {
		reqCopy.SetBasicAuth(t.username, t.password)
	}

	return t.transport.RoundTrip(reqCopy)
}
