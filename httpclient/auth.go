package httpclient

import "net/http"

// AuthConfig is a single credential header sent with each request.
type AuthConfig struct {
	Header string
	Value  string
}

// BearerAuth sends token as an Authorization bearer. An empty token
// yields nil, which sends nothing.
func BearerAuth(token string) *AuthConfig {
	if token == "" {
		return nil
	}
	return &AuthConfig{Header: "Authorization", Value: "Bearer " + token}
}

// APIKeyAuth sends key in header, X-API-Key when header is empty.
func APIKeyAuth(key, header string) *AuthConfig {
	if key == "" {
		return nil
	}
	if header == "" {
		header = "X-API-Key"
	}
	return &AuthConfig{Header: header, Value: key}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil || a.Header == "" {
		return
	}
	req.Header.Set(a.Header, a.Value)
}
