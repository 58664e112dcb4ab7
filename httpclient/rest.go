package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RequestOption adjusts a request built by Post.
type RequestOption func(*Request)

// WithQueryParam sets one query parameter.
func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = map[string]string{}
		}
		r.Query[key] = value
	}
}

// Post sends body and decodes a JSON reply into T. The body is sent as
// multipart for a *MultipartBody, verbatim for []byte, and as JSON
// otherwise. An empty reply leaves T at its zero value.
func Post[T any](c *Client, ctx context.Context, path string, body any, opts ...RequestOption) (T, error) {
	req := Request{Method: http.MethodPost, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}

	var out T
	resp, err := c.Do(ctx, req)
	if err != nil || len(resp.Body) == 0 {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, &Error{
			Kind:       KindDecode,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        fmt.Errorf("decode %s reply: %w", path, err),
		}
	}
	return out, nil
}
