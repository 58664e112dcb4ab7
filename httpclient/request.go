package httpclient

// Request is one call to a sidecar.
type Request struct {
	Method string
	// Path is joined onto Config.BaseURL; absolute URLs pass through.
	Path    string
	Query   map[string]string
	Headers map[string]string
	// Body is sent as-is for io.Reader, []byte and string, as multipart
	// form data for *MultipartBody, and as JSON otherwise.
	Body any
	// Auth replaces Config.Auth when set.
	Auth *AuthConfig
}

type Response struct {
	StatusCode int
	// Headers keeps the first value of each header.
	Headers map[string]string
	Body    []byte
}
