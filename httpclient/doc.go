// Package httpclient is the JSON/multipart HTTP transport shared by the
// sidecar clients (transcription, diarization, LLM).
//
// A Client resolves paths against a base URL, applies default headers and
// auth, and optionally wraps every call in retry and a circuit breaker:
//
//	c, err := httpclient.New(httpclient.Config{
//	    BaseURL:        "http://localhost:8001",
//	    Timeout:        5 * time.Minute,
//	    Retry:          httpclient.DefaultRetryConfig(),
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("whisper"),
//	})
//
//	out, err := httpclient.Post[result](c, ctx, "/transcribe", body)
//
// Non-2xx responses come back as *Error, classified by status code so
// callers and the retry policy can tell transient failures apart.
package httpclient
