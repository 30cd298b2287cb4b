package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Size limits for request bodies. The API only ever receives small JSON
// payloads and webhook events.
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize is used when no explicit limit is given.
	DefaultMaxBodySize = 10 * MB

	// SmallMaxBodySize fits JSON request bodies with room to spare.
	SmallMaxBodySize = 1 * MB
)

// MaxBodySize rejects requests whose body exceeds the given limit with
// 413, and caps reads on the body for requests without a declared
// Content-Length. With no argument the limit is DefaultMaxBodySize.
func MaxBodySize(maxBytes ...int64) func(http.Handler) http.Handler {
	limit := int64(DefaultMaxBodySize)
	if len(maxBytes) > 0 {
		limit = maxBytes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > limit {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultTimeout is the request timeout applied when Timeout is used
// without an argument.
const DefaultTimeout = 30 * time.Second

// Timeout bounds request processing. A handler that has not finished
// when the deadline passes gets its context canceled and the client
// receives 503, unless the handler already started writing.
func Timeout(timeout ...time.Duration) func(http.Handler) http.Handler {
	d := DefaultTimeout
	if len(timeout) > 0 {
		d = timeout[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			done := make(chan struct{})
			dw := &deadlineWriter{ResponseWriter: w, done: done}

			go func() {
				defer close(done)
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				dw.mu.Lock()
				defer dw.mu.Unlock()
				if !dw.wroteHeader {
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte("Request timeout"))
				}
				// A response already in flight arrives truncated.
			}
		})
	}
}

// deadlineWriter suppresses writes that race a fired timeout so the 503
// status is not clobbered.
type deadlineWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
	done        chan struct{}
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.wroteHeader {
		return
	}

	select {
	case <-dw.done:
	default:
		dw.wroteHeader = true
		dw.ResponseWriter.WriteHeader(code)
	}
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	select {
	case <-dw.done:
		return 0, context.DeadlineExceeded
	default:
		if !dw.wroteHeader {
			dw.wroteHeader = true
			dw.ResponseWriter.WriteHeader(http.StatusOK)
		}
		return dw.ResponseWriter.Write(b)
	}
}
