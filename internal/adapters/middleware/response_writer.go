package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// FlushableResponseWriter wraps a response writer to capture the status code
// and bytes written while keeping Flush and Hijack available for streaming
// endpoints.
type FlushableResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	flusher      http.Flusher
	hijacker     http.Hijacker
}

func NewFlushableResponseWriter(w http.ResponseWriter) *FlushableResponseWriter {
	wrapper := &FlushableResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	if flusher, ok := w.(http.Flusher); ok {
		wrapper.flusher = flusher
	}
	if hijacker, ok := w.(http.Hijacker); ok {
		wrapper.hijacker = hijacker
	}

	return wrapper
}

func (f *FlushableResponseWriter) WriteHeader(code int) {
	f.statusCode = code
	f.ResponseWriter.WriteHeader(code)
}

func (f *FlushableResponseWriter) Write(b []byte) (int, error) {
	n, err := f.ResponseWriter.Write(b)
	f.bytesWritten += int64(n)

	return n, err
}

func (f *FlushableResponseWriter) Flush() {
	if f.flusher != nil {
		f.flusher.Flush()
	}
}

func (f *FlushableResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if f.hijacker != nil {
		return f.hijacker.Hijack()
	}

	return nil, nil, http.ErrNotSupported
}

func (f *FlushableResponseWriter) StatusCode() int {
	return f.statusCode
}

func (f *FlushableResponseWriter) BytesWritten() int64 {
	return f.bytesWritten
}
