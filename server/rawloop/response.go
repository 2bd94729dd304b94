package rawloop

import (
	"net/http"
	"strconv"

	"github.com/searchktools/meridian/pools"
)

// rawResponseWriter buffers a handler's response into a pooled byte
// slice, then renders it into a complete HTTP/1.1 wire frame. It
// satisfies http.ResponseWriter so server.Server (or any other
// http.Handler) can be driven directly, without net/http's own
// connection and response-writer machinery.
type rawResponseWriter struct {
	pool        *pools.BufferPool
	header      http.Header
	status      int
	wroteHeader bool
	body        *[]byte
}

func newRawResponseWriter(pool *pools.BufferPool) *rawResponseWriter {
	return &rawResponseWriter{
		pool:   pool,
		header: make(http.Header),
		body:   pool.Get(pools.SmallBufferSize),
	}
}

func (w *rawResponseWriter) Header() http.Header { return w.header }

func (w *rawResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *rawResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	*w.body = append(*w.body, p...)
	return len(p), nil
}

// frame renders the status line, headers, and body into one complete
// HTTP/1.1 response. Call release afterward to return the body buffer
// to the pool.
func (w *rawResponseWriter) frame() []byte {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.header.Get("Content-Length") == "" {
		w.header.Set("Content-Length", strconv.Itoa(len(*w.body)))
	}

	out := make([]byte, 0, len(*w.body)+256)
	out = append(out, "HTTP/1.1 "...)
	out = strconv.AppendInt(out, int64(w.status), 10)
	out = append(out, ' ')
	out = append(out, http.StatusText(w.status)...)
	out = append(out, "\r\n"...)

	for k, vs := range w.header {
		for _, v := range vs {
			out = append(out, k...)
			out = append(out, ": "...)
			out = append(out, v...)
			out = append(out, "\r\n"...)
		}
	}
	out = append(out, "\r\n"...)
	out = append(out, *w.body...)
	return out
}

func (w *rawResponseWriter) release() {
	w.pool.Put(w.body)
}
