// Package rawloop is the optional fast path for cleartext HTTP/1.1:
// an epoll/kqueue accept loop that parses requests off the wire
// without going through net/http's own connection handling, then
// dispatches into the same router.Router + pipeline.Handler chain a
// *server.Server would, by driving server.Server.ServeHTTP directly
// with a minimal http.ResponseWriter. Grounded on the teacher's
// core/engine.go and core/http/{parser,request}.go.
//
// rawloop trades net/http's connection-per-goroutine model for one
// poller goroutine plus a worker pool, at the cost of only supporting
// HTTP/1.1 cleartext: TLS and HTTP/2 still go through server.Server's
// ordinary net/http.Server.
package rawloop

import "sync"

// rawRequest is a pooled, mostly zero-allocation parsed request line
// plus headers. Predefined fields avoid a map lookup for the handful
// of headers nearly every request carries; anything else lands in
// extraHeaders.
type rawRequest struct {
	Method string
	Path   string
	Proto  string

	ContentType   string
	ContentLength string
	UserAgent     string
	Accept        string
	Host          string
	Connection    string

	ExtraHeaders map[string]string
	Query        map[string]string
	Body         []byte
}

var rawRequestPool = sync.Pool{
	New: func() any {
		return &rawRequest{Body: make([]byte, 0, 1024)}
	},
}

func acquireRawRequest() *rawRequest {
	return rawRequestPool.Get().(*rawRequest)
}

func releaseRawRequest(r *rawRequest) {
	r.reset()
	rawRequestPool.Put(r)
}

func (r *rawRequest) reset() {
	r.Method = ""
	r.Path = ""
	r.Proto = ""
	r.ContentType = ""
	r.ContentLength = ""
	r.UserAgent = ""
	r.Accept = ""
	r.Host = ""
	r.Connection = ""

	for k := range r.ExtraHeaders {
		delete(r.ExtraHeaders, k)
	}
	for k := range r.Query {
		delete(r.Query, k)
	}
	r.Body = r.Body[:0]
}

// setHeader records key:value, preferring the predefined fields over
// the extraHeaders map.
func (r *rawRequest) setHeader(key, value string) {
	switch key {
	case "Content-Type":
		r.ContentType = value
	case "Content-Length":
		r.ContentLength = value
	case "User-Agent":
		r.UserAgent = value
	case "Accept":
		r.Accept = value
	case "Host":
		r.Host = value
	case "Connection":
		r.Connection = value
	default:
		if r.ExtraHeaders == nil {
			r.ExtraHeaders = make(map[string]string)
		}
		r.ExtraHeaders[key] = value
	}
}
