package rawloop

import (
	"bytes"
	"errors"
)

// ErrIncomplete signals that data does not yet contain a full request;
// the caller should keep reading off the connection.
var ErrIncomplete = errors.New("rawloop: incomplete request")

// ErrMalformed signals data will never parse as a valid request no
// matter how much more arrives.
var ErrMalformed = errors.New("rawloop: malformed request")

// parseRequest parses an HTTP/1.1 request line, headers, and body out
// of data, copying every field into the returned rawRequest rather
// than aliasing data: dispatch runs on a worker-pool goroutine while
// the poller goroutine may already be reusing the connection's read
// buffer for its next read, so an aliased string would race. Returns
// ErrIncomplete if the terminating blank line hasn't arrived yet.
func parseRequest(data []byte) (*rawRequest, error) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return nil, ErrIncomplete
	}

	line := data[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	sp1 := bytes.IndexByte(line, ' ')
	if sp1 == -1 {
		return nil, ErrMalformed
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 == -1 {
		return nil, ErrMalformed
	}
	sp2 += sp1 + 1

	req := acquireRawRequest()
	req.Method = string(line[:sp1])
	path := string(line[sp1+1 : sp2])
	req.Proto = string(line[sp2+1:])

	if idx := bytes.IndexByte([]byte(path), '?'); idx != -1 {
		path = parseQuery(req, path, idx)
	}
	req.Path = path

	rest := data[lineEnd+1:]
	headerEnd := bytes.Index(rest, []byte("\r\n\r\n"))
	sep := 4
	switch {
	case bytes.HasPrefix(rest, []byte("\r\n")):
		// No headers: the blank line follows the request line directly.
		headerEnd, sep = 0, 2
	case bytes.HasPrefix(rest, []byte("\n")):
		headerEnd, sep = 0, 1
	case headerEnd == -1:
		headerEnd = bytes.Index(rest, []byte("\n\n"))
		sep = 2
		if headerEnd == -1 {
			releaseRawRequest(req)
			return nil, ErrIncomplete
		}
	}

	parseHeaders(req, rest[:headerEnd])
	body := rest[headerEnd+sep:]
	if len(body) > 0 {
		req.Body = append(req.Body[:0], body...)
	}

	return req, nil
}

func parseHeaders(req *rawRequest, data []byte) {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := data[:lineEnd]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) == 0 {
			break
		}

		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			key := string(bytes.TrimSpace(line[:colon]))
			value := string(bytes.TrimSpace(line[colon+1:]))
			req.setHeader(key, value)
		}

		if lineEnd == len(data) {
			break
		}
		data = data[lineEnd+1:]
	}
}

func parseQuery(req *rawRequest, path string, idx int) string {
	queryStr := path[idx+1:]
	path = path[:idx]

	if req.Query == nil {
		req.Query = make(map[string]string)
	}

	for _, pair := range bytes.Split([]byte(queryStr), []byte("&")) {
		kv := bytes.SplitN(pair, []byte("="), 2)
		switch len(kv) {
		case 2:
			req.Query[string(kv[0])] = string(kv[1])
		case 1:
			req.Query[string(kv[0])] = ""
		}
	}

	return path
}
