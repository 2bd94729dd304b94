package sse

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/searchktools/meridian/logctx"
	"github.com/searchktools/meridian/server"
)

// ClientIDFunc derives a subscriber ID for a newly opened stream,
// typically from a path parameter or query string.
type ClientIDFunc func(req *server.Request) string

// RouteHandler returns a server.Handler that hijacks matching requests
// and streams stream's events to them as text/event-stream until the
// client disconnects or ctx is cancelled.
func RouteHandler(stream *Stream, clientID ClientIDFunc, log logctx.Logger) server.Handler {
	if log == nil {
		log = logctx.Noop{}
	}

	return func(ctx context.Context, req *server.Request) (*server.Response, error) {
		conn, rw, err := req.Hijack()
		if err != nil {
			return nil, fmt.Errorf("sse: hijack failed: %w", err)
		}

		id := clientID(req)
		client, err := stream.Subscribe(id)
		if err != nil {
			writeRejection(rw, err)
			conn.Close()
			return &server.Response{Hijacked: true}, nil
		}

		if err := writeHeaders(rw); err != nil {
			stream.Unsubscribe(client)
			conn.Close()
			return &server.Response{Hijacked: true}, nil
		}

		go serveClient(ctx, conn, rw, stream, client, log)
		return &server.Response{Hijacked: true}, nil
	}
}

func writeRejection(rw *bufio.ReadWriter, cause error) {
	fmt.Fprintf(rw, "HTTP/1.1 503 Service Unavailable\r\nContent-Length: %d\r\n\r\n%s", len(cause.Error()), cause.Error())
	rw.Flush()
}

func writeHeaders(rw *bufio.ReadWriter) error {
	_, err := rw.WriteString("HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/event-stream\r\n" +
		"Cache-Control: no-cache\r\n" +
		"Connection: keep-alive\r\n" +
		"X-Accel-Buffering: no\r\n\r\n")
	if err != nil {
		return err
	}
	return rw.Flush()
}

func serveClient(ctx context.Context, conn net.Conn, rw *bufio.ReadWriter, stream *Stream, client *Client, log logctx.Logger) {
	defer func() {
		stream.Unsubscribe(client)
		conn.Close()
	}()

	connect := &Event{Event: "connected", Data: fmt.Sprintf("client_id:%s", client.ID)}
	if _, err := rw.Write(connect.Format()); err != nil || rw.Flush() != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.closeCh:
			return
		case event, ok := <-client.Channel:
			if !ok {
				return
			}
			if _, err := rw.Write(event.Format()); err != nil {
				log.Debugf("sse: write to %s failed: %v", client.ID, err)
				return
			}
			if err := rw.Flush(); err != nil {
				return
			}
		}
	}
}
