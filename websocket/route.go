package websocket

import (
	"context"
	"fmt"

	"golang.org/x/net/http/httpguts"

	"github.com/searchktools/meridian/server"
)

// ClientIDFunc derives a client ID for a newly upgraded connection,
// typically from a path parameter or query string.
type ClientIDFunc func(req *server.Request) string

// RouteHandler returns a server.Handler that upgrades matching
// requests into hub-managed WebSocket connections. Register it on a
// router.Route the same way as any other handler: the upgrade and
// ordinary-request code paths share the same decorator chain.
func RouteHandler(hub *Hub, clientID ClientIDFunc) server.Handler {
	return func(ctx context.Context, req *server.Request) (*server.Response, error) {
		key := req.Headers.Get("Sec-WebSocket-Key")
		if key == "" {
			return &server.Response{Status: 400, Body: []byte("missing Sec-WebSocket-Key")}, nil
		}
		if !httpguts.HeaderValuesContainsToken(req.Headers["Upgrade"], "websocket") {
			return &server.Response{Status: 400, Body: []byte("not a websocket upgrade request")}, nil
		}
		if !httpguts.HeaderValuesContainsToken(req.Headers["Connection"], "Upgrade") {
			return &server.Response{Status: 400, Body: []byte("missing Connection: Upgrade")}, nil
		}

		conn, rw, err := req.Hijack()
		if err != nil {
			return nil, fmt.Errorf("websocket: hijack failed: %w", err)
		}

		wsConn, err := UpgradeHijacked(conn, rw, key)
		if err != nil {
			conn.Close()
			return &server.Response{Hijacked: true}, nil
		}

		id := clientID(req)
		client := newClient(id, wsConn)
		if err := hub.registerClient(client); err != nil {
			wsConn.Close()
		}

		return &server.Response{Hijacked: true}, nil
	}
}
