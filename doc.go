/*
Package meridian is an async HTTP/1.1 + HTTP/2 client/server runtime:
a connection pool and session engine on the client side, an endpoint
group with health checking in front of it, and a request router with a
decorator pipeline on the server side.

# Client

client.Client composes a per-(protocol, PoolKey) connection pool
(client/pool), a session state machine per connection (client/session),
and a small per-endpoint event-loop scheduler (client/eventloop) behind
a single Execute call. healthcheck.Group filters a delegate
endpoint.Group down to the endpoints currently passing their probe,
publishing the result as another endpoint.Group the pool's dialer
resolves against.

# Server

server.Server dispatches every accepted request through a composite
router.Router (radix/linear/regex matchers scored by specificity) and
the pipeline package's decorator chain, the same composition pattern
used on the client side for per-call decorators like timeouts and
fallbacks. server/rawloop offers an optional epoll/kqueue-driven
listener for the cleartext HTTP/1.1 fast path, bypassing net/http's own
connection handling while still dispatching through the same router
and pipeline.

websocket and sse adapt RFC 6455 and Server-Sent-Events upgrades onto
ordinary router.Route handlers via Request.Hijack, so a streaming
endpoint composes with the same decorator chain as any other route.

# Quick start

	package main

	import (
		"context"

		"github.com/searchktools/meridian/app"
		"github.com/searchktools/meridian/config"
		"github.com/searchktools/meridian/router"
		"github.com/searchktools/meridian/server"
	)

	func main() {
		application := app.New(config.New())

		application.Handle(router.NewExact("/hello"), []string{"GET"}, nil, nil,
			func(ctx context.Context, req *server.Request) (*server.Response, error) {
				return &server.Response{Status: 200, Body: []byte("Hello, World!")}, nil
			})

		application.Run()
	}

# Modules

  - endpoint: endpoint model, static/dynamic endpoint groups
  - stream: demand-driven byte-stream/backpressure primitive
  - client, client/pool, client/session, client/eventloop: connection
    pool, session state machine, event-loop scheduler
  - healthcheck: endpoint group health checking
  - router: path matching and route scoring
  - pipeline, server: decorator chain and HTTP/1.1+HTTP/2 dispatch
  - server/rawloop: optional epoll/kqueue fast-path listener
  - websocket, sse: protocol upgrades off the router
  - poller: epoll/kqueue readiness multiplexing used by server/rawloop
  - pools: buffer and worker pooling, GC tuning
  - observability: per-route latency/error monitoring
  - codec: content previewers for the client's logging hooks
  - errs: the module's error taxonomy
  - config, logctx: configuration and the logging contract
  - app: composition root wiring router+server+observability together

See SPEC_FULL.md and DESIGN.md in this repository for the full
requirements and the grounding behind each package.
*/
package meridian
