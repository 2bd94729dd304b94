package pipeline

import "context"

// FallbackFunc produces a substitute response for a request that
// failed before any response was constructed.
type FallbackFunc func(ctx context.Context, req Request, cause error) (Response, error)

// LogFunc records that a handler error occurred after a response had
// already been constructed — no fallback runs in that case, the error
// is only observable through the log.
type LogFunc func(ctx context.Context, req Request, cause error)

// WithFallback wraps inner so that an error occurring before inner
// produced any response invokes fallback instead of propagating the
// raw error. If inner returns both a non-nil response and an error
// (the handler had already started committing a response when it
// failed), the response wins and the error is only surfaced through
// logFn.
func WithFallback(inner Handler, fallback FallbackFunc, logFn LogFunc) Handler {
	return func(ctx context.Context, req Request) (Response, error) {
		resp, err := inner(ctx, req)
		if err == nil {
			return resp, nil
		}
		if resp != nil {
			if logFn != nil {
				logFn(ctx, req, err)
			}
			return resp, nil
		}
		if fallback == nil {
			return nil, err
		}
		return fallback(ctx, req, err)
	}
}
