package observability

import (
	"context"

	"github.com/searchktools/meridian/pipeline"
)

// Decorate wraps inner so every call is timed and recorded against
// name. Grounded on the teacher's Observatory.TraceHandler, reshaped
// into an ordinary pipeline.Decorator so it composes with every other
// decorator in the chain instead of needing its own call convention.
func Decorate(m *Monitor, name string) pipeline.Decorator {
	return func(inner pipeline.Handler) pipeline.Handler {
		return func(ctx context.Context, req pipeline.Request) (pipeline.Response, error) {
			start := m.StartTrace()
			resp, err := inner(ctx, req)
			m.EndTrace(name, start, err != nil)
			return resp, err
		}
	}
}
