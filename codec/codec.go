// Package codec backs the content previewer hooks: best-effort,
// bounded-length human-readable summaries of a request or response
// body, selected by content-type. Grounded on the teacher's RPC codec
// registry (a CodecType -> Codec lookup over Encode/Decode/Name), this
// package narrows the same shape down to one read-only Preview
// operation since a previewer never needs to round-trip a value, only
// describe the bytes that crossed the wire.
package codec

import "fmt"

// Previewer produces a short preview string for a body chunk.
// Implementations must never panic on malformed input: a preview is a
// logging aid, not a correctness gate.
type Previewer interface {
	Name() string
	Preview(contentType string, data []byte) string
}

// Registry selects a Previewer by content-type, falling back to the
// body's byte count ("N bytes") when nothing registered matches.
type Registry struct {
	previewers []matchedPreviewer
}

type matchedPreviewer struct {
	prefix string
	p      Previewer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register associates p with every content-type starting with prefix
// (e.g. "application/json", "application/x-protobuf").
func (r *Registry) Register(prefix string, p Previewer) {
	r.previewers = append(r.previewers, matchedPreviewer{prefix: prefix, p: p})
}

// Preview finds the first registered previewer whose prefix matches
// contentType and returns its output, or a raw fallback preview if
// none match.
func (r *Registry) Preview(contentType string, data []byte, maxLen int) string {
	for _, m := range r.previewers {
		if hasPrefix(contentType, m.prefix) {
			return truncate(m.p.Preview(contentType, data), maxLen)
		}
	}
	return truncate(rawPreview(data), maxLen)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func rawPreview(data []byte) string {
	return fmt.Sprintf("%d bytes", len(data))
}
