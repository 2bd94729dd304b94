package codec

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestRegistryDispatchesByPrefix(t *testing.T) {
	r := NewRegistry()
	r.Register("application/json", JSONPreviewer{})
	r.Register("text/", TextPreviewer{})

	if got := r.Preview("application/json", []byte(`  {"a":1}  `), 0); got != `{"a":1}` {
		t.Fatalf("unexpected json preview: %q", got)
	}
	if got := r.Preview("text/plain", []byte("hello"), 0); got != "hello" {
		t.Fatalf("unexpected text preview: %q", got)
	}
	if got := r.Preview("application/octet-stream", []byte("xyz"), 0); got != "3 bytes" {
		t.Fatalf("unexpected fallback preview: %q", got)
	}
}

func TestRegistryTruncates(t *testing.T) {
	r := NewRegistry()
	r.Register("text/", TextPreviewer{})
	got := r.Preview("text/plain", []byte("0123456789"), 5)
	if !strings.HasSuffix(got, "...") || len(got) != 8 {
		t.Fatalf("expected truncated preview, got %q", got)
	}
}

func TestProtobufPreviewerSummarizesFields(t *testing.T) {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 42)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte("hi"))

	preview := ProtobufPreviewer{}.Preview("application/x-protobuf", buf)
	if !strings.Contains(preview, "1:varint") || !strings.Contains(preview, "2:bytes(2)") {
		t.Fatalf("unexpected protobuf preview: %q", preview)
	}
}
