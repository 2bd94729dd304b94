package codec

import (
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// JSONPreviewer previews JSON bodies by trimming surrounding
// whitespace; JSON is already human-readable so no further decoding is
// needed.
type JSONPreviewer struct{}

func (JSONPreviewer) Name() string { return "json" }

func (JSONPreviewer) Preview(contentType string, data []byte) string {
	return strings.TrimSpace(string(data))
}

// TextPreviewer previews any text/* body verbatim.
type TextPreviewer struct{}

func (TextPreviewer) Name() string { return "text" }

func (TextPreviewer) Preview(contentType string, data []byte) string {
	return string(data)
}

// ProtobufPreviewer previews a protobuf-encoded body without a schema
// by walking the wire format field-by-field and summarizing each
// field's number, wire type, and (for length-delimited fields) byte
// length, using protowire directly rather than unmarshaling into a
// concrete message type the previewer cannot know in advance.
type ProtobufPreviewer struct{}

func (ProtobufPreviewer) Name() string { return "protobuf" }

func (ProtobufPreviewer) Preview(contentType string, data []byte) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			b.WriteString("<malformed>")
			break
		}
		data = data[n:]

		var desc string
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				desc = "<malformed varint>"
				data = nil
			} else {
				desc = "varint"
				_ = v
				data = data[n:]
			}
		case protowire.Fixed32Type:
			_, n := protowire.ConsumeFixed32(data)
			desc = "fixed32"
			if n < 0 {
				data = nil
			} else {
				data = data[n:]
			}
		case protowire.Fixed64Type:
			_, n := protowire.ConsumeFixed64(data)
			desc = "fixed64"
			if n < 0 {
				data = nil
			} else {
				data = data[n:]
			}
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				desc = "<malformed bytes>"
				data = nil
			} else {
				desc = "bytes(" + strconv.Itoa(len(v)) + ")"
				data = data[n:]
			}
		default:
			desc = "unknown-wiretype"
			data = nil
		}

		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Itoa(int(num)))
		b.WriteByte(':')
		b.WriteString(desc)
	}
	b.WriteByte('}')
	return b.String()
}
