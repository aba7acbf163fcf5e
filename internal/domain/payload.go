package domain

type (
	// ContentFormat is the closed set of payload classifications. Every
	// payload receives exactly one of these.
	ContentFormat string

	// MessagePayload is an immutable view of a message body: the raw bytes,
	// an optional decoded text rendition, the detected or declared format,
	// and the character encoding label. It is owned by the MessageRecord
	// that carries it and is never shared mutably.
	MessagePayload struct {
		Raw      []byte
		Text     string
		Format   ContentFormat
		Encoding string
	}
)

const (
	FormatUnknown ContentFormat = "unknown"
	FormatText    ContentFormat = "text"
	FormatXML     ContentFormat = "xml"
	FormatJSON    ContentFormat = "json"
	FormatBinary  ContentFormat = "binary"
)

// NewPayload builds a payload around raw bytes with no format claim.
func NewPayload(raw []byte) MessagePayload {
	return MessagePayload{
		Raw:      raw,
		Format:   FormatUnknown,
		Encoding: "UTF-8",
	}
}

// WithFormat returns a copy of the payload tagged with the given format.
func (p MessagePayload) WithFormat(format ContentFormat) MessagePayload {
	p.Format = format

	return p
}

// IsEmpty reports whether the payload carries no content at all.
func (p MessagePayload) IsEmpty() bool {
	return len(p.Raw) == 0 && p.Text == ""
}

// Bytes returns the raw body, falling back to the text rendition when the
// payload was constructed from text only.
func (p MessagePayload) Bytes() []byte {
	if len(p.Raw) > 0 {
		return p.Raw
	}

	return []byte(p.Text)
}
