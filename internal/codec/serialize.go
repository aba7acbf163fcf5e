package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// Deserialize converts a payload into a caller-declared target shape. The
// format is auto-detected when no hint is given. Binary deserialization into
// arbitrary types is refused unconditionally: turning untrusted binary blobs
// into live objects is an injection vector, and the refusal is a permanent
// policy failure, not a missing feature.
func Deserialize[T any](payload domain.MessagePayload, hint ...domain.ContentFormat) (T, error) {
	var target T

	format := payload.Format
	if len(hint) > 0 {
		format = hint[0]
	}
	if format == domain.FormatUnknown {
		format = DetectFormat(payload)
	}

	content := payload.Bytes()

	switch format {
	case domain.FormatJSON:
		if err := json.Unmarshal(content, &target); err != nil {
			return target, domain.NewMalformedContentError(domain.FormatJSON, err)
		}
		return target, nil

	case domain.FormatXML:
		if err := xml.Unmarshal(content, &target); err != nil {
			return target, domain.NewMalformedContentError(domain.FormatXML, err)
		}
		return target, nil

	case domain.FormatText:
		if str, ok := any(&target).(*string); ok {
			*str = string(content)
			return target, nil
		}
		return target, domain.NewMalformedContentError(domain.FormatText,
			domain.ErrMalformedContent)

	default:
		return target, domain.NewBinaryCodecRefusedError()
	}
}

// Serialize is the inverse of Deserialize, with the same binary refusal.
func Serialize[T any](obj T, format domain.ContentFormat) (domain.MessagePayload, error) {
	switch format {
	case domain.FormatJSON:
		content, err := json.Marshal(obj)
		if err != nil {
			return domain.MessagePayload{}, domain.NewMalformedContentError(domain.FormatJSON, err)
		}
		return payloadFrom(content, domain.FormatJSON), nil

	case domain.FormatXML:
		var buf bytes.Buffer
		encoder := xml.NewEncoder(&buf)
		if err := encoder.Encode(obj); err != nil {
			return domain.MessagePayload{}, domain.NewMalformedContentError(domain.FormatXML, err)
		}
		if err := encoder.Flush(); err != nil {
			return domain.MessagePayload{}, domain.NewMalformedContentError(domain.FormatXML, err)
		}
		return payloadFrom(buf.Bytes(), domain.FormatXML), nil

	case domain.FormatText:
		if str, ok := any(obj).(string); ok {
			return payloadFrom([]byte(str), domain.FormatText), nil
		}
		return domain.MessagePayload{}, domain.NewMalformedContentError(domain.FormatText,
			domain.ErrMalformedContent)

	default:
		return domain.MessagePayload{}, domain.NewBinaryCodecRefusedError()
	}
}

func payloadFrom(content []byte, format domain.ContentFormat) domain.MessagePayload {
	return domain.MessagePayload{
		Raw:      content,
		Text:     string(content),
		Format:   format,
		Encoding: "UTF-8",
	}
}
