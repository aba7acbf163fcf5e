package codec

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

const defaultEncoding = "UTF-8"

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16BE = []byte{0xfe, 0xff}
	bomUTF16LE = []byte{0xff, 0xfe}
)

// DetectEncoding infers the character encoding of raw bytes: BOM sniffing
// first, then UTF-8 validity. Inconclusive content defaults to UTF-8 rather
// than failing.
func DetectEncoding(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return "UTF-8"
	case bytes.HasPrefix(raw, bomUTF16BE):
		return "UTF-16BE"
	case bytes.HasPrefix(raw, bomUTF16LE):
		return "UTF-16LE"
	}

	if utf8.Valid(raw) {
		return "UTF-8"
	}

	return defaultEncoding
}

// ConvertEncoding transcodes raw bytes between two IANA-named encodings.
// Failures are reported as errors, never panics.
func ConvertEncoding(raw []byte, from, to string) ([]byte, error) {
	if from == to {
		return raw, nil
	}

	source, err := ianaindex.IANA.Encoding(from)
	if err != nil || source == nil {
		return nil, fmt.Errorf("unsupported source encoding %q", from)
	}

	target, err := ianaindex.IANA.Encoding(to)
	if err != nil || target == nil {
		return nil, fmt.Errorf("unsupported target encoding %q", to)
	}

	decoded, _, err := transform.Bytes(source.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("decoding from %s failed: %w", from, err)
	}

	encoded, _, err := transform.Bytes(target.NewEncoder(), decoded)
	if err != nil {
		return nil, fmt.Errorf("encoding to %s failed: %w", to, err)
	}

	return encoded, nil
}

// ExtractText produces a best-effort text rendition of a payload. Binary
// content that cannot be decoded yields an error alongside an empty string;
// the caller decides whether to fall back to a hex dump.
func ExtractText(payload domain.MessagePayload) (string, error) {
	if payload.Text != "" {
		return payload.Text, nil
	}

	raw := payload.Raw
	if len(raw) == 0 {
		return "", nil
	}

	encoding := payload.Encoding
	if encoding == "" {
		encoding = DetectEncoding(raw)
	}

	if encoding == "UTF-8" {
		raw = bytes.TrimPrefix(raw, bomUTF8)
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("payload is not valid UTF-8 text")
		}
		return string(raw), nil
	}

	converted, err := ConvertEncoding(raw, encoding, "UTF-8")
	if err != nil {
		return "", err
	}

	return string(bytes.TrimPrefix(converted, bomUTF8)), nil
}
