package codec

import (
	"strings"
	"unicode"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// DetectFormat classifies a payload by ordered content heuristics. XML and
// JSON sniffing runs before the printable-text check because valid XML/JSON is
// also printable text; binary is the fallback when nothing else matches, so
// every payload receives exactly one classification. Detection is a pure
// function of content: empty or ambiguous input resolves to Unknown, never to
// an error.
func DetectFormat(payload domain.MessagePayload) domain.ContentFormat {
	content := payload.Bytes()
	if len(content) == 0 {
		return domain.FormatUnknown
	}

	text := string(content)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.FormatUnknown
	}

	if looksLikeXML(trimmed) {
		return domain.FormatXML
	}

	if looksLikeJSON(trimmed) {
		return domain.FormatJSON
	}

	if isPrintableText(text) {
		return domain.FormatText
	}

	return domain.FormatBinary
}

func looksLikeXML(trimmed string) bool {
	return strings.HasPrefix(trimmed, "<") && strings.Contains(trimmed, ">")
}

func looksLikeJSON(trimmed string) bool {
	switch trimmed[0] {
	case '{':
		return strings.HasSuffix(trimmed, "}")
	case '[':
		return strings.HasSuffix(trimmed, "]")
	default:
		return false
	}
}

// isPrintableText accepts payloads whose every character is printable or one
// of \r, \n, \t.
func isPrintableText(text string) bool {
	for _, r := range text {
		if r == '\r' || r == '\n' || r == '\t' {
			continue
		}
		if r == unicode.ReplacementChar {
			return false
		}
		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}
