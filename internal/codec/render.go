package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// TruncationMarker terminates any rendering cut short by a maxLength limit.
const TruncationMarker = "... (truncated)"

const (
	hexBytesPerLine = 16
	hexHalfLine     = 8
)

// Rendering is the display form of one payload. Diagnostic is non-empty when
// pretty-printing failed and the content degraded to a raw rendition; that is
// a recoverable condition, never an error.
type Rendering struct {
	Content    string
	Format     domain.ContentFormat
	Truncated  bool
	Diagnostic string
}

// FormatForDisplay renders a payload for human inspection: pretty-printed
// XML/JSON with stable two-space indentation and \n newlines, verbatim text,
// and a fixed-width hex dump for binary. Output longer than maxLength is cut
// post-formatting and terminated with the truncation marker; maxLength <= 0
// means unlimited.
func FormatForDisplay(payload domain.MessagePayload, maxLength int) Rendering {
	format := payload.Format
	if format == domain.FormatUnknown {
		format = DetectFormat(payload)
	}

	rendering := Rendering{Format: format}

	switch format {
	case domain.FormatXML:
		pretty, err := prettyXML(payload.Bytes())
		if err != nil {
			rendering.Content = string(payload.Bytes())
			rendering.Diagnostic = fmt.Sprintf("XML pretty-printing failed, showing raw content: %v", err)
		} else {
			rendering.Content = pretty
		}

	case domain.FormatJSON:
		pretty, err := prettyJSON(payload.Bytes())
		if err != nil {
			rendering.Content = string(payload.Bytes())
			rendering.Diagnostic = fmt.Sprintf("JSON pretty-printing failed, showing raw content: %v", err)
		} else {
			rendering.Content = pretty
		}

	case domain.FormatText:
		rendering.Content = string(payload.Bytes())

	default:
		rendering.Content = HexDump(payload.Bytes())
	}

	rendering.Content, rendering.Truncated = truncate(rendering.Content, maxLength)

	return rendering
}

func prettyJSON(content []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(content), "", "  "); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func prettyXML(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var buf bytes.Buffer
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		// Inter-element whitespace is re-derived from the indentation
		// settings so the output is stable regardless of input formatting.
		if chardata, ok := token.(xml.CharData); ok {
			trimmed := bytes.TrimSpace(chardata)
			if len(trimmed) == 0 {
				continue
			}
			token = xml.CharData(trimmed)
		}

		if err := encoder.EncodeToken(token); err != nil {
			return "", err
		}
	}

	if err := encoder.Flush(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// HexDump renders bytes 16 to a line: an 8-digit zero-padded hex offset, the
// hex byte pairs with an extra gap after the 8th byte, then the ASCII gloss
// with '.' for every byte outside 0x20-0x7E.
func HexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var builder strings.Builder
	for offset := 0; offset < len(data); offset += hexBytesPerLine {
		if offset > 0 {
			builder.WriteByte('\n')
		}

		line := data[offset:]
		if len(line) > hexBytesPerLine {
			line = line[:hexBytesPerLine]
		}

		fmt.Fprintf(&builder, "%08x  ", offset)

		for i := 0; i < hexBytesPerLine; i++ {
			if i == hexHalfLine {
				builder.WriteByte(' ')
			}
			if i < len(line) {
				fmt.Fprintf(&builder, "%02x ", line[i])
			} else {
				builder.WriteString("   ")
			}
		}

		builder.WriteByte(' ')
		for _, b := range line {
			if b >= 0x20 && b <= 0x7e {
				builder.WriteByte(b)
			} else {
				builder.WriteByte('.')
			}
		}
	}

	return builder.String()
}

// truncate cuts a rendering at max bytes and appends the truncation marker.
// max <= 0 disables the limit.
func truncate(content string, max int) (string, bool) {
	if max <= 0 || len(content) <= max {
		return content, false
	}

	return content[:max] + TruncationMarker, true
}
