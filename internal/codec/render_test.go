package codec

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

func TestFormatForDisplayJSON(t *testing.T) {
	payload := domain.NewPayload([]byte(`{"a":1}`))

	rendering := FormatForDisplay(payload, 0)

	assert.Equal(t, domain.FormatJSON, rendering.Format)
	assert.Equal(t, "{\n  \"a\": 1\n}", rendering.Content)
	assert.False(t, rendering.Truncated)
	assert.Empty(t, rendering.Diagnostic)
}

func TestFormatForDisplayXML(t *testing.T) {
	payload := domain.NewPayload([]byte("<order><id>42</id><state>open</state></order>"))

	rendering := FormatForDisplay(payload, 0)

	assert.Equal(t, domain.FormatXML, rendering.Format)
	assert.Equal(t, "<order>\n  <id>42</id>\n  <state>open</state>\n</order>", rendering.Content)
	assert.Empty(t, rendering.Diagnostic)
}

func TestFormatForDisplayTextVerbatim(t *testing.T) {
	raw := "line one\r\nline two"
	rendering := FormatForDisplay(domain.NewPayload([]byte(raw)), 0)

	assert.Equal(t, domain.FormatText, rendering.Format)
	assert.Equal(t, raw, rendering.Content)
}

// A payload that sniffs as JSON but fails to parse degrades to the raw
// content with a non-fatal diagnostic instead of erroring.
func TestFormatForDisplayDegradesOnMalformedJSON(t *testing.T) {
	payload := domain.NewPayload([]byte(`{"a": }`))

	rendering := FormatForDisplay(payload, 0)

	assert.Equal(t, `{"a": }`, rendering.Content)
	assert.Contains(t, rendering.Diagnostic, "JSON pretty-printing failed")
}

func TestHexDumpShape(t *testing.T) {
	cases := []struct {
		name          string
		size          int
		expectedLines int
	}{
		{name: "single byte", size: 1, expectedLines: 1},
		{name: "exactly one line", size: 16, expectedLines: 1},
		{name: "one byte over", size: 17, expectedLines: 2},
		{name: "three full lines", size: 48, expectedLines: 3},
		{name: "uneven tail", size: 100, expectedLines: 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dump := HexDump(bytesRange(0, tc.size))
			lines := strings.Split(dump, "\n")
			require.Len(t, lines, tc.expectedLines)

			for i, line := range lines {
				assert.True(t, strings.HasPrefix(line, fmt.Sprintf("%08x", 16*i)),
					"line %d offset column mismatch: %q", i, line)
			}
		})
	}
}

// 20 raw bytes 0x00..0x13 dump as two lines, the second holding the
// remaining 4 bytes padded with blank hex columns.
func TestHexDumpTwentyBytes(t *testing.T) {
	dump := HexDump(bytesRange(0, 20))

	lines := strings.Split(dump, "\n")
	require.Len(t, lines, 2)

	assert.Equal(t,
		"00000000  00 01 02 03 04 05 06 07  08 09 0a 0b 0c 0d 0e 0f  ................",
		lines[0])
	assert.Equal(t,
		"00000010  10 11 12 13                                       ....",
		lines[1])
}

func TestHexDumpASCIIGloss(t *testing.T) {
	dump := HexDump([]byte("AB\x00\x1fCD\x7f~"))

	gloss := dump[strings.LastIndex(dump, "  ")+2:]
	assert.Equal(t, "AB..CD.~", gloss)
}

func TestHexDumpEmpty(t *testing.T) {
	assert.Empty(t, HexDump(nil))
}

func TestTruncation(t *testing.T) {
	payload := domain.NewPayload([]byte(strings.Repeat("x", 500)))

	for _, limit := range []int{1, 10, 100, 499} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			rendering := FormatForDisplay(payload, limit)

			assert.True(t, rendering.Truncated)
			assert.True(t, strings.HasSuffix(rendering.Content, TruncationMarker))
			assert.LessOrEqual(t, len(rendering.Content)-len(TruncationMarker), limit)
		})
	}

	t.Run("zero limit is unlimited", func(t *testing.T) {
		rendering := FormatForDisplay(payload, 0)
		assert.False(t, rendering.Truncated)
		assert.Len(t, rendering.Content, 500)
	})

	t.Run("limit beyond content leaves it intact", func(t *testing.T) {
		rendering := FormatForDisplay(payload, 10_000)
		assert.False(t, rendering.Truncated)
		assert.NotContains(t, rendering.Content, TruncationMarker)
	})
}
