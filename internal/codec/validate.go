package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// Validate checks a payload against a candidate format and returns a
// human-readable diagnostic when it does not conform. For XML and JSON the
// diagnostic carries the underlying parser error; printability is checked for
// text; any non-empty byte sequence validates as binary.
func Validate(payload domain.MessagePayload, format domain.ContentFormat) (bool, string) {
	content := payload.Bytes()

	switch format {
	case domain.FormatXML:
		if err := validateXML(content); err != nil {
			return false, fmt.Sprintf("invalid XML: %v", err)
		}
		return true, ""

	case domain.FormatJSON:
		if err := validateJSON(content); err != nil {
			return false, fmt.Sprintf("invalid JSON: %v", err)
		}
		return true, ""

	case domain.FormatText:
		if !isPrintableText(string(content)) {
			return false, "content contains non-printable characters"
		}
		return true, ""

	case domain.FormatBinary:
		if len(content) == 0 {
			return false, "binary payload is empty"
		}
		return true, ""

	case domain.FormatUnknown:
		if len(bytes.TrimSpace(content)) == 0 {
			return true, ""
		}
		return false, "content could not be classified"

	default:
		return false, fmt.Sprintf("unsupported format %q", format)
	}
}

func validateXML(content []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	sawElement := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := token.(xml.StartElement); ok {
			sawElement = true
		}
	}

	if !sawElement {
		return fmt.Errorf("document contains no elements")
	}

	return nil
}

func validateJSON(content []byte) error {
	var value any
	decoder := json.NewDecoder(bytes.NewReader(content))
	if err := decoder.Decode(&value); err != nil {
		return err
	}

	// Trailing content after the first JSON value is a validation failure.
	if decoder.More() {
		return fmt.Errorf("unexpected trailing content after JSON value")
	}

	return nil
}
