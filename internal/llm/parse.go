package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// StripCodeFences removes ```json and ``` markers anywhere in s and trims the result.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// DecodeFields parses model output into a Result whose key set is exactly the
// requested field ids. Missing or null values become "".
func DecodeFields(content string, fields []entity.SchemaField) (Result, error) {
	clean := StripCodeFences(content)
	if clean == "" {
		return nil, common.NewExtractionError(common.ExtractionNoContent, "empty model response", nil)
	}
	if err := ValidateJSONAgainstSchema(BuildFieldsJSONSchema(fields), []byte(clean)); err != nil {
		return nil, common.NewExtractionError(common.ExtractionMalformed, "failed to parse extracted data", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, common.NewExtractionError(common.ExtractionMalformed, "failed to parse extracted data", err)
	}
	return MapFields(payload, fields), nil
}

// MapFields projects payload onto the requested fields.
func MapFields(payload map[string]any, fields []entity.SchemaField) Result {
	out := make(Result, len(fields))
	for _, f := range fields {
		out[f.ID] = stringify(payload[f.ID])
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
