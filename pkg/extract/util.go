package extract

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ResponseSchema builds the JSON Schema for a response type, suitable for
// structured-output enforcement by the model backends.
func ResponseSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return reflector.Reflect(reflect.New(t).Interface())
}

// DecodeResponse unmarshals model output into out, tolerating the usual
// model artifacts: double-encoded JSON strings, duplicated leading braces
// and mildly malformed JSON, which is repaired before the final attempt.
func DecodeResponse(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var quoted string
	if err := json.Unmarshal([]byte(input), &quoted); err == nil {
		quoted = strings.TrimSpace(quoted)
		if err := json.Unmarshal([]byte(quoted), out); err == nil {
			return nil
		}
		input = quoted
	}

	input = trimDuplicateBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: input=%s repaired=%s", input, repaired)
	}
	return nil
}

func trimDuplicateBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}
