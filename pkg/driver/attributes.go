package driver

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DecodeAttributes turns a stored attributes value into a map. Statement
// attributes are persisted as JSON strings by ingestion; malformed strings
// are repaired before decoding and anything unrecoverable yields nil.
func DecodeAttributes(v any) map[string]interface{} {
	switch a := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return a
	case string:
		return decodeAttributeString(a)
	}
	return nil
}

func decodeAttributeString(s string) map[string]interface{} {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil
	}
	return out
}
