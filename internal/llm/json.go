package llm

import "encoding/json"

// unmarshalInput decodes a tool-use block's raw JSON input into a generic
// args map, tolerating the empty-object case every provider sends for a
// zero-argument tool call.
func unmarshalInput(raw json.RawMessage, out *map[string]any) error {
	if len(raw) == 0 {
		*out = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, out)
}
