package mcpserver

import "encoding/json"

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// toParams flattens an event payload into notification params. Payloads
// that are not JSON objects are wrapped under "data".
func toParams(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"data": v}, nil
	}
	return m, nil
}

// decodeValue reads an answer argument. JSON is decoded so numbers, booleans
// and lists arrive typed; anything else is taken as a plain string.
func decodeValue(raw string) any {
	var v any
	if err := parseJSON(raw, &v); err != nil {
		return raw
	}
	return v
}
