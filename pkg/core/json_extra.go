package core

import "encoding/json"

// marshalWithExtra encodes fields and overlays them on extra. Promoted fields
// win over extra keys of the same name.
func marshalWithExtra(fields any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	merged := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// unmarshalWithExtra decodes data into fields and returns the keys not listed
// in known, or nil if there are none.
func unmarshalWithExtra(data []byte, fields any, known ...string) (map[string]json.RawMessage, error) {
	if string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, fields); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
