package domain

// Responses maps component id to answer. Values are whatever the renderer
// reported: strings, float64/int numbers, bools, []any lists or nil.
type Responses map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
