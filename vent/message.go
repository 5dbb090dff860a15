package vent

// Message is one decoded keyed message, inbound or outbound. The device
// speaks flat JSON objects; values arrive as strings or JSON numbers.
type Message map[string]any

// Well-known message keys.
const (
	KeyID      = "id"
	KeyDevice  = "dev"
	KeyCommand = "cmd"
	KeyStatus  = "status"
)

// String returns the value for key if it is a string.
func (m Message) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the value for key as an int, accepting the float64 that
// encoding/json produces for numbers.
func (m Message) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Float returns the value for key as a float64.
func (m Message) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
