package wits

import "time"

// State is the telemetry link connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReceiving
	StateReconnecting
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReceiving:
		return "receiving"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Value is one channel reading: numeric or text, tagged.
type Value struct {
	Num     float64 `json:"num,omitempty"`
	Text    string  `json:"text,omitempty"`
	Numeric bool    `json:"numeric"`
}

// Sample is one parsed telemetry message: a mapping from channel id to value.
// Immutable once parsed — consumers must not modify Channels.
type Sample struct {
	Timestamp time.Time     `json:"timestamp"`
	Channels  map[int]Value `json:"channels"`
}

// Num returns the numeric value of channel ch.
func (s Sample) Num(ch int) (float64, bool) {
	v, ok := s.Channels[ch]
	if !ok || !v.Numeric {
		return 0, false
	}
	return v.Num, true
}

// Text returns the textual value of channel ch.
func (s Sample) Text(ch int) (string, bool) {
	v, ok := s.Channels[ch]
	if !ok || v.Numeric {
		return "", false
	}
	return v.Text, true
}
