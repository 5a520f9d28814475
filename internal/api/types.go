package api

// StateResponse is the payload for GET /api/v1/connection/state.
type StateResponse struct {
	State string `json:"state"`
}

// OKResponse reports the outcome of a fire-and-forget action.
type OKResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	State       string `json:"state"`
	SurveyCount int    `json:"survey_count"`
	IsRotating  bool   `json:"is_rotating"`
}

// ConnectionConfigBody is the JSON form of the link configuration.
// Durations are Go duration strings ("5s", "500ms").
type ConnectionConfigBody struct {
	Protocol          string `json:"protocol"`
	IPAddress         string `json:"ip_address,omitempty"`
	Port              int    `json:"port,omitempty"`
	SerialPort        string `json:"serial_port,omitempty"`
	BaudRate          int    `json:"baud_rate,omitempty"`
	WITSLevel         int    `json:"wits_level"`
	ProxyMode         bool   `json:"proxy_mode,omitempty"`
	TCPHost           string `json:"tcp_host,omitempty"`
	TCPPort           int    `json:"tcp_port,omitempty"`
	AutoConnect       bool   `json:"auto_connect"`
	AutoReconnect     bool   `json:"auto_reconnect"`
	Timeout           string `json:"timeout"`
	RetryInterval     string `json:"retry_interval"`
	MaxReconnects     int    `json:"max_reconnects"`
	HeartbeatInterval string `json:"heartbeat_interval"`
	MaxMissedPongs    int    `json:"max_missed_pongs"`
}

// CommandRequest is the body for POST /api/v1/connection/command.
type CommandRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// TargetBody is the JSON form of the target line.
type TargetBody struct {
	TVD         float64 `json:"tvd"`
	VS          float64 `json:"vs"`
	Inclination float64 `json:"inclination"`
	Azimuth     float64 `json:"azimuth"`
}

// OverrideRequest is the body for PUT /api/v1/overrides/{field}. Value is a
// number for the numeric fields and a boolean for is_rotating.
type OverrideRequest struct {
	Value any `json:"value"`
}

// OverrideResponse echoes the stored (possibly clamped) override.
type OverrideResponse struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// NudgeRequest is the body for POST /api/v1/nudge.
type NudgeRequest struct {
	ToolFace        float64 `json:"tool_face"`
	GravityToolface bool    `json:"gravity_toolface"`
}

// NudgeResponse is the projected orientation after the nudge.
type NudgeResponse struct {
	Inc float64 `json:"inc"`
	Az  float64 `json:"az"`
}

// SampleResponse is the payload for GET /api/v1/sample.
type SampleResponse struct {
	Timestamp string         `json:"timestamp"` // RFC3339
	Channels  map[string]any `json:"channels"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
