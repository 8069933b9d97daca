package model

// WebSocket message types
const (
	WSMessageTypeSnapshot = "snapshot"
	WSMessageTypeJobList  = "jobs"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSJobSnapshot is a periodic snapshot of one job's state.
type WSJobSnapshot struct {
	Type string `json:"type"`
	Job  Job    `json:"job"`
}

// WSJobList is a periodic snapshot of every job in the registry.
type WSJobList struct {
	Type string `json:"type"`
	Jobs []Job  `json:"jobs"`
}

// WSError reports a stream-level error, e.g. an unknown job ID.
type WSError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
