package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// CreateNodeRequest is the body of POST /api/v1/nodes.
type CreateNodeRequest struct {
	ParentID string       `json:"parent_id"` // empty means the root group
	Kind     SourceKind   `json:"kind"`
	Config   SourceConfig `json:"config"`
}

// MoveNodeRequest is the body of PUT /api/v1/nodes/{id}/parent.
type MoveNodeRequest struct {
	ParentID string `json:"parent_id"`
}

// Stats is the aggregate view returned by GET /api/v1/stats.
type Stats struct {
	Fetchers    int            `json:"fetchers"`
	Units       float64        `json:"units"`
	TotalUnits  float64        `json:"total_units"` // lifetime units from the store
	TotalEvents int            `json:"total_events"`
	Nodes       []SourceStatus `json:"nodes"`
}
