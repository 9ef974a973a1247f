package api

import (
	"github.com/mattjoyce/vestabridge/internal/service"
	"github.com/mattjoyce/vestabridge/internal/state"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Transport     string  `json:"transport"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready         bool `json:"ready"`
	MQTTConnected bool `json:"mqtt_connected"`
}

// MetricsResponse is returned by GET /metrics.
type MetricsResponse struct {
	service.Metrics
	MQTTConnected bool `json:"mqtt_connected"`
}

// AcceptedResponse is returned when a write was sent or queued.
type AcceptedResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Slot    string `json:"slot,omitempty"`
}

// SlotResponse acknowledges a slot save or delete.
type SlotResponse struct {
	Status string `json:"status"`
	Slot   string `json:"slot"`
}

// CancelResponse is returned by DELETE /v1/timers/{id}.
type CancelResponse struct {
	TimerID   string `json:"timer_id"`
	Cancelled bool   `json:"cancelled"`
}

// SlotListResponse is returned by GET /v1/slots.
type SlotListResponse struct {
	Slots []state.SlotSummary `json:"slots"`
	Count int                 `json:"count"`
}
