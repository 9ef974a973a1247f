package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/vestabridge/internal/board"
	"github.com/mattjoyce/vestabridge/internal/service"
	"github.com/mattjoyce/vestabridge/internal/state"
)

const maxBodyBytes = 64 << 10

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	m := s.svc.Metrics()
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: m.UptimeSeconds,
		Transport:     m.Transport,
	})
}

// handleReady handles GET /ready: 503 until the bus is connected.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	connected := s.connected()
	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, ReadyResponse{Ready: connected, MQTTConnected: connected})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, MetricsResponse{
		Metrics:       s.svc.Metrics(),
		MQTTConnected: s.connected(),
	})
}

func (s *Server) connected() bool {
	return s.ready == nil || s.ready.IsConnected()
}

// handleMessage handles POST /v1/message. The body takes every shape the
// bus message topic accepts.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	cmd, err := board.ParseMessage(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.svc.DispatchNow(r.Context(), cmd) {
		s.writeError(w, http.StatusBadGateway, "board write failed")
		return
	}
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Command: cmd.String()})
}

// handleTimedMessage handles POST /v1/timed-message.
func (s *Server) handleTimedMessage(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var payload service.TimedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := payload.Request()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.svc.ScheduleTimedDisplay(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, service.NewTimedReceipt(id, payload, req))
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, service.NewTimerList(s.svc.ListTimers(), s.clock.Now()))
}

func (s *Server) handleCancelTimer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.svc.CancelTimer(id) {
		s.writeError(w, http.StatusNotFound, "timer not found or already firing")
		return
	}
	respondJSON(w, http.StatusOK, CancelResponse{TimerID: id, Cancelled: true})
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := s.svc.ListSlots(r.Context())
	if err != nil {
		s.logger.Error("failed to list slots", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list slots")
		return
	}
	if slots == nil {
		slots = []state.SlotSummary{}
	}
	respondJSON(w, http.StatusOK, SlotListResponse{Slots: slots, Count: len(slots)})
}

func (s *Server) handleSaveSlot(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if err := s.svc.SaveSlot(r.Context(), slot); err != nil {
		s.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, SlotResponse{Status: "saved", Slot: slot})
}

// handleRestoreSlot handles POST /v1/slots/{slot}/restore with optional
// render params in the body.
func (s *Server) handleRestoreSlot(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var render *board.RenderParams
	if len(bytes.TrimSpace(body)) > 0 {
		var params board.RenderParams
		if err := json.Unmarshal(body, &params); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !params.IsZero() {
			render = &params
		}
	}

	sent, err := s.svc.RestoreSlot(r.Context(), slot, render)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !sent {
		s.writeError(w, http.StatusBadGateway, "board write failed")
		return
	}
	respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", Command: "restore", Slot: slot})
}

func (s *Server) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if err := s.svc.DeleteSlot(r.Context(), slot); err != nil {
		s.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SlotResponse{Status: "deleted", Slot: slot})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return body, true
}

// writeServiceError maps service errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case service.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case service.IsInvalid(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, state.ErrNoContent):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
