/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/Seednode/triviabox/admission"
	"github.com/Seednode/triviabox/rooms"
	"github.com/julienschmidt/httprouter"
)

type connectionRequest struct {
	Action        string `json:"action"`
	ParticipantID string `json:"participantId"`
	RoomCode      string `json:"roomCode"`
	DisplayName   string `json:"displayName"`
}

type connectionResponse struct {
	Success       bool             `json:"success"`
	InWaitingRoom bool             `json:"inWaitingRoom"`
	Position      int              `json:"position,omitempty"`
	Promoted      bool             `json:"promoted,omitempty"`
	CanConnect    bool             `json:"canConnect,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Stats         *admission.Stats `json:"stats,omitempty"`
}

type connectionStatusResponse struct {
	Stats     admission.Stats  `json:"stats"`
	Limits    admission.Limits `json:"limits"`
	Waiting   int              `json:"waiting"`
	Timestamp time.Time        `json:"timestamp"`
}

func (s *server) serveConnections() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)

		var req connectionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.ParticipantID == "" {
			writeError(w, invalid("participantId is required"))
			return
		}

		switch req.Action {
		case "connect":
			s.connect(w, req)

		case "disconnect":
			writeJSON(w, http.StatusOK, connectionResponse{Success: s.conns.Disconnect(req.ParticipantID)})

		case "ping":
			writeJSON(w, http.StatusOK, connectionResponse{Success: s.conns.Ping(req.ParticipantID)})

		case "waiting-status":
			position, promoted := s.conns.WaitingStatus(req.ParticipantID)
			stats := s.conns.Stats()
			writeJSON(w, http.StatusOK, connectionResponse{
				Success:       true,
				InWaitingRoom: position > 0,
				Position:      position,
				Promoted:      promoted,
				CanConnect:    promoted || !stats.IsAtCapacity,
				Stats:         &stats,
			})

		default:
			writeError(w, invalid("action must be connect, disconnect, ping or waiting-status"))
		}
	}
}

// connect admits the participant or, when refused for capacity, queues
// them in the waiting room.
func (s *server) connect(w http.ResponseWriter, req connectionRequest) {
	code, err := rooms.NormalizeCode(req.RoomCode)
	if err != nil {
		writeError(w, err)
		return
	}

	decision := s.conns.CanConnect(code)
	if decision.Allowed && s.conns.Register(req.ParticipantID, code) {
		stats := s.conns.Stats()
		writeJSON(w, http.StatusOK, connectionResponse{Success: true, Stats: &stats})
		return
	}
	if decision.Allowed {
		// Capacity filled between the check and the insert.
		decision = s.conns.CanConnect(code)
	}

	name := sanitizeText(req.DisplayName)
	position := s.conns.Waiting().Add(req.ParticipantID, code, name)

	s.logger.Info("CONNS: Queued participant",
		"participant", req.ParticipantID,
		"room", code,
		"reason", decision.Reason,
		"position", position,
	)

	writeJSON(w, http.StatusOK, connectionResponse{
		InWaitingRoom: true,
		Position:      position,
		Reason:        decision.Reason,
		Stats:         &decision.Stats,
	})
}

func (s *server) serveConnectionStatus() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)
		w.Header().Set("Cache-Control", "no-store")

		writeJSON(w, http.StatusOK, connectionStatusResponse{
			Stats:     s.conns.Stats(),
			Limits:    s.conns.Limits(),
			Waiting:   s.conns.Waiting().Len(),
			Timestamp: time.Now().UTC(),
		})
	}
}
