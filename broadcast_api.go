/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strconv"

	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/Seednode/triviabox/relay"
	"github.com/Seednode/triviabox/rooms"
	"github.com/julienschmidt/httprouter"
)

type broadcastResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Seq     uint64 `json:"seq"`
}

func (s *server) serveBroadcast() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)

		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			s.logger.Debug("RELAY: Rate limited broadcast", "client", ip)
			w.Header().Set("Retry-After", strconv.Itoa(max(int(s.limiter.Window().Seconds()), 1)))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}

		var req relay.BroadcastRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		if req.Event == "" {
			writeError(w, invalid("event is required"))
			return
		}

		room, err := s.rooms.Get(req.RoomCode)
		if err != nil {
			writeError(w, err)
			return
		}

		env, err := s.hub.Publish(room.Code, req.SenderID, req.Event, req.Data)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, broadcastResponse{Success: true, ID: env.ID, Seq: env.Seq})
	}
}

// serveRelay streams a room's events to an admitted participant. Frames
// the participant sends back count as heartbeats, and closing the socket
// gives up the connection slot.
func (s *server) serveRelay() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		code, err := rooms.NormalizeCode(p.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		id := r.URL.Query().Get("participantId")
		conn, err := s.conns.Connection(id)
		if err != nil || conn.RoomCode != code {
			writeError(w, errNotAdmitted)
			return
		}

		err = s.hub.Serve(w, r, code, id, relay.Hooks{
			OnMessage: func() { s.conns.Ping(id) },
			OnClose:   func() { s.conns.Disconnect(id) },
		})
		if err != nil {
			s.logger.Debug("RELAY: Upgrade failed", "participant", id, "room", code, "err", err)
		}
	}
}

type categoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// categoriesResponse carries what a host needs to set up a game: the
// categories to pick from and the penalty policy replicas must agree on.
type categoriesResponse struct {
	Categories      []categoryResponse     `json:"categories"`
	TeamModePenalty jeopardy.PenaltyPolicy `json:"teamModePenalty"`
}

func (s *server) serveCategories() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)
		w.Header().Set("Cache-Control", "public, max-age=3600")

		out := make([]categoryResponse, 0, len(s.bank.Categories))
		for _, c := range s.bank.Categories {
			out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description})
		}

		writeJSON(w, http.StatusOK, categoriesResponse{
			Categories:      out,
			TeamModePenalty: jeopardy.PenaltyPolicy(s.cfg.teamPenalty),
		})
	}
}
