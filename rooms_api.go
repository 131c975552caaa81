/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Seednode/triviabox/rooms"
	"github.com/julienschmidt/httprouter"
)

const maxBodySize = 64 << 10

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("request body is required")
		}
		return invalid("malformed request body")
	}
	return nil
}

type roomResponse struct {
	Success     bool       `json:"success"`
	Room        rooms.Room `json:"room"`
	CanJoin     bool       `json:"canJoin"`
	Deleted     bool       `json:"deleted,omitempty"`
	Connections int        `json:"connections,omitempty"`
}

type roomListResponse struct {
	Rooms []rooms.Room `json:"rooms"`
	Count int          `json:"count"`
}

func (s *server) serveCreateRoom() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)

		var req createRoomRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		hostName, opts, err := req.options(s.cfg.maxPlayers)
		if err != nil {
			writeError(w, err)
			return
		}

		hostID := participantID(w, r, req.HostID)

		room, err := s.rooms.CreateUnique(hostID, hostName, opts)
		if err != nil {
			s.logger.Error("ROOMS: Failed to create room", "host", hostID, "err", err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, roomResponse{Success: true, Room: room, CanJoin: room.CanJoin()})
	}
}

func (s *server) serveListRooms() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)

		list := s.rooms.Public()
		if r.URL.Query().Get("all") == "true" {
			list = s.rooms.All()
		}

		writeJSON(w, http.StatusOK, roomListResponse{Rooms: list, Count: len(list)})
	}
}

func (s *server) serveGetRoom() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(s.cfg, w)

		room, err := s.rooms.Get(p.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, roomResponse{
			Success:     true,
			Room:        room,
			CanJoin:     room.CanJoin(),
			Connections: s.conns.RoomConnections(room.Code),
		})
	}
}

type roomActionRequest struct {
	Action     string `json:"action"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func (s *server) serveRoomAction() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(s.cfg, w)

		var req roomActionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		code := p.ByName("code")

		switch req.Action {
		case "join":
			if req.PlayerName != "" {
				if _, err := validateName("playerName", req.PlayerName); err != nil {
					writeError(w, err)
					return
				}
			}

			room, err := s.rooms.Join(code)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, roomResponse{Success: true, Room: room, CanJoin: room.CanJoin()})

		case "leave":
			room, deleted, err := s.rooms.Leave(code, participantID(w, r, req.PlayerID))
			if err != nil {
				writeError(w, err)
				return
			}
			if deleted {
				s.hub.CloseRoom(room.Code)
			}
			writeJSON(w, http.StatusOK, roomResponse{Success: true, Room: room, Deleted: deleted})

		default:
			writeError(w, invalid("action must be join or leave"))
		}
	}
}

type updateRoomRequest struct {
	HostID string       `json:"hostId"`
	Status rooms.Status `json:"status"`
}

// hostRoom loads the room and checks that hostID owns it.
func (s *server) hostRoom(code, hostID string) (rooms.Room, error) {
	room, err := s.rooms.Get(code)
	if err != nil {
		return rooms.Room{}, err
	}
	if hostID == "" || room.HostID != hostID {
		return rooms.Room{}, errNotHost
	}
	return room, nil
}

func (s *server) serveUpdateRoom() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(s.cfg, w)

		var req updateRoomRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		room, err := s.hostRoom(p.ByName("code"), participantID(w, r, req.HostID))
		if err != nil {
			writeError(w, err)
			return
		}

		room, err = s.rooms.UpdateStatus(room.Code, req.Status)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, roomResponse{Success: true, Room: room, CanJoin: room.CanJoin()})
	}
}

func (s *server) serveDeleteRoom() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(s.cfg, w)

		room, err := s.hostRoom(p.ByName("code"), participantID(w, r, r.URL.Query().Get("hostId")))
		if err != nil {
			writeError(w, err)
			return
		}

		s.rooms.Delete(room.Code)
		s.hub.CloseRoom(room.Code)

		writeJSON(w, http.StatusOK, roomResponse{Success: true, Room: room, Deleted: true})
	}
}
