/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/Seednode/triviabox/admission"
	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/Seednode/triviabox/rooms"
	"github.com/lmittmann/tint"
)

var (
	errInvalidInput = errors.New("invalid input")
	errNotHost      = errors.New("only the host can do that")
	errNotAdmitted  = errors.New("participant has not been admitted to this room")
)

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: logDate,
	}))
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	var verr *jeopardy.ValidationError

	switch {
	case errors.Is(err, errInvalidInput),
		errors.Is(err, rooms.ErrInvalidCode),
		errors.Is(err, rooms.ErrInvalidStatus),
		errors.Is(err, rooms.ErrRoomFull),
		errors.Is(err, rooms.ErrGameInProgress),
		errors.Is(err, jeopardy.ErrUnknownEvent),
		errors.Is(err, jeopardy.ErrBadPayload),
		errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, errNotHost), errors.Is(err, errNotAdmitted):
		return http.StatusForbidden
	case errors.Is(err, rooms.ErrRoomNotFound), errors.Is(err, admission.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, rooms.ErrCodeTaken):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}
