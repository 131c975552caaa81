/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// joinURL is the link a scanned invite opens.
func (s *server) joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     s.cfg.prefix + "/",
		RawQuery: url.Values{"room": {code}}.Encode(),
	}
	return u.String()
}

func (s *server) serveRoomQR() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		room, err := s.rooms.Get(p.ByName("code"))
		if err != nil {
			writeError(w, err)
			return
		}

		png, err := qrcode.Encode(s.joinURL(r, room.Code), qrcode.Medium, qrSize)
		if err != nil {
			s.logger.Error("ROOMS: QR generation failed", "room", room.Code, "err", err)
			writeError(w, err)
			return
		}

		securityHeaders(s.cfg, w)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		_, _ = w.Write(png)
	}
}
