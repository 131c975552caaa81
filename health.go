/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Goroutines  int    `json:"goroutines"`
	Rooms       int    `json:"rooms"`
	Connections int    `json:"connections"`
	Waiting     int    `json:"waiting"`
}

func (s *server) serveHealthCheck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s.cfg, w)

		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "ok",
			Version:     releaseVersion,
			Uptime:      time.Since(s.started).Round(time.Second).String(),
			Goroutines:  runtime.NumGoroutine(),
			Rooms:       s.rooms.Len(),
			Connections: s.conns.Stats().TotalConnections,
			Waiting:     s.conns.Waiting().Len(),
		})
	}
}

func (s *server) serveVersion() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(s.cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("triviabox v" + releaseVersion + "\n"))
		if err != nil {
			s.logger.Debug("SERVE: Failed to write version", "err", err)
			return
		}

		s.logger.Debug("SERVE: Version page",
			"size", humanReadableSize(int64(written)),
			"client", clientIP(r),
			"elapsed", time.Since(startTime).Round(time.Microsecond),
		)
	}
}

const robots = `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: *
Disallow: /rooms
Disallow: /game
`

func (s *server) serveRobots() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(robots)))
		securityHeaders(s.cfg, w)

		_, _ = w.Write([]byte(robots))
	}
}
