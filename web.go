/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/triviabox/admission"
	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/Seednode/triviabox/relay"
	"github.com/Seednode/triviabox/rooms"
	"github.com/julienschmidt/httprouter"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

// server bundles the stores every handler shares.
type server struct {
	cfg     *Config
	logger  *slog.Logger
	started time.Time

	bank    *jeopardy.Bank
	rooms   *rooms.Registry
	conns   *admission.Controller
	hub     *relay.Hub
	limiter *relay.Limiter
}

func newServer(cfg *Config, logger *slog.Logger) (*server, error) {
	bank, err := jeopardy.DefaultBank()
	if err != nil {
		return nil, err
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	hub := relay.NewHub(logger)

	return &server{
		cfg:     cfg,
		logger:  logger,
		started: time.Now(),
		bank:    bank,
		rooms: rooms.NewRegistry(
			rooms.WithTTL(cfg.roomTTL),
			rooms.WithDefaultMaxPlayers(cfg.maxPlayers),
			rooms.WithLogger(logger),
			rooms.WithExpireHook(hub.CloseRoom),
		),
		conns:   admission.NewController(cfg.limits(), admission.WithLogger(logger)),
		hub:     hub,
		limiter: relay.NewLimiter(cfg.broadcastLimit, cfg.broadcastWindow),
	}, nil
}

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

// clientIP picks the address a request is attributed to, preferring
// headers set by a trusted reverse proxy.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); net.ParseIP(ip) != nil {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); net.ParseIP(ip) != nil {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) routes() *httprouter.Router {
	mux := httprouter.New()
	p := s.cfg.prefix

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		s.logger.Error("SERVE: Recovered from panic",
			"path", r.URL.Path,
			"panic", fmt.Sprint(i),
		)
		securityHeaders(s.cfg, w)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An error has occurred. Please try again."})
	}

	mux.GET(p+"/healthz", s.serveHealthCheck())
	mux.GET(p+"/robots.txt", s.serveRobots())
	mux.GET(p+"/version", s.serveVersion())

	mux.GET(p+"/rooms", s.serveListRooms())
	mux.POST(p+"/rooms", s.serveCreateRoom())
	mux.GET(p+"/rooms/:code", s.serveGetRoom())
	mux.POST(p+"/rooms/:code", s.serveRoomAction())
	mux.PATCH(p+"/rooms/:code", s.serveUpdateRoom())
	mux.DELETE(p+"/rooms/:code", s.serveDeleteRoom())
	mux.GET(p+"/rooms/:code/qr", s.serveRoomQR())
	mux.GET(p+"/rooms/:code/ws", s.serveRelay())

	mux.POST(p+"/connections", s.serveConnections())
	mux.GET(p+"/connections/status", s.serveConnectionStatus())

	mux.POST(p+"/game/broadcast", s.serveBroadcast())
	mux.GET(p+"/game/categories", s.serveCategories())

	if s.cfg.profile {
		registerProfileHandlers(s.cfg, mux)
	}

	return mux
}

// runSweepers drives every periodic cleanup until ctx is done.
func (s *server) runSweepers(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Go(func() { s.rooms.Run(ctx, s.cfg.roomSweepInterval) })
	wg.Go(func() { s.conns.Run(ctx) })
	wg.Go(func() { s.limiter.Run(ctx, s.limiter.Window()*10) })

	wg.Wait()
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logger := newLogger(cfg, nil)

	logger.Info("START: triviabox v" + releaseVersion)

	s, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           s.routes(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go s.runSweepers(ctx)

	go func() {
		logger.Info(fmt.Sprintf("SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix))

		var err error
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("SERVE: Listener failed", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("START: Shut down")

	return nil
}
