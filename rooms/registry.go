/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	DefaultTTL           = 4 * time.Hour
	DefaultSweepInterval = 30 * time.Minute
	DefaultMaxPlayers    = 10

	// codeAttempts bounds retries when a generated code is already taken.
	codeAttempts = 10
)

// Status is the lifecycle phase of a room as seen by the lobby.
type Status string

const (
	StatusLobby          Status = "lobby"
	StatusCategorySelect Status = "category-select"
	StatusPlaying        Status = "playing"
	StatusFinished       Status = "finished"
)

func (s Status) Valid() bool {
	switch s {
	case StatusLobby, StatusCategorySelect, StatusPlaying, StatusFinished:
		return true
	}
	return false
}

// Options are the host-chosen settings for a new room. Values are stored as
// given; input validation belongs to the caller.
type Options struct {
	Name            string
	MaxPlayers      int
	IsPrivate       bool
	IsTeamMode      bool
	MeetingLink     string
	MeetingPassword string
	Description     string
}

type Room struct {
	Code            string    `json:"code"`
	Name            string    `json:"roomName"`
	HostID          string    `json:"hostId"`
	HostName        string    `json:"hostName"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	PlayerCount     int       `json:"playerCount"`
	MaxPlayers      int       `json:"maxPlayers"`
	Status          Status    `json:"status"`
	IsPrivate       bool      `json:"isPrivate"`
	IsTeamMode      bool      `json:"isTeamMode"`
	MeetingLink     string    `json:"zoomLink,omitempty"`
	MeetingPassword string    `json:"zoomPassword,omitempty"`
	Description     string    `json:"description,omitempty"`
}

// CanJoin reports whether a join would currently succeed.
func (r Room) CanJoin() bool {
	return r.Status == StatusLobby && r.PlayerCount < r.MaxPlayers
}

// Registry owns every live room. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	ttl        time.Duration
	defaultMax int
	now        func() time.Time
	logger     *slog.Logger
	onExpire   func(code string)
}

type Option func(*Registry)

func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithDefaultMaxPlayers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.defaultMax = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithExpireHook registers fn to be called, with the registry locked, for
// every room removed because its lifetime ran out.
func WithExpireHook(fn func(code string)) Option {
	return func(r *Registry) {
		r.onExpire = fn
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:      make(map[string]*Room),
		ttl:        DefaultTTL,
		defaultMax: DefaultMaxPlayers,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lookupLocked returns the room for code, deleting it first if expired.
func (r *Registry) lookupLocked(code string) (*Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !r.now().Before(room.ExpiresAt) {
		r.expireLocked(code)
		r.logger.Info("ROOMS: Expired room", "room", code)
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *Registry) expireLocked(code string) {
	delete(r.rooms, code)
	if r.onExpire != nil {
		r.onExpire(code)
	}
}

// Create registers a room under code with the host as its only player.
func (r *Registry) Create(code, hostID, hostName string, opts Options) (Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Room{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.lookupLocked(code); err == nil {
		return Room{}, ErrCodeTaken
	}

	now := r.now()
	room := &Room{
		Code:            code,
		Name:            opts.Name,
		HostID:          hostID,
		HostName:        hostName,
		CreatedAt:       now,
		ExpiresAt:       now.Add(r.ttl),
		PlayerCount:     1,
		MaxPlayers:      opts.MaxPlayers,
		Status:          StatusLobby,
		IsPrivate:       opts.IsPrivate,
		IsTeamMode:      opts.IsTeamMode,
		MeetingLink:     opts.MeetingLink,
		MeetingPassword: opts.MeetingPassword,
		Description:     opts.Description,
	}
	if room.MaxPlayers <= 0 {
		room.MaxPlayers = r.defaultMax
	}
	if room.Name == "" {
		room.Name = hostName + "'s Game"
	}

	r.rooms[code] = room

	r.logger.Info("ROOMS: Created room",
		"room", code,
		"host", hostID,
		"max_players", room.MaxPlayers,
		"private", room.IsPrivate,
	)

	return *room, nil
}

// CreateUnique creates a room under a freshly generated code, retrying on
// collisions a bounded number of times.
func (r *Registry) CreateUnique(hostID, hostName string, opts Options) (Room, error) {
	for range codeAttempts {
		code, err := NewCode()
		if err != nil {
			return Room{}, fmt.Errorf("generate room code: %w", err)
		}

		room, err := r.Create(code, hostID, hostName, opts)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		return room, err
	}
	return Room{}, fmt.Errorf("generate room code: %w after %d attempts", ErrCodeTaken, codeAttempts)
}

func (r *Registry) Get(code string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.lookupLocked(code)
	if err != nil {
		return Room{}, err
	}
	return *room, nil
}

// Join adds one player to the room.
func (r *Registry) Join(code string) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.lookupLocked(code)
	if err != nil {
		return Room{}, err
	}
	if room.PlayerCount >= room.MaxPlayers {
		return *room, ErrRoomFull
	}
	if room.Status != StatusLobby {
		return *room, ErrGameInProgress
	}

	room.PlayerCount++

	r.logger.Debug("ROOMS: Player joined", "room", room.Code, "players", room.PlayerCount)

	return *room, nil
}

// Leave removes one player from the room. The room is deleted as soon as
// its count reaches zero; deleted reports whether that happened.
func (r *Registry) Leave(code, playerID string) (room Room, deleted bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, err := r.lookupLocked(code)
	if err != nil {
		return Room{}, false, err
	}

	if rm.PlayerCount > 0 {
		rm.PlayerCount--
	}

	r.logger.Debug("ROOMS: Player left", "room", rm.Code, "player", playerID, "players", rm.PlayerCount)

	if rm.PlayerCount == 0 {
		delete(r.rooms, rm.Code)
		r.logger.Info("ROOMS: Deleted empty room", "room", rm.Code)
		return *rm, true, nil
	}
	return *rm, false, nil
}

// UpdateStatus sets the room's lifecycle status. Authority is checked by
// the caller.
func (r *Registry) UpdateStatus(code string, status Status) (Room, error) {
	if !status.Valid() {
		return Room{}, ErrInvalidStatus
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.lookupLocked(code)
	if err != nil {
		return Room{}, err
	}
	room.Status = status

	r.logger.Info("ROOMS: Updated status", "room", room.Code, "status", status)

	return *room, nil
}

// Delete removes the room. Authority is checked by the caller.
func (r *Registry) Delete(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.lookupLocked(code)
	if err != nil {
		return false
	}
	delete(r.rooms, room.Code)

	r.logger.Info("ROOMS: Deleted room", "room", room.Code)

	return true
}

func (r *Registry) list(keep func(*Room) bool) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	out := make([]Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		if !now.Before(room.ExpiresAt) || !keep(room) {
			continue
		}
		out = append(out, *room)
	}
	slices.SortFunc(out, func(a, b Room) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Public lists open lobby rooms, newest first.
func (r *Registry) Public() []Room {
	return r.list(func(room *Room) bool {
		return !room.IsPrivate && room.Status == StatusLobby
	})
}

// All lists every unexpired room, newest first.
func (r *Registry) All() []Room {
	return r.list(func(*Room) bool { return true })
}

// SweepExpired deletes every room past its expiry and returns how many.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for code, room := range r.rooms {
		if !now.Before(room.ExpiresAt) {
			r.expireLocked(code)
			removed++
		}
	}

	if removed > 0 {
		r.logger.Info("ROOMS: Swept expired rooms", "removed", removed, "remaining", len(r.rooms))
	}

	return removed
}

// Run sweeps expired rooms every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepExpired()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}
