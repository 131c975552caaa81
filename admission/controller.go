/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

var ErrUnknownConnection = errors.New("unknown connection")

const (
	ReasonAtCapacity = "Server at capacity"
	ReasonRoomFull   = "Room is full"
)

// Limits bound how many relay subscriptions may be live at once.
type Limits struct {
	MaxTotal         int           `json:"maxConnections"`
	MaxPerRoom       int           `json:"maxPerRoom"`
	WarningThreshold int           `json:"warningThreshold"`
	PingTimeout      time.Duration `json:"-"`
	SweepInterval    time.Duration `json:"-"`
}

// DefaultLimits leave headroom under a relay with a hard cap of 100.
func DefaultLimits() Limits {
	return Limits{
		MaxTotal:         90,
		MaxPerRoom:       15,
		WarningThreshold: 80,
		PingTimeout:      60 * time.Second,
		SweepInterval:    30 * time.Second,
	}
}

type Connection struct {
	ParticipantID string    `json:"participantId"`
	RoomCode      string    `json:"roomCode"`
	ConnectedAt   time.Time `json:"connectedAt"`
	LastPing      time.Time `json:"lastPing"`
}

type Stats struct {
	TotalConnections int            `json:"totalConnections"`
	AvailableSlots   int            `json:"availableSlots"`
	IsAtCapacity     bool           `json:"isAtCapacity"`
	IsNearCapacity   bool           `json:"isNearCapacity"`
	RoomCounts       map[string]int `json:"roomCounts"`
	ActiveRooms      int            `json:"activeRooms"`
}

// Decision is the outcome of an admission check. Position is only set
// when the server as a whole is full.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Position int    `json:"position,omitempty"`
	Stats    Stats  `json:"stats"`
}

// Controller tracks live connections against the global and per-room
// ceilings and owns the waiting room fed by refusals.
type Controller struct {
	mu       sync.Mutex
	limits   Limits
	conns    map[string]*Connection
	promoted map[string]time.Time
	waiting  *WaitingRoom
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewController(limits Limits, opts ...Option) *Controller {
	c := &Controller{
		limits:   limits,
		conns:    make(map[string]*Connection),
		promoted: make(map[string]time.Time),
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.waiting = NewWaitingRoom(c.now)
	return c
}

func (c *Controller) Limits() Limits {
	return c.limits
}

func (c *Controller) Waiting() *WaitingRoom {
	return c.waiting
}

func (c *Controller) roomCountLocked(roomCode string) int {
	n := 0
	for _, conn := range c.conns {
		if conn.RoomCode == roomCode {
			n++
		}
	}
	return n
}

func (c *Controller) statsLocked() Stats {
	counts := make(map[string]int)
	for _, conn := range c.conns {
		counts[conn.RoomCode]++
	}

	total := len(c.conns)
	return Stats{
		TotalConnections: total,
		AvailableSlots:   max(c.limits.MaxTotal-total, 0),
		IsAtCapacity:     total >= c.limits.MaxTotal,
		IsNearCapacity:   total >= c.limits.WarningThreshold,
		RoomCounts:       counts,
		ActiveRooms:      len(counts),
	}
}

func (c *Controller) decideLocked(roomCode string) Decision {
	stats := c.statsLocked()

	if stats.IsAtCapacity {
		return Decision{
			Reason:   ReasonAtCapacity,
			Position: stats.TotalConnections - c.limits.MaxTotal + 1,
			Stats:    stats,
		}
	}
	if stats.RoomCounts[roomCode] >= c.limits.MaxPerRoom {
		return Decision{Reason: ReasonRoomFull, Stats: stats}
	}
	return Decision{Allowed: true, Stats: stats}
}

// CanConnect reports whether a new connection to roomCode would be
// admitted right now.
func (c *Controller) CanConnect(roomCode string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return c.decideLocked(roomCode)
}

// Register admits the participant. It sweeps stale connections and
// re-checks capacity under the lock, so false means the slot was taken
// since the last check and the caller should run the admission flow again.
// An id that is already connected moves to roomCode without taking another
// slot.
func (c *Controller) Register(id, roomCode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	now := c.now()

	if conn, ok := c.conns[id]; ok {
		if conn.RoomCode != roomCode && c.roomCountLocked(roomCode) >= c.limits.MaxPerRoom {
			return false
		}
		conn.RoomCode = roomCode
		conn.LastPing = now
		return true
	}

	if !c.decideLocked(roomCode).Allowed {
		return false
	}

	c.conns[id] = &Connection{
		ParticipantID: id,
		RoomCode:      roomCode,
		ConnectedAt:   now,
		LastPing:      now,
	}
	delete(c.promoted, id)
	c.waiting.Remove(id)

	c.logger.Debug("CONNS: Registered connection",
		"participant", id,
		"room", roomCode,
		"total", len(c.conns),
	)

	return true
}

// Ping refreshes the heartbeat. It returns false once the connection has
// been swept or disconnected.
func (c *Controller) Ping(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[id]
	if !ok {
		return false
	}
	conn.LastPing = c.now()
	return true
}

// Disconnect drops the connection and any waiting room entry for id. It
// returns false if no connection was live.
func (c *Controller) Disconnect(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waiting.Remove(id)
	delete(c.promoted, id)

	if _, ok := c.conns[id]; !ok {
		return false
	}
	delete(c.conns, id)

	c.logger.Debug("CONNS: Disconnected", "participant", id, "total", len(c.conns))

	return true
}

func (c *Controller) Connection(id string) (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[id]
	if !ok {
		return Connection{}, ErrUnknownConnection
	}
	return *conn, nil
}

func (c *Controller) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.conns[id]
	return ok
}

// RoomConnections counts live connections for roomCode.
func (c *Controller) RoomConnections(roomCode string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roomCountLocked(roomCode)
}

// Stats sweeps stale connections, then summarizes what is left.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return c.statsLocked()
}

func (c *Controller) sweepLocked() int {
	cutoff := c.now().Add(-c.limits.PingTimeout)

	removed := 0
	for id, conn := range c.conns {
		if conn.LastPing.Before(cutoff) {
			delete(c.conns, id)
			removed++
		}
	}
	for id, at := range c.promoted {
		if at.Before(cutoff) {
			delete(c.promoted, id)
		}
	}

	if removed > 0 {
		c.logger.Info("CONNS: Swept stale connections", "removed", removed, "remaining", len(c.conns))
	}

	return removed
}

// Sweep removes connections whose last heartbeat is older than the ping
// timeout and returns how many were removed.
func (c *Controller) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweepLocked()
}

// Promote moves waiting participants out of the queue, oldest first, while
// global slots are free. It stops at the first entry whose room is full,
// so later entries for other rooms wait behind it. Promoted participants
// who have not connected yet still count against the free slots here, but
// CanConnect holds nothing back for them.
func (c *Controller) Promote() []WaitingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.statsLocked()
	free := stats.AvailableSlots - len(c.promoted)

	var out []WaitingEntry
	for ; free > 0; free-- {
		head, ok := c.waiting.Peek()
		if !ok {
			break
		}
		if stats.RoomCounts[head.RoomCode] >= c.limits.MaxPerRoom {
			break
		}
		e, _ := c.waiting.Next()
		c.promoted[e.ParticipantID] = c.now()
		out = append(out, e)
	}

	if len(out) > 0 {
		c.logger.Info("CONNS: Promoted from waiting room", "promoted", len(out), "waiting", c.waiting.Len())
	}

	return out
}

// WaitingStatus reports the participant's queue position, or promoted if
// they have been let through and may now connect.
func (c *Controller) WaitingStatus(id string) (position int, promoted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.promoted[id]; ok {
		return 0, true
	}
	return c.waiting.Position(id), false
}

// Run sweeps and promotes on every tick until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.limits.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
			c.Promote()
		}
	}
}
