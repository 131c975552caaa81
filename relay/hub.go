/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

type FrameType string

const (
	// FrameWelcome is the first frame on every subscription. Its Seq is the
	// last sequence number assigned in the room before the subscriber joined.
	FrameWelcome FrameType = "welcome"
	FrameEvent   FrameType = "event"
)

type Frame struct {
	Type     FrameType          `json:"type"`
	Seq      uint64             `json:"seq"`
	Envelope *jeopardy.Envelope `json:"envelope,omitempty"`
}

type subscriber struct {
	participantID string
	send          chan Frame
}

type channel struct {
	seq  uint64
	subs map[*subscriber]bool
}

// Hooks let the caller observe a subscription's lifetime.
type Hooks struct {
	// OnMessage runs for every frame the subscriber sends upstream.
	OnMessage func()
	// OnClose runs once the subscription has ended.
	OnClose func()
}

// Hub fans events out to every subscriber of a room, stamping each with
// the room's next sequence number so all replicas apply them in the same
// order.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
	now      func() time.Time
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		channels: make(map[string]*channel),
		now:      time.Now,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Hub) channelLocked(roomCode string) *channel {
	ch, ok := h.channels[roomCode]
	if !ok {
		ch = &channel{subs: make(map[*subscriber]bool)}
		h.channels[roomCode] = ch
	}
	return ch
}

// Publish validates the event, assigns it the room's next sequence number
// and queues it for every subscriber. Subscribers too slow to keep up are
// dropped rather than allowed to stall the room.
func (h *Hub) Publish(roomCode, sender string, kind jeopardy.Kind, data json.RawMessage) (jeopardy.Envelope, error) {
	if _, err := jeopardy.DecodeEvent(kind, data); err != nil {
		return jeopardy.Envelope{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := h.channelLocked(roomCode)
	ch.seq++

	env := jeopardy.Envelope{
		ID:       uuid.NewString(),
		Seq:      ch.seq,
		RoomCode: roomCode,
		Sender:   sender,
		Event:    kind,
		Data:     data,
		SentAt:   h.now().UTC(),
	}
	frame := Frame{Type: FrameEvent, Seq: env.Seq, Envelope: &env}

	for sub := range ch.subs {
		select {
		case sub.send <- frame:
		default:
			delete(ch.subs, sub)
			close(sub.send)
			h.logger.Warn("RELAY: Dropped slow subscriber",
				"room", roomCode,
				"participant", sub.participantID,
			)
		}
	}

	h.logger.Debug("RELAY: Published event",
		"room", roomCode,
		"seq", env.Seq,
		"event", kind,
		"subscribers", len(ch.subs),
	)

	return env, nil
}

// Serve upgrades the request and streams the room's events to it until
// either side closes. It blocks for the lifetime of the subscription.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, roomCode, participantID string, hooks Hooks) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{
		participantID: participantID,
		send:          make(chan Frame, sendBuffer),
	}

	h.mu.Lock()
	ch := h.channelLocked(roomCode)
	sub.send <- Frame{Type: FrameWelcome, Seq: ch.seq}
	ch.subs[sub] = true
	h.mu.Unlock()

	h.logger.Debug("RELAY: Subscribed",
		"room", roomCode,
		"participant", participantID,
	)

	go writePump(conn, sub.send)

	defer func() {
		h.unsubscribe(roomCode, sub)
		_ = conn.Close()
		if hooks.OnClose != nil {
			hooks.OnClose()
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
		if hooks.OnMessage != nil {
			hooks.OnMessage()
		}
	}
}

func (h *Hub) unsubscribe(roomCode string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[roomCode]
	if !ok {
		return
	}
	if _, ok := ch.subs[sub]; ok {
		delete(ch.subs, sub)
		close(sub.send)
	}

	h.logger.Debug("RELAY: Unsubscribed",
		"room", roomCode,
		"participant", sub.participantID,
	)
}

func writePump(conn *websocket.Conn, send <-chan Frame) {
	defer conn.Close()

	for frame := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Seq is the last sequence number assigned in the room.
func (h *Hub) Seq(roomCode string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.channels[roomCode]; ok {
		return ch.seq
	}
	return 0
}

func (h *Hub) Subscribers(roomCode string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.channels[roomCode]; ok {
		return len(ch.subs)
	}
	return 0
}

// CloseRoom ends every subscription to the room and forgets its sequence.
func (h *Hub) CloseRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[roomCode]
	if !ok {
		return
	}
	for sub := range ch.subs {
		delete(ch.subs, sub)
		close(sub.send)
	}
	delete(h.channels, roomCode)

	h.logger.Info("RELAY: Closed room", "room", roomCode)
}
