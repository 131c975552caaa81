/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Publisher sends a locally applied event to the other replicas in a room.
type Publisher interface {
	Publish(ctx context.Context, roomCode, sender string, ev Event) error
}

// Session binds one participant's Game replica to the relay. Local
// mutations apply immediately and are then published; inbound envelopes
// are applied strictly in relay sequence order. A Session is owned by a
// single goroutine.
type Session struct {
	game   *Game
	self   string
	pub    Publisher
	logger *slog.Logger

	lastSeq     uint64
	synced      bool
	pending     map[uint64]Envelope
	undelivered int

	// confirmed is the state produced by sequenced envelopes alone. It is
	// only kept while local events await their echo; the live game is
	// confirmed plus unconfirmed, replayed in order.
	confirmed   *Game
	unconfirmed []Event

	countdown Countdown
	window    string
}

func NewSession(game *Game, participantID string, pub Publisher, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		game:    game,
		self:    participantID,
		pub:     pub,
		logger:  logger,
		pending: make(map[uint64]Envelope),
	}
}

func (s *Session) Game() *Game {
	return s.game
}

// LastSeq is the sequence number of the newest envelope consumed.
func (s *Session) LastSeq() uint64 {
	return s.lastSeq
}

// Undelivered counts local events whose publish failed. Peers never saw
// them, so their replicas have diverged from this one.
func (s *Session) Undelivered() int {
	return s.undelivered
}

// Do applies ev locally, then publishes it. A ValidationError is returned
// before anything is published. Publish failures are logged and counted
// but not returned; the local mutation stands either way.
//
// Until the relay echoes ev back, it stays unconfirmed: envelopes from
// other participants sequenced ahead of it are applied first and ev is
// replayed on top, so this replica ends up in the relay's order.
func (s *Session) Do(ctx context.Context, ev Event) error {
	// Echoes can only be matched once the session follows the relay.
	track := s.pub != nil && s.synced

	var snapshot *Game
	if track && s.confirmed == nil {
		snapshot = s.game.fork()
	}

	if err := s.game.Apply(ev); err != nil {
		return err
	}
	s.pace()

	if s.pub == nil {
		return nil
	}

	if err := s.pub.Publish(ctx, s.game.state.RoomCode, s.self, ev); err != nil {
		s.undelivered++
		s.logger.Warn("RELAY: Publish failed, peers will diverge",
			"room", s.game.state.RoomCode,
			"event", ev.Kind(),
			"err", err,
		)
		// No echo will come. Keep the change in the base every replay
		// starts from so later rebuilds do not undo it.
		if s.confirmed != nil {
			_ = s.confirmed.Apply(ev)
		}
		return nil
	}

	if !track {
		return nil
	}
	if snapshot != nil {
		s.confirmed = snapshot
	}
	s.unconfirmed = append(s.unconfirmed, ev)

	return nil
}

// Unconfirmed counts published local events the relay has not echoed yet.
func (s *Session) Unconfirmed() int {
	return len(s.unconfirmed)
}

// Sync sets the relay sequence this session starts after. Envelopes at or
// below seq are treated as already seen.
func (s *Session) Sync(seq uint64) {
	s.lastSeq = seq
	s.synced = true
	for k := range s.pending {
		if k <= seq {
			delete(s.pending, k)
		}
	}
	s.drain()
}

// Receive consumes one envelope from the relay. Envelopes that arrive
// before Sync are buffered. Duplicates are dropped, gaps are buffered until
// filled, and echoes of this participant's own events advance the sequence
// without being applied twice.
func (s *Session) Receive(env Envelope) error {
	if env.Seq == 0 || (env.RoomCode != "" && env.RoomCode != s.game.state.RoomCode) {
		return nil
	}

	if s.synced && env.Seq <= s.lastSeq {
		return nil
	}

	s.pending[env.Seq] = env

	if !s.synced {
		// Held until Sync says where the stream starts.
		return nil
	}

	return s.drain()
}

func (s *Session) drain() error {
	var firstErr error
	for {
		env, ok := s.pending[s.lastSeq+1]
		if !ok {
			return firstErr
		}
		delete(s.pending, env.Seq)
		s.lastSeq = env.Seq

		err := s.consume(env)
		s.pace()
		if err != nil {
			s.logger.Debug("GAMES: Dropped inbound event",
				"room", env.RoomCode,
				"seq", env.Seq,
				"event", env.Event,
				"err", err,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
}

// consume applies one envelope in sequence order.
func (s *Session) consume(env Envelope) error {
	own := env.Sender != "" && env.Sender == s.self

	if s.confirmed == nil {
		if own {
			return nil
		}
		ev, err := env.Decode()
		if err != nil {
			return err
		}
		return s.game.Apply(ev)
	}

	ev, err := env.Decode()
	if err == nil {
		err = s.confirmed.Apply(ev)
	}

	if own {
		// The oldest unconfirmed event now sits in the base at its relay
		// position; the live game already reflects that order.
		s.unconfirmed = s.unconfirmed[1:]
		if len(s.unconfirmed) == 0 {
			s.confirmed = nil
		}
		return err
	}
	if err != nil {
		return err
	}

	s.rebuild()
	return nil
}

// rebuild replays unconfirmed local events on top of the confirmed base.
// Events that no longer apply are dropped from the live view; their echo
// fails the same way on every replica.
func (s *Session) rebuild() {
	s.game.state = s.confirmed.state.clone()
	for _, ev := range s.unconfirmed {
		if err := s.game.Apply(ev); err != nil {
			s.logger.Debug("GAMES: Local event no longer applies",
				"room", s.game.state.RoomCode,
				"event", ev.Kind(),
				"err", err,
			)
		}
	}
}

// pace arms the answer countdown when a clue opens and stops it once the
// clue closes. Buzzing keeps the window of the clue it interrupted.
func (s *Session) pace() {
	st := &s.game.state

	window := ""
	switch {
	case st.Status == StatusFinalQuestion:
		window = "final"
	case (st.Status == StatusQuestion || st.Status == StatusBuzzing) && st.CurrentQuestion != nil:
		window = st.CurrentQuestion.ID
	}

	if window == s.window {
		return
	}
	s.window = window

	if window == "" {
		s.countdown.Stop()
		return
	}
	s.countdown.Start(s.game.AnswerWindow(), nil)
}

// Remaining is the time left on the current answer window, or zero when no
// clue is open.
func (s *Session) Remaining() time.Duration {
	return s.countdown.Remaining()
}

// Buffered reports how many out-of-order envelopes are waiting on a gap.
func (s *Session) Buffered() int {
	return len(s.pending)
}
