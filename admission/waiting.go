/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package admission

import (
	"slices"
	"sync"
	"time"
)

type WaitingEntry struct {
	ParticipantID string    `json:"participantId"`
	RoomCode      string    `json:"roomCode"`
	DisplayName   string    `json:"displayName"`
	JoinedAt      time.Time `json:"joinedAt"`

	seq uint64
}

func (e WaitingEntry) before(o WaitingEntry) int {
	if c := e.JoinedAt.Compare(o.JoinedAt); c != 0 {
		return c
	}
	switch {
	case e.seq < o.seq:
		return -1
	case e.seq > o.seq:
		return 1
	}
	return 0
}

// WaitingRoom is a single FIFO queue shared by every room. Entries are
// ranked by join time, with insertion order breaking ties.
type WaitingRoom struct {
	mu      sync.Mutex
	entries []WaitingEntry
	seq     uint64
	now     func() time.Time
}

func NewWaitingRoom(now func() time.Time) *WaitingRoom {
	if now == nil {
		now = time.Now
	}
	return &WaitingRoom{now: now}
}

func (w *WaitingRoom) indexLocked(id string) int {
	return slices.IndexFunc(w.entries, func(e WaitingEntry) bool { return e.ParticipantID == id })
}

// Add queues the participant and returns their 1-based position. A
// participant already in the queue keeps their original place.
func (w *WaitingRoom) Add(id, roomCode, name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i := w.indexLocked(id); i >= 0 {
		return i + 1
	}

	w.seq++
	e := WaitingEntry{
		ParticipantID: id,
		RoomCode:      roomCode,
		DisplayName:   name,
		JoinedAt:      w.now(),
		seq:           w.seq,
	}

	i, _ := slices.BinarySearchFunc(w.entries, e, WaitingEntry.before)
	w.entries = slices.Insert(w.entries, i, e)

	return i + 1
}

// Position returns the participant's 1-based rank, or 0 if not queued.
func (w *WaitingRoom) Position(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.indexLocked(id) + 1
}

// Peek returns the oldest entry without removing it.
func (w *WaitingRoom) Peek() (WaitingEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == 0 {
		return WaitingEntry{}, false
	}
	return w.entries[0], true
}

// Next removes and returns the oldest entry across all rooms.
func (w *WaitingRoom) Next() (WaitingEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) == 0 {
		return WaitingEntry{}, false
	}
	e := w.entries[0]
	w.entries = slices.Delete(w.entries, 0, 1)
	return e, true
}

func (w *WaitingRoom) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexLocked(id)
	if i < 0 {
		return false
	}
	w.entries = slices.Delete(w.entries, i, i+1)
	return true
}

func (w *WaitingRoom) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.entries)
}
