/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/triviabox/admission"
	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/Seednode/triviabox/relay"
	"github.com/Seednode/triviabox/rooms"
)

func testConfig() *Config {
	limits := admission.DefaultLimits()

	return &Config{
		bind:              "127.0.0.1",
		port:              8080,
		maxConnections:    limits.MaxTotal,
		maxPerRoom:        limits.MaxPerRoom,
		warningThreshold:  limits.WarningThreshold,
		pingTimeout:       limits.PingTimeout,
		sweepInterval:     limits.SweepInterval,
		maxPlayers:        rooms.DefaultMaxPlayers,
		roomTTL:           rooms.DefaultTTL,
		roomSweepInterval: rooms.DefaultSweepInterval,
		broadcastLimit:    relay.DefaultLimit,
		broadcastWindow:   relay.DefaultWindow,
		teamPenalty:       string(jeopardy.PenaltyHalf),
	}
}

func newTestServer(t *testing.T, cfg *Config) (*server, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}

	s, err := newServer(cfg, newLogger(cfg, io.Discard))
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)

	return s, ts
}

func do(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp
}

func createRoom(t *testing.T, ts *httptest.Server, req createRoomRequest) rooms.Room {
	t.Helper()

	var out roomResponse
	resp := do(t, http.MethodPost, ts.URL+"/rooms", req, &out)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d", resp.StatusCode)
	}
	return out.Room
}

func TestRoomLifecycle(t *testing.T) {
	_, ts := newTestServer(t, nil)

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex", MaxPlayers: 2})
	if len(room.Code) != rooms.CodeLength || room.PlayerCount != 1 || room.Name != "Alex's Game" {
		t.Fatalf("unexpected room: %+v", room)
	}

	var joined roomResponse
	resp := do(t, http.MethodPost, ts.URL+"/rooms/"+strings.ToLower(room.Code), roomActionRequest{Action: "join", PlayerName: "Sam"}, &joined)
	if resp.StatusCode != http.StatusOK || joined.Room.PlayerCount != 2 || joined.CanJoin {
		t.Fatalf("join: status %d, room %+v", resp.StatusCode, joined.Room)
	}

	var full errorResponse
	resp = do(t, http.MethodPost, ts.URL+"/rooms/"+room.Code, roomActionRequest{Action: "join"}, &full)
	if resp.StatusCode != http.StatusBadRequest || full.Error != rooms.ErrRoomFull.Error() {
		t.Fatalf("join full room: status %d, error %q", resp.StatusCode, full.Error)
	}

	resp = do(t, http.MethodGet, ts.URL+"/rooms/ZZZZZZ", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, ts.URL+"/rooms/nope", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed code: expected 400, got %d", resp.StatusCode)
	}

	var left roomResponse
	resp = do(t, http.MethodPost, ts.URL+"/rooms/"+room.Code, roomActionRequest{Action: "leave", PlayerID: "sam"}, &left)
	if resp.StatusCode != http.StatusOK || left.Room.PlayerCount != 1 || left.Deleted {
		t.Fatalf("leave: status %d, %+v", resp.StatusCode, left)
	}

	resp = do(t, http.MethodPost, ts.URL+"/rooms/"+room.Code, roomActionRequest{Action: "kick"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action: expected 400, got %d", resp.StatusCode)
	}
}

func TestHostOnlyActions(t *testing.T) {
	_, ts := newTestServer(t, nil)

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})
	url := ts.URL + "/rooms/" + room.Code

	resp := do(t, http.MethodPatch, url, updateRoomRequest{HostID: "intruder", Status: rooms.StatusPlaying}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("update by non-host: expected 403, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPatch, url, updateRoomRequest{HostID: "host", Status: "paused"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status: expected 400, got %d", resp.StatusCode)
	}

	var updated roomResponse
	resp = do(t, http.MethodPatch, url, updateRoomRequest{HostID: "host", Status: rooms.StatusPlaying}, &updated)
	if resp.StatusCode != http.StatusOK || updated.Room.Status != rooms.StatusPlaying {
		t.Fatalf("update by host: status %d, %+v", resp.StatusCode, updated.Room)
	}

	resp = do(t, http.MethodPost, url, roomActionRequest{Action: "join"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("join during game: expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, url+"?hostId=intruder", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("delete by non-host: expected 403, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, url+"?hostId=host", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete by host: expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, url, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted room: expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	_, ts := newTestServer(t, nil)

	for _, req := range []createRoomRequest{
		{HostName: ""},
		{HostName: "Alex", MaxPlayers: 1},
		{HostName: "Alex", MaxPlayers: 16},
		{HostName: "Alex", MeetingLink: "https://evil.example.com/j/1"},
	} {
		resp := do(t, http.MethodPost, ts.URL+"/rooms", req, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%+v: expected 400, got %d", req, resp.StatusCode)
		}
	}
}

func TestListRooms(t *testing.T) {
	_, ts := newTestServer(t, nil)

	createRoom(t, ts, createRoomRequest{HostID: "a", HostName: "Alex"})
	createRoom(t, ts, createRoomRequest{HostID: "b", HostName: "Blair", IsPrivate: true})

	var public roomListResponse
	do(t, http.MethodGet, ts.URL+"/rooms", nil, &public)
	if public.Count != 1 || public.Rooms[0].HostID != "a" {
		t.Fatalf("public listing: %+v", public)
	}

	var all roomListResponse
	do(t, http.MethodGet, ts.URL+"/rooms?all=true", nil, &all)
	if all.Count != 2 {
		t.Fatalf("expected 2 rooms, got %d", all.Count)
	}
}

func connect(t *testing.T, ts *httptest.Server, action, id, code string) connectionResponse {
	t.Helper()

	var out connectionResponse
	resp := do(t, http.MethodPost, ts.URL+"/connections", connectionRequest{
		Action:        action,
		ParticipantID: id,
		RoomCode:      code,
	}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s %s: expected 200, got %d", action, id, resp.StatusCode)
	}
	return out
}

func TestWaitingRoomFlow(t *testing.T) {
	s, ts := newTestServer(t, nil)

	limits := s.conns.Limits()
	for i := range limits.MaxTotal {
		code := fmt.Sprintf("ROOM%02d", i/limits.MaxPerRoom)
		if !s.conns.Register(fmt.Sprintf("p%d", i), code) {
			t.Fatalf("register p%d", i)
		}
	}

	late := connect(t, ts, "connect", "late", "LATE22")
	if late.Success || !late.InWaitingRoom || late.Position != 1 || late.Reason != admission.ReasonAtCapacity {
		t.Fatalf("connect at capacity: %+v", late)
	}

	status := connect(t, ts, "waiting-status", "late", "")
	if status.Position != 1 || status.Promoted || status.CanConnect {
		t.Fatalf("waiting status before promotion: %+v", status)
	}

	if !connect(t, ts, "disconnect", "p0", "").Success {
		t.Fatal("disconnect p0 failed")
	}

	if got := s.conns.Promote(); len(got) != 1 || got[0].ParticipantID != "late" {
		t.Fatalf("expected late to be promoted, got %+v", got)
	}

	status = connect(t, ts, "waiting-status", "late", "")
	if status.Position != 0 || !status.Promoted || !status.CanConnect {
		t.Fatalf("waiting status after promotion: %+v", status)
	}

	if ok := connect(t, ts, "connect", "late", "LATE22"); !ok.Success || ok.InWaitingRoom {
		t.Fatalf("connect after promotion: %+v", ok)
	}
	if !connect(t, ts, "ping", "late", "").Success {
		t.Fatal("ping after connect failed")
	}

	var st connectionStatusResponse
	do(t, http.MethodGet, ts.URL+"/connections/status", nil, &st)
	if st.Stats.TotalConnections != limits.MaxTotal || !st.Stats.IsAtCapacity || st.Waiting != 0 || st.Limits.MaxTotal != limits.MaxTotal {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestConnectRoomFull(t *testing.T) {
	s, ts := newTestServer(t, nil)

	for i := range s.conns.Limits().MaxPerRoom {
		s.conns.Register(fmt.Sprintf("p%d", i), "BUSY22")
	}

	out := connect(t, ts, "connect", "extra", "busy22")
	if out.Success || out.Reason != admission.ReasonRoomFull || !out.InWaitingRoom {
		t.Fatalf("connect to full room: %+v", out)
	}

	resp := do(t, http.MethodPost, ts.URL+"/connections", connectionRequest{Action: "teleport", ParticipantID: "x"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action: expected 400, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, ts.URL+"/connections", connectionRequest{Action: "connect", RoomCode: "BUSY22"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing participant: expected 400, got %d", resp.StatusCode)
	}
}

func nextFrame(t *testing.T, sub *relay.Subscription) relay.Frame {
	t.Helper()

	type result struct {
		f   relay.Frame
		err error
	}
	ch := make(chan result, 1)
	go func() {
		f, err := sub.Next()
		ch <- result{f, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("read frame: %v", r.err)
		}
		return r.f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return relay.Frame{}
}

func TestBroadcastReachesAdmittedSubscribers(t *testing.T) {
	s, ts := newTestServer(t, nil)
	ctx := context.Background()

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})
	client := relay.NewClient(ts.URL, nil)

	if _, err := client.Subscribe(ctx, room.Code, "mallory"); err == nil {
		t.Fatal("expected subscription without admission to be refused")
	}

	if !connect(t, ts, "connect", "alice", room.Code).Success {
		t.Fatal("connect alice failed")
	}

	var got roomResponse
	do(t, http.MethodGet, ts.URL+"/rooms/"+room.Code, nil, &got)
	if got.Connections != 1 {
		t.Fatalf("expected 1 live connection in the room, got %d", got.Connections)
	}

	sub, err := client.Subscribe(ctx, room.Code, "alice")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if f := nextFrame(t, sub); f.Type != relay.FrameWelcome || f.Seq != 0 {
		t.Fatalf("expected welcome at seq 0, got %+v", f)
	}

	if err := client.Publish(ctx, room.Code, "host", jeopardy.PlayerBuzzed{PlayerID: "alice", Time: 100}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	f := nextFrame(t, sub)
	if f.Type != relay.FrameEvent || f.Seq != 1 || f.Envelope == nil || f.Envelope.Event != jeopardy.KindPlayerBuzzed || f.Envelope.RoomCode != room.Code {
		t.Fatalf("unexpected frame: %+v", f)
	}

	if err := sub.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	if got := s.hub.Subscribers(room.Code); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	do(t, http.MethodDelete, ts.URL+"/rooms/"+room.Code+"?hostId=host", nil, nil)

	deadline := time.Now().Add(5 * time.Second)
	for s.conns.Has("alice") {
		if time.Now().After(deadline) {
			t.Fatal("closing the room did not release alice's connection")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastRejects(t *testing.T) {
	_, ts := newTestServer(t, nil)

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})

	for _, tc := range []struct {
		name   string
		req    relay.BroadcastRequest
		status int
	}{
		{"unknown event", relay.BroadcastRequest{RoomCode: room.Code, Event: "confetti"}, http.StatusBadRequest},
		{"bad payload", relay.BroadcastRequest{RoomCode: room.Code, Event: jeopardy.KindPlayerLeft, Data: json.RawMessage(`[1]`)}, http.StatusBadRequest},
		{"missing event", relay.BroadcastRequest{RoomCode: room.Code}, http.StatusBadRequest},
		{"unknown room", relay.BroadcastRequest{RoomCode: "ZZZZZZ", Event: jeopardy.KindBuzzReset}, http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/game/broadcast", tc.req, nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestBroadcastRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.broadcastLimit = 2
	cfg.broadcastWindow = time.Minute
	_, ts := newTestServer(t, cfg)

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})
	req := relay.BroadcastRequest{RoomCode: room.Code, Event: jeopardy.KindBuzzReset}

	for i := range 2 {
		var out broadcastResponse
		resp := do(t, http.MethodPost, ts.URL+"/game/broadcast", req, &out)
		if resp.StatusCode != http.StatusOK || out.Seq != uint64(i+1) {
			t.Fatalf("broadcast %d: status %d, %+v", i, resp.StatusCode, out)
		}
	}

	resp := do(t, http.MethodPost, ts.URL+"/game/broadcast", req, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}

	err := relay.NewClient(ts.URL, nil).Publish(context.Background(), room.Code, "host", jeopardy.BuzzReset{})
	if !errors.Is(err, relay.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRoomQR(t *testing.T) {
	_, ts := newTestServer(t, nil)

	room := createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})

	resp, err := http.Get(ts.URL + "/rooms/" + room.Code + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status %d, content type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatal("response is not a png")
	}

	if resp := do(t, http.MethodGet, ts.URL+"/rooms/ZZZZZZ/qr", nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: expected 404, got %d", resp.StatusCode)
	}
}

func TestJoinURL(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/trivia"
	s, err := newServer(cfg, newLogger(cfg, io.Discard))
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/trivia/rooms/ABCDEF/qr", nil)
	r.Host = "play.example.com"
	r.Header.Set("X-Forwarded-Proto", "https")

	if got, want := s.joinURL(r, "ABCDEF"), "https://play.example.com/trivia/?room=ABCDEF"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCategories(t *testing.T) {
	s, ts := newTestServer(t, nil)

	var out categoriesResponse
	resp := do(t, http.MethodGet, ts.URL+"/game/categories", nil, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(out.Categories) != len(s.bank.Categories) || len(out.Categories) < jeopardy.CategoriesPerBoard {
		t.Fatalf("expected %d categories, got %d", len(s.bank.Categories), len(out.Categories))
	}
	if out.TeamModePenalty != jeopardy.PenaltyHalf {
		t.Fatalf("expected half penalty, got %q", out.TeamModePenalty)
	}
}

func TestHealthAndVersion(t *testing.T) {
	_, ts := newTestServer(t, nil)

	createRoom(t, ts, createRoomRequest{HostID: "host", HostName: "Alex"})

	var health healthResponse
	resp := do(t, http.MethodGet, ts.URL+"/healthz", nil, &health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" || health.Rooms != 1 || health.Version != releaseVersion {
		t.Fatalf("unexpected health: %+v", health)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	r, err := http.Get(ts.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	if string(body) != "triviabox v"+releaseVersion+"\n" {
		t.Fatalf("unexpected version body %q", body)
	}
}

func TestPrefixedRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.prefix = "/trivia/"
	_, ts := newTestServer(t, cfg)

	if resp := do(t, http.MethodGet, ts.URL+"/trivia/healthz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("prefixed healthz: expected 200, got %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, ts.URL+"/healthz", nil, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unprefixed healthz: expected 404, got %d", resp.StatusCode)
	}
}
