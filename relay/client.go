/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Seednode/triviabox/games/jeopardy"
	"github.com/gorilla/websocket"
)

var ErrRateLimited = errors.New("relay rate limit exceeded")

// BroadcastRequest is the body of POST /game/broadcast.
type BroadcastRequest struct {
	RoomCode string          `json:"roomCode"`
	Event    jeopardy.Kind   `json:"event"`
	Data     json.RawMessage `json:"data"`
	SenderID string          `json:"senderId,omitempty"`
}

// Client talks to a triviabox server's relay endpoints. It satisfies
// jeopardy.Publisher.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
		dialer:  websocket.DefaultDialer,
	}
}

func (c *Client) Publish(ctx context.Context, roomCode, sender string, ev jeopardy.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	body, err := json.Marshal(BroadcastRequest{
		RoomCode: roomCode,
		Event:    ev.Kind(),
		Data:     data,
		SenderID: sender,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/game/broadcast", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("broadcast %s: %s: %s", ev.Kind(), resp.Status, bytes.TrimSpace(msg))
	}

	return nil
}

// Subscription is one participant's live feed of a room's events.
type Subscription struct {
	conn *websocket.Conn
}

// Subscribe opens the room's event stream. The server only accepts
// participants that have been admitted.
func (c *Client) Subscribe(ctx context.Context, roomCode, participantID string) (*Subscription, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/rooms/" + url.PathEscape(roomCode) + "/ws"
	u.RawQuery = url.Values{"participantId": {participantID}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe to %s: %s: %w", roomCode, resp.Status, err)
		}
		return nil, fmt.Errorf("subscribe to %s: %w", roomCode, err)
	}

	return &Subscription{conn: conn}, nil
}

func (s *Subscription) Next() (Frame, error) {
	var f Frame
	err := s.conn.ReadJSON(&f)
	return f, err
}

// Heartbeat tells the server this participant is still here.
func (s *Subscription) Heartbeat() error {
	return s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
}

// Follow feeds the subscription into sess until the stream ends. The
// welcome frame positions the session so only later events are applied.
func (s *Subscription) Follow(sess *jeopardy.Session) error {
	for {
		f, err := s.Next()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		switch f.Type {
		case FrameWelcome:
			sess.Sync(f.Seq)
		case FrameEvent:
			if f.Envelope != nil {
				_ = sess.Receive(*f.Envelope)
			}
		}
	}
}

func (s *Subscription) Close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
