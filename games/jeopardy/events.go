/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind names an event on the wire.
type Kind string

const (
	KindPlayerJoined        Kind = "player-joined"
	KindPlayerLeft          Kind = "player-left"
	KindTeamJoined          Kind = "team-joined"
	KindTeamNameChanged     Kind = "team-name-changed"
	KindGameStarted         Kind = "game-started"
	KindQuestionSelected    Kind = "question-selected"
	KindPlayerBuzzed        Kind = "player-buzzed"
	KindTeamBuzzed          Kind = "team-buzzed"
	KindAnswerJudged        Kind = "answer-judged"
	KindQuestionClosed      Kind = "question-closed"
	KindGameStateUpdate     Kind = "game-state-update"
	KindBuzzReset           Kind = "buzz-reset"
	KindRevealAnswer        Kind = "reveal-answer"
	KindDailyDoubleWager    Kind = "daily-double-wager"
	KindDailyDoubleJudge    Kind = "daily-double-judge"
	KindFinalJeopardyStart  Kind = "final-jeopardy-start"
	KindFinalJeopardyWager  Kind = "final-jeopardy-wager"
	KindFinalJeopardyAnswer Kind = "final-jeopardy-answer"
	KindFinalJeopardyReveal Kind = "final-jeopardy-reveal"
	KindFinalJeopardyJudge  Kind = "final-jeopardy-judge"
	KindFinalJeopardyFinish Kind = "final-jeopardy-finish"
	KindGameReset           Kind = "game-reset"
)

// Event is one replicated mutation. The set of implementations is closed;
// DecodeEvent and Game.Apply handle every one of them.
type Event interface {
	Kind() Kind
}

type PlayerJoined struct {
	Player Player `json:"player"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

type TeamJoined struct {
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId"`
}

type TeamNameChanged struct {
	TeamID string `json:"teamId"`
	Name   string `json:"name"`
}

type GameStarted struct {
	CategoryIDs []string `json:"categoryIds"`
}

type QuestionSelected struct {
	Question Question `json:"question"`
}

type PlayerBuzzed struct {
	PlayerID string `json:"playerId"`
	Time     int64  `json:"time"`
}

type TeamBuzzed struct {
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId"`
	Time     int64  `json:"time"`
}

type AnswerJudged struct {
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId,omitempty"`
	Correct  bool   `json:"correct"`
	NewScore int    `json:"newScore"`
}

type QuestionClosed struct {
	QuestionID string `json:"questionId"`
	AnsweredBy string `json:"answeredBy,omitempty"`
}

// GameStateUpdate carries the few fields the host may set directly.
type GameStateUpdate struct {
	Status       *Status `json:"status,omitempty"`
	TeamMode     *bool   `json:"isTeamMode,omitempty"`
	TimerSeconds *int    `json:"timerDuration,omitempty"`
}

type BuzzReset struct{}

type RevealAnswer struct{}

type DailyDoubleWager struct {
	PlayerID string `json:"playerId"`
	Wager    int    `json:"wager"`
}

type DailyDoubleJudge struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

type FinalJeopardyStart struct{}

type FinalJeopardyWager struct {
	PlayerID string `json:"playerId"`
	Wager    int    `json:"wager"`
}

type FinalJeopardyAnswer struct {
	PlayerID string `json:"playerId"`
	Answer   string `json:"answer"`
}

type FinalJeopardyReveal struct{}

type FinalJeopardyJudge struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

type FinalJeopardyFinish struct{}

type GameReset struct{}

func (PlayerJoined) Kind() Kind        { return KindPlayerJoined }
func (PlayerLeft) Kind() Kind          { return KindPlayerLeft }
func (TeamJoined) Kind() Kind          { return KindTeamJoined }
func (TeamNameChanged) Kind() Kind     { return KindTeamNameChanged }
func (GameStarted) Kind() Kind         { return KindGameStarted }
func (QuestionSelected) Kind() Kind    { return KindQuestionSelected }
func (PlayerBuzzed) Kind() Kind        { return KindPlayerBuzzed }
func (TeamBuzzed) Kind() Kind          { return KindTeamBuzzed }
func (AnswerJudged) Kind() Kind        { return KindAnswerJudged }
func (QuestionClosed) Kind() Kind      { return KindQuestionClosed }
func (GameStateUpdate) Kind() Kind     { return KindGameStateUpdate }
func (BuzzReset) Kind() Kind           { return KindBuzzReset }
func (RevealAnswer) Kind() Kind        { return KindRevealAnswer }
func (DailyDoubleWager) Kind() Kind    { return KindDailyDoubleWager }
func (DailyDoubleJudge) Kind() Kind    { return KindDailyDoubleJudge }
func (FinalJeopardyStart) Kind() Kind  { return KindFinalJeopardyStart }
func (FinalJeopardyWager) Kind() Kind  { return KindFinalJeopardyWager }
func (FinalJeopardyAnswer) Kind() Kind { return KindFinalJeopardyAnswer }
func (FinalJeopardyReveal) Kind() Kind { return KindFinalJeopardyReveal }
func (FinalJeopardyJudge) Kind() Kind  { return KindFinalJeopardyJudge }
func (FinalJeopardyFinish) Kind() Kind { return KindFinalJeopardyFinish }
func (GameReset) Kind() Kind           { return KindGameReset }

var decoders = map[Kind]func(json.RawMessage) (Event, error){
	KindPlayerJoined:        decodeAs[PlayerJoined],
	KindPlayerLeft:          decodeAs[PlayerLeft],
	KindTeamJoined:          decodeAs[TeamJoined],
	KindTeamNameChanged:     decodeAs[TeamNameChanged],
	KindGameStarted:         decodeAs[GameStarted],
	KindQuestionSelected:    decodeAs[QuestionSelected],
	KindPlayerBuzzed:        decodeAs[PlayerBuzzed],
	KindTeamBuzzed:          decodeAs[TeamBuzzed],
	KindAnswerJudged:        decodeAs[AnswerJudged],
	KindQuestionClosed:      decodeAs[QuestionClosed],
	KindGameStateUpdate:     decodeAs[GameStateUpdate],
	KindBuzzReset:           decodeAs[BuzzReset],
	KindRevealAnswer:        decodeAs[RevealAnswer],
	KindDailyDoubleWager:    decodeAs[DailyDoubleWager],
	KindDailyDoubleJudge:    decodeAs[DailyDoubleJudge],
	KindFinalJeopardyStart:  decodeAs[FinalJeopardyStart],
	KindFinalJeopardyWager:  decodeAs[FinalJeopardyWager],
	KindFinalJeopardyAnswer: decodeAs[FinalJeopardyAnswer],
	KindFinalJeopardyReveal: decodeAs[FinalJeopardyReveal],
	KindFinalJeopardyJudge:  decodeAs[FinalJeopardyJudge],
	KindFinalJeopardyFinish: decodeAs[FinalJeopardyFinish],
	KindGameReset:           decodeAs[GameReset],
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var ev T
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// DecodeEvent parses a payload of the named kind into its concrete event.
// An empty payload decodes to the zero value.
func DecodeEvent(kind Kind, data json.RawMessage) (Event, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}

	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadPayload, kind, err)
	}

	return ev, nil
}

// Envelope is an event as fanned out by the relay. Seq is assigned by the
// relay and increases by one per room.
type Envelope struct {
	ID       string          `json:"id"`
	Seq      uint64          `json:"seq"`
	RoomCode string          `json:"roomCode"`
	Sender   string          `json:"sender,omitempty"`
	Event    Kind            `json:"event"`
	Data     json.RawMessage `json:"data"`
	SentAt   time.Time       `json:"sentAt"`
}

// Decode returns the event carried by the envelope.
func (e Envelope) Decode() (Event, error) {
	return DecodeEvent(e.Event, e.Data)
}

// Apply runs ev through the same transition a local caller would use.
// Only wager events can fail, and only with a ValidationError.
func (g *Game) Apply(ev Event) error {
	switch e := ev.(type) {
	case PlayerJoined:
		g.AddPlayer(e.Player)
	case PlayerLeft:
		g.RemovePlayer(e.PlayerID)
	case TeamJoined:
		g.JoinTeam(e.PlayerID, e.TeamID)
	case TeamNameChanged:
		g.SetTeamName(e.TeamID, e.Name)
	case GameStarted:
		g.InitializeBoard(e.CategoryIDs)
	case QuestionSelected:
		g.SelectQuestion(e.Question.ID)
	case PlayerBuzzed:
		g.PlayerBuzz(e.PlayerID, e.Time)
	case TeamBuzzed:
		g.TeamBuzz(e.PlayerID, e.TeamID, e.Time)
	case AnswerJudged:
		g.applyJudgement(e)
	case QuestionClosed:
		g.MarkQuestionAnswered(e.QuestionID, e.AnsweredBy)
	case GameStateUpdate:
		if e.TeamMode != nil {
			g.SetTeamMode(*e.TeamMode)
		}
		if e.TimerSeconds != nil {
			g.SetTimer(*e.TimerSeconds)
		}
		if e.Status != nil {
			g.SetStatus(*e.Status)
		}
	case BuzzReset:
		g.ResetBuzz()
	case RevealAnswer:
		g.RevealAnswer()
	case DailyDoubleWager:
		if dd := g.state.DailyDouble; dd != nil && dd.PlayerID != e.PlayerID {
			return &ValidationError{Field: "playerId", Message: "only the player who found the Daily Double may wager"}
		}
		return g.SetDailyDoubleWager(e.Wager)
	case DailyDoubleJudge:
		if dd := g.state.DailyDouble; dd != nil && dd.PlayerID != e.PlayerID {
			return nil
		}
		g.ResolveDailyDouble(e.Correct)
	case FinalJeopardyStart:
		g.StartFinalJeopardyQuestion()
	case FinalJeopardyWager:
		return g.SetFinalJeopardyWager(e.PlayerID, e.Wager)
	case FinalJeopardyAnswer:
		g.SetFinalJeopardyAnswer(e.PlayerID, e.Answer)
	case FinalJeopardyReveal:
		g.RevealFinalJeopardy()
	case FinalJeopardyJudge:
		g.JudgeFinalJeopardy(e.PlayerID, e.Correct)
	case FinalJeopardyFinish:
		g.FinishGame()
	case GameReset:
		g.Reset()
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return nil
}
