/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"maps"
	"slices"
)

// Status is the phase a game replica is currently in.
type Status string

const (
	StatusLobby          Status = "lobby"
	StatusCategorySelect Status = "category-select"
	StatusPlaying        Status = "playing"
	StatusQuestion       Status = "question"
	StatusBuzzing        Status = "buzzing"
	StatusDailyDouble    Status = "daily-double"
	StatusFinalWager     Status = "final-jeopardy-wager"
	StatusFinalQuestion  Status = "final-jeopardy-question"
	StatusFinalReveal    Status = "final-jeopardy-reveal"
	StatusFinished       Status = "finished"
)

const (
	CategoriesPerBoard   = 5
	QuestionsPerCategory = 5

	// MinDailyDoubleWager is the smallest wager accepted on a Daily Double.
	MinDailyDoubleWager = 5

	// DefaultTimerSeconds is the advisory answer countdown shown to players.
	DefaultTimerSeconds = 30
)

// PointValues are the round 1 clue values, top to bottom.
var PointValues = [QuestionsPerCategory]int{200, 400, 600, 800, 1000}

const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

type Player struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	IsSpectator bool   `json:"isSpectator"`
	TeamID      string `json:"teamId,omitempty"`
}

type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	Score     int      `json:"score"`
	PlayerIDs []string `json:"playerIds"`
}

// Question is a single clue on the board. Only IsAnswered and AnsweredBy
// change after the board is built, and only from unset to set.
type Question struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Value         int    `json:"value"`
	Prompt        string `json:"prompt"`
	Answer        string `json:"answer"`
	IsAnswered    bool   `json:"isAnswered"`
	IsDailyDouble bool   `json:"isDailyDouble"`
	AnsweredBy    string `json:"answeredBy,omitempty"`
}

type Category struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

type Board struct {
	Categories []Category `json:"categories"`
}

// Buzz records a player's claim on the current question, timestamped by
// the buzzing client's own clock in milliseconds.
type Buzz struct {
	PlayerID string `json:"playerId"`
	TeamID   string `json:"teamId,omitempty"`
	Time     int64  `json:"time"`
}

type DailyDouble struct {
	Question Question `json:"question"`
	PlayerID string   `json:"playerId"`
	Wager    *int     `json:"wager"`
	MaxWager int      `json:"maxWager"`
	Answered bool     `json:"answered"`
}

type FinalJeopardy struct {
	Category    string            `json:"category"`
	Question    string            `json:"question"`
	Answer      string            `json:"answer"`
	Wagers      map[string]int    `json:"wagers"`
	Answers     map[string]string `json:"answers"`
	Judged      map[string]bool   `json:"judged"`
	Revealed    bool              `json:"revealed"`
	ShowAnswers bool              `json:"showAnswers"`
}

// State is one client's replica of a match.
type State struct {
	RoomCode           string         `json:"roomCode"`
	HostID             string         `json:"hostId"`
	Status             Status         `json:"status"`
	Players            []Player       `json:"players"`
	TeamMode           bool           `json:"isTeamMode"`
	Teams              []Team         `json:"teams"`
	Board              *Board         `json:"board"`
	CurrentQuestion    *Question      `json:"currentQuestion"`
	BuzzedPlayer       string         `json:"buzzedPlayer,omitempty"`
	BuzzedTeam         string         `json:"buzzedTeam,omitempty"`
	BuzzOrder          []Buzz         `json:"buzzOrder"`
	WrongAnswerers     []string       `json:"wrongAnswerers"`
	LastBuzzer         string         `json:"lastBuzzer,omitempty"`
	CurrentTurn        string         `json:"currentTurn,omitempty"`
	AnswerRevealed     bool           `json:"answerRevealed"`
	Round              int            `json:"round"`
	SelectedCategories []string       `json:"selectedCategories"`
	DailyDouble        *DailyDouble   `json:"dailyDoubleState"`
	FinalJeopardy      *FinalJeopardy `json:"finalJeopardy"`
	TimerSeconds       int            `json:"timerDuration"`
}

func newTeams() []Team {
	return []Team{
		{ID: TeamRed, Name: "Red Team", Color: TeamRed, PlayerIDs: []string{}},
		{ID: TeamBlue, Name: "Blue Team", Color: TeamBlue, PlayerIDs: []string{}},
	}
}

func (s *State) player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

func (s *State) team(id string) *Team {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}

func (s *State) question(id string) *Question {
	if s.Board == nil {
		return nil
	}
	for c := range s.Board.Categories {
		for q := range s.Board.Categories[c].Questions {
			if s.Board.Categories[c].Questions[q].ID == id {
				return &s.Board.Categories[c].Questions[q]
			}
		}
	}
	return nil
}

func (s *State) allAnswered() bool {
	if s.Board == nil {
		return false
	}
	for _, c := range s.Board.Categories {
		for _, q := range c.Questions {
			if !q.IsAnswered {
				return false
			}
		}
	}
	return true
}

func (s State) clone() State {
	out := s
	out.Players = slices.Clone(s.Players)
	out.Teams = make([]Team, len(s.Teams))
	for i, t := range s.Teams {
		t.PlayerIDs = slices.Clone(t.PlayerIDs)
		out.Teams[i] = t
	}
	if s.Board != nil {
		b := Board{Categories: make([]Category, len(s.Board.Categories))}
		for i, c := range s.Board.Categories {
			c.Questions = slices.Clone(c.Questions)
			b.Categories[i] = c
		}
		out.Board = &b
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		out.CurrentQuestion = &q
	}
	out.BuzzOrder = slices.Clone(s.BuzzOrder)
	out.WrongAnswerers = slices.Clone(s.WrongAnswerers)
	out.SelectedCategories = slices.Clone(s.SelectedCategories)
	if s.DailyDouble != nil {
		dd := *s.DailyDouble
		if dd.Wager != nil {
			w := *dd.Wager
			dd.Wager = &w
		}
		out.DailyDouble = &dd
	}
	if s.FinalJeopardy != nil {
		fj := *s.FinalJeopardy
		fj.Wagers = maps.Clone(fj.Wagers)
		fj.Answers = maps.Clone(fj.Answers)
		fj.Judged = maps.Clone(fj.Judged)
		out.FinalJeopardy = &fj
	}
	return out
}
