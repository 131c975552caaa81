/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"slices"
	"sort"
	"strconv"
	"time"
)

// PenaltyPolicy decides how much a wrong answer costs.
type PenaltyPolicy string

const (
	PenaltyFull PenaltyPolicy = "full"
	PenaltyHalf PenaltyPolicy = "half"
)

func (p PenaltyPolicy) Valid() bool {
	return p == PenaltyFull || p == PenaltyHalf
}

// Penalty returns the positive amount deducted for a wrong answer on a
// clue worth value.
func (p PenaltyPolicy) Penalty(value int) int {
	if p == PenaltyHalf {
		return value / 2
	}
	return value
}

// Game is a single client's replica of a match. Every transition mutates
// the replica in place and silently ignores calls that are illegal in the
// current status. A Game is not safe for concurrent use.
type Game struct {
	bank        *Bank
	teamPenalty PenaltyPolicy
	state       State
}

type Option func(*Game)

// WithTeamPenalty sets the wrong-answer policy used in team mode.
// Individual mode always deducts the full clue value.
func WithTeamPenalty(p PenaltyPolicy) Option {
	return func(g *Game) {
		if p.Valid() {
			g.teamPenalty = p
		}
	}
}

func NewGame(bank *Bank, roomCode, hostID string, opts ...Option) *Game {
	g := &Game{
		bank:        bank,
		teamPenalty: PenaltyHalf,
		state: State{
			RoomCode:       roomCode,
			HostID:         hostID,
			Status:         StatusLobby,
			Players:        []Player{},
			Teams:          newTeams(),
			BuzzOrder:      []Buzz{},
			WrongAnswerers: []string{},
			Round:          1,
			TimerSeconds:   DefaultTimerSeconds,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns a deep copy of the replica.
// fork copies the game, sharing only the immutable bank.
func (g *Game) fork() *Game {
	return &Game{bank: g.bank, teamPenalty: g.teamPenalty, state: g.state.clone()}
}

func (g *Game) State() State {
	return g.state.clone()
}

func (g *Game) Status() Status {
	return g.state.Status
}

func (g *Game) Player(id string) (Player, bool) {
	if p := g.state.player(id); p != nil {
		return *p, true
	}
	return Player{}, false
}

func (g *Game) penalty(value int) int {
	if g.state.TeamMode {
		return g.teamPenalty.Penalty(value)
	}
	return PenaltyFull.Penalty(value)
}

func (g *Game) SetTeamMode(on bool) {
	if g.state.Status != StatusLobby {
		return
	}
	g.state.TeamMode = on
}

// AddPlayer inserts p, replacing any existing player with the same id.
func (g *Game) AddPlayer(p Player) {
	if p.ID == "" {
		return
	}
	if existing := g.state.player(p.ID); existing != nil {
		*existing = p
		return
	}
	g.state.Players = append(g.state.Players, p)
}

func (g *Game) RemovePlayer(id string) {
	p := g.state.player(id)
	if p == nil {
		return
	}
	if t := g.state.team(p.TeamID); t != nil {
		t.PlayerIDs = slices.DeleteFunc(t.PlayerIDs, func(pid string) bool { return pid == id })
	}
	g.state.Players = slices.DeleteFunc(g.state.Players, func(p Player) bool { return p.ID == id })
}

func (g *Game) JoinTeam(playerID, teamID string) {
	p := g.state.player(playerID)
	t := g.state.team(teamID)
	if p == nil || t == nil {
		return
	}
	if old := g.state.team(p.TeamID); old != nil && old.ID != teamID {
		old.PlayerIDs = slices.DeleteFunc(old.PlayerIDs, func(pid string) bool { return pid == playerID })
	}
	if !slices.Contains(t.PlayerIDs, playerID) {
		t.PlayerIDs = append(t.PlayerIDs, playerID)
	}
	p.TeamID = teamID
}

func (g *Game) SetTeamName(teamID, name string) {
	if t := g.state.team(teamID); t != nil && name != "" {
		t.Name = name
	}
}

func (g *Game) UpdatePlayerScore(playerID string, score int) {
	if p := g.state.player(playerID); p != nil {
		p.Score = score
	}
}

func (g *Game) UpdateTeamScore(teamID string, score int) {
	if t := g.state.team(teamID); t != nil {
		t.Score = score
	}
}

func (g *Game) SetTimer(seconds int) {
	if seconds > 0 {
		g.state.TimerSeconds = seconds
	}
}

// AnswerWindow is the advisory countdown for the clue in play. The final
// clue always gets FinalAnswerTime; board clues use the room's timer.
func (g *Game) AnswerWindow() time.Duration {
	if g.state.Status == StatusFinalQuestion {
		return FinalAnswerTime
	}
	if g.state.TimerSeconds <= 0 {
		return DefaultTimerSeconds * time.Second
	}
	return time.Duration(g.state.TimerSeconds) * time.Second
}

// hostTransitions are the status changes the host may request directly.
// Every other change happens as a side effect of a game transition.
var hostTransitions = map[Status][]Status{
	StatusLobby:          {StatusCategorySelect},
	StatusCategorySelect: {StatusLobby},
	StatusFinished:       {StatusLobby},
}

// SetStatus moves to status if the host is allowed to request it from the
// current status.
func (g *Game) SetStatus(status Status) {
	if !slices.Contains(hostTransitions[g.state.Status], status) {
		return
	}
	if g.state.Status == StatusFinished {
		g.Reset()
		return
	}
	g.state.Status = status
}

// InitializeBoard builds the board for the current round from the first
// five category ids and starts play. Fewer than five ids, unknown ids and
// repeated ids leave the replica unchanged.
func (g *Game) InitializeBoard(categoryIDs []string) {
	if len(categoryIDs) < CategoriesPerBoard {
		return
	}
	if g.state.Status != StatusCategorySelect {
		return
	}

	board, ok := g.bank.buildBoard(g.state.RoomCode, g.state.Round, categoryIDs)
	if !ok {
		return
	}

	g.state.Board = board
	g.state.SelectedCategories = slices.Clone(categoryIDs[:CategoriesPerBoard])
	g.state.CurrentQuestion = nil
	g.clearBuzz()
	g.state.Status = StatusPlaying
	if g.state.TeamMode && g.state.CurrentTurn == "" {
		g.state.CurrentTurn = TeamRed
	}
}

func (g *Game) clearBuzz() {
	g.state.BuzzOrder = []Buzz{}
	g.state.BuzzedPlayer = ""
	g.state.BuzzedTeam = ""
}

func (g *Game) roundMinimum() int {
	return 1000 * g.state.Round
}

// SelectQuestion opens the clue with the given id. A Daily Double is
// handed to whoever buzzed in most recently, or to the host if nobody has.
func (g *Game) SelectQuestion(questionID string) {
	if g.state.Status != StatusPlaying {
		return
	}
	q := g.state.question(questionID)
	if q == nil || q.IsAnswered {
		return
	}

	current := *q
	g.state.CurrentQuestion = &current
	g.state.WrongAnswerers = []string{}
	g.state.AnswerRevealed = false
	g.clearBuzz()

	if !q.IsDailyDouble {
		g.state.Status = StatusQuestion
		return
	}

	solver := g.state.LastBuzzer
	if solver == "" {
		solver = g.state.HostID
	}
	score := 0
	if p := g.state.player(solver); p != nil {
		score = p.Score
	}
	g.state.DailyDouble = &DailyDouble{
		Question: current,
		PlayerID: solver,
		MaxWager: max(score, g.roundMinimum()),
	}
	g.state.Status = StatusDailyDouble
}

// PlayerBuzz records a buzz and keeps BuzzOrder sorted by time, ties kept in
// arrival order. The first buzz applied while nobody holds the latch wins
// it; later buzzes with earlier times reorder BuzzOrder but never move the
// latch.
func (g *Game) PlayerBuzz(playerID string, time int64) {
	g.buzz(playerID, "", time)
}

func (g *Game) TeamBuzz(playerID, teamID string, time int64) {
	if !g.state.TeamMode {
		return
	}
	g.buzz(playerID, teamID, time)
}

func (g *Game) buzz(playerID, teamID string, time int64) {
	if g.state.Status != StatusQuestion && g.state.Status != StatusBuzzing {
		return
	}
	if playerID == "" || slices.Contains(g.state.WrongAnswerers, playerID) {
		return
	}
	for _, b := range g.state.BuzzOrder {
		if b.PlayerID == playerID {
			return
		}
	}

	g.state.BuzzOrder = append(g.state.BuzzOrder, Buzz{PlayerID: playerID, TeamID: teamID, Time: time})
	sort.SliceStable(g.state.BuzzOrder, func(i, j int) bool {
		return g.state.BuzzOrder[i].Time < g.state.BuzzOrder[j].Time
	})

	if g.state.BuzzedPlayer != "" {
		return
	}
	first := g.state.BuzzOrder[0]
	g.state.BuzzedPlayer = first.PlayerID
	g.state.BuzzedTeam = first.TeamID
	g.state.LastBuzzer = first.PlayerID
	g.state.Status = StatusBuzzing
}

// BuzzLeader returns the owner of the earliest recorded buzz, which can
// differ from BuzzedPlayer when buzzes were applied out of time order.
func (g *Game) BuzzLeader() (string, bool) {
	if len(g.state.BuzzOrder) == 0 {
		return "", false
	}
	return g.state.BuzzOrder[0].PlayerID, true
}

// ResetBuzz reopens the current question to everyone who has not yet
// answered it wrong.
func (g *Game) ResetBuzz() {
	if g.state.Status != StatusBuzzing && g.state.Status != StatusQuestion {
		return
	}
	g.clearBuzz()
	g.state.Status = StatusQuestion
}

func (g *Game) RevealAnswer() {
	if g.state.CurrentQuestion == nil {
		return
	}
	g.state.AnswerRevealed = true
}

// Judge computes the host's ruling on the latched buzzer without applying
// it. The returned event carries the resulting score so every replica
// converges on the same number.
func (g *Game) Judge(correct bool) (AnswerJudged, bool) {
	if g.state.Status != StatusBuzzing || g.state.BuzzedPlayer == "" || g.state.CurrentQuestion == nil {
		return AnswerJudged{}, false
	}

	delta := g.state.CurrentQuestion.Value
	if !correct {
		delta = -g.penalty(delta)
	}

	ev := AnswerJudged{PlayerID: g.state.BuzzedPlayer, Correct: correct}
	if g.state.TeamMode && g.state.BuzzedTeam != "" {
		t := g.state.team(g.state.BuzzedTeam)
		if t == nil {
			return AnswerJudged{}, false
		}
		ev.TeamID = t.ID
		ev.NewScore = t.Score + delta
		return ev, true
	}

	p := g.state.player(g.state.BuzzedPlayer)
	if p == nil {
		return AnswerJudged{}, false
	}
	ev.NewScore = p.Score + delta
	return ev, true
}

func (g *Game) applyJudgement(ev AnswerJudged) {
	if g.state.Status != StatusBuzzing && g.state.Status != StatusQuestion {
		return
	}
	if ev.TeamID != "" {
		g.UpdateTeamScore(ev.TeamID, ev.NewScore)
	} else {
		g.UpdatePlayerScore(ev.PlayerID, ev.NewScore)
	}

	if ev.Correct {
		if ev.TeamID != "" {
			g.state.CurrentTurn = ev.TeamID
		}
		return
	}
	if !slices.Contains(g.state.WrongAnswerers, ev.PlayerID) {
		g.state.WrongAnswerers = append(g.state.WrongAnswerers, ev.PlayerID)
	}
	g.ResetBuzz()
}

// MarkQuestionAnswered closes a clue for good. Repeat calls for the same id
// are ignored. Once every clue is answered, round 1 returns to category
// selection for round 2, and round 2 moves on to Final Jeopardy.
func (g *Game) MarkQuestionAnswered(questionID, answeredBy string) {
	switch g.state.Status {
	case StatusPlaying, StatusQuestion, StatusBuzzing, StatusDailyDouble:
	default:
		return
	}
	q := g.state.question(questionID)
	if q == nil || q.IsAnswered {
		return
	}

	q.IsAnswered = true
	q.AnsweredBy = answeredBy

	if g.state.TeamMode {
		switch {
		case answeredBy != "":
			if p := g.state.player(answeredBy); p != nil && p.TeamID != "" {
				g.state.CurrentTurn = p.TeamID
			}
		case g.state.CurrentTurn == TeamRed:
			g.state.CurrentTurn = TeamBlue
		default:
			g.state.CurrentTurn = TeamRed
		}
	}

	g.state.CurrentQuestion = nil
	g.state.DailyDouble = nil
	g.state.WrongAnswerers = []string{}
	g.state.AnswerRevealed = false
	g.clearBuzz()

	if !g.state.allAnswered() {
		g.state.Status = StatusPlaying
		return
	}

	if g.state.Round == 1 {
		g.state.Round = 2
		g.state.SelectedCategories = nil
		g.state.Status = StatusCategorySelect
		return
	}

	clue := g.bank.finalClue(g.state.RoomCode)
	g.state.FinalJeopardy = &FinalJeopardy{
		Category: clue.Category,
		Question: clue.Prompt,
		Answer:   clue.Answer,
		Wagers:   map[string]int{},
		Answers:  map[string]string{},
		Judged:   map[string]bool{},
	}
	g.state.Status = StatusFinalWager
}

// SetDailyDoubleWager locks in the solver's wager. Wagers outside
// [MinDailyDoubleWager, MaxWager] are rejected and change nothing.
func (g *Game) SetDailyDoubleWager(wager int) error {
	dd := g.state.DailyDouble
	if g.state.Status != StatusDailyDouble || dd == nil || dd.Answered {
		return nil
	}
	if wager < MinDailyDoubleWager {
		return &ValidationError{Field: "wager", Message: "minimum wager is $5"}
	}
	if wager > dd.MaxWager {
		return &ValidationError{Field: "wager", Message: "wager exceeds the maximum of $" + strconv.Itoa(dd.MaxWager)}
	}
	dd.Wager = &wager
	return nil
}

// ResolveDailyDouble applies the wager to the solver's score once.
func (g *Game) ResolveDailyDouble(correct bool) {
	dd := g.state.DailyDouble
	if g.state.Status != StatusDailyDouble || dd == nil || dd.Wager == nil || dd.Answered {
		return
	}
	p := g.state.player(dd.PlayerID)
	if p == nil {
		return
	}
	if correct {
		p.Score += *dd.Wager
	} else {
		p.Score -= *dd.Wager
	}
	dd.Answered = true
}

// EligibleFinalPlayers are the players who must wager and answer in Final
// Jeopardy: positive score, not spectating.
func (g *Game) EligibleFinalPlayers() []Player {
	var out []Player
	for _, p := range g.state.Players {
		if p.Score > 0 && !p.IsSpectator {
			out = append(out, p)
		}
	}
	return out
}

func eligible(p *Player) bool {
	return p != nil && p.Score > 0 && !p.IsSpectator
}

// SetFinalJeopardyWager records a wager bounded by the player's score at
// submission time. Resubmitting replaces the earlier wager.
func (g *Game) SetFinalJeopardyWager(playerID string, wager int) error {
	fj := g.state.FinalJeopardy
	if g.state.Status != StatusFinalWager || fj == nil {
		return nil
	}
	p := g.state.player(playerID)
	if !eligible(p) {
		return &ValidationError{Field: "playerId", Message: "only players with a positive score may wager"}
	}
	if wager < 0 {
		return &ValidationError{Field: "wager", Message: "wager cannot be negative"}
	}
	if wager > p.Score {
		return &ValidationError{Field: "wager", Message: "wager cannot exceed your current score"}
	}
	fj.Wagers[playerID] = wager
	return nil
}

// AllFinalWagersIn reports whether every eligible player has wagered.
func (g *Game) AllFinalWagersIn() bool {
	fj := g.state.FinalJeopardy
	if fj == nil {
		return false
	}
	for _, p := range g.EligibleFinalPlayers() {
		if _, ok := fj.Wagers[p.ID]; !ok {
			return false
		}
	}
	return true
}

// AllFinalAnswersIn reports whether every eligible player has answered.
func (g *Game) AllFinalAnswersIn() bool {
	fj := g.state.FinalJeopardy
	if fj == nil {
		return false
	}
	for _, p := range g.EligibleFinalPlayers() {
		if _, ok := fj.Answers[p.ID]; !ok {
			return false
		}
	}
	return true
}

func (g *Game) StartFinalJeopardyQuestion() {
	if g.state.Status != StatusFinalWager || g.state.FinalJeopardy == nil {
		return
	}
	g.state.Status = StatusFinalQuestion
}

// SetFinalJeopardyAnswer stores free text; the last submission wins.
func (g *Game) SetFinalJeopardyAnswer(playerID, answer string) {
	fj := g.state.FinalJeopardy
	if g.state.Status != StatusFinalQuestion || fj == nil {
		return
	}
	if !eligible(g.state.player(playerID)) {
		return
	}
	fj.Answers[playerID] = answer
}

// RevealFinalJeopardy trusts the host's signal; whether every answer is in
// is for the caller to check.
func (g *Game) RevealFinalJeopardy() {
	fj := g.state.FinalJeopardy
	if g.state.Status != StatusFinalQuestion || fj == nil {
		return
	}
	fj.Revealed = true
	fj.ShowAnswers = true
	g.state.Status = StatusFinalReveal
}

// JudgeFinalJeopardy applies the player's wager. Judging the same player
// twice applies the wager twice.
func (g *Game) JudgeFinalJeopardy(playerID string, correct bool) {
	fj := g.state.FinalJeopardy
	if g.state.Status != StatusFinalReveal || fj == nil {
		return
	}
	p := g.state.player(playerID)
	if p == nil {
		return
	}
	wager := fj.Wagers[playerID]
	if correct {
		p.Score += wager
	} else {
		p.Score -= wager
	}
	fj.Judged[playerID] = correct
}

func (g *Game) FinishGame() {
	if g.state.Status != StatusFinalReveal {
		return
	}
	g.state.Status = StatusFinished
}

// Reset returns to the lobby for a new match, keeping players and team
// names but zeroing every score.
func (g *Game) Reset() {
	s := &g.state
	for i := range s.Players {
		s.Players[i].Score = 0
		s.Players[i].TeamID = ""
	}
	for i := range s.Teams {
		s.Teams[i].Score = 0
		s.Teams[i].PlayerIDs = []string{}
	}
	s.Status = StatusLobby
	s.Board = nil
	s.CurrentQuestion = nil
	s.WrongAnswerers = []string{}
	s.LastBuzzer = ""
	s.CurrentTurn = ""
	s.AnswerRevealed = false
	s.Round = 1
	s.SelectedCategories = nil
	s.DailyDouble = nil
	s.FinalJeopardy = nil
	g.clearBuzz()
}

// Standings returns players ordered by score, highest first.
func (g *Game) Standings() []Player {
	out := slices.Clone(g.state.Players)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
