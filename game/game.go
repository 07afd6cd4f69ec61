// Package game implements the trivia round protocol on top of a room:
// starting a game, dispatching questions, the buzz-lock and answer scoring.
package game

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/question"
	"github.com/wfunc/buzzparty/room"
)

// ModeTrivia is the only game mode implemented.
const ModeTrivia = "trivia"

var ErrUnauthorized = errors.New("not authorized")

// Settings 控制一局游戏的节奏
type Settings struct {
	RoundLength  int
	StartDelay   time.Duration
	AdvanceDelay time.Duration
	BonusWindow  time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RoundLength:  5,
		StartDelay:   2 * time.Second,
		AdvanceDelay: 3 * time.Second,
		BonusWindow:  15 * time.Second,
	}
}

// LeaderboardEntry is one line of the end-of-round standings.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Score  int    `json:"score"`
}

// Advance describes the outcome of AdvanceQuestion.
type Advance struct {
	Finished    bool
	Question    *question.Question
	Number      int
	Total       int
	Leaderboard []LeaderboardEntry
}

// Submission describes the outcome of SubmitAnswer.
type Submission struct {
	Player        *room.Player
	Record        room.AnswerRecord
	CorrectAnswer string
	Answered      int
	// ShouldAdvance is true for exactly one submission per question.
	ShouldAdvance bool
}

// StartGame resets scores, draws the round's questions from src and puts
// the room into PLAYING. Only the host connection may start a game.
func (s Settings) StartGame(r *room.Room, src question.Source, mode, requesterConn string, now time.Time) error {
	if r == nil || requesterConn == "" || requesterConn != r.HostConn {
		return ErrUnauthorized
	}
	if err := r.SetGameState(room.StatePlaying); err != nil {
		return fmt.Errorf("start game in %s: %w", r.Code, err)
	}
	for _, p := range r.Players() {
		p.Score = 0
	}
	r.CurrentGame = mode
	r.GameStarted = now
	r.QuestionNumber = 0
	r.Deck = src.Draw(s.RoundLength)
	r.ResetRound()
	r.NextGeneration()
	return nil
}

// AdvanceQuestion moves to the next question of the deck, or ends the round
// once RoundLength questions have been played or the deck runs dry. ok is
// false when the room is not playing.
func (s Settings) AdvanceQuestion(r *room.Room, now time.Time) (Advance, bool) {
	if r.GameState() != room.StatePlaying {
		return Advance{}, false
	}

	r.QuestionNumber++
	if r.QuestionNumber > s.RoundLength || len(r.Deck) == 0 {
		return s.endRound(r), true
	}

	q := r.Deck[0]
	r.Deck = r.Deck[1:]
	r.ResetRound()
	r.CurrentQuestion = &q
	r.QuestionStart = now
	r.NextGeneration()

	return Advance{
		Question: &q,
		Number:   r.QuestionNumber,
		Total:    s.RoundLength,
	}, true
}

func (s Settings) endRound(r *room.Room) Advance {
	r.ResetRound()
	r.Deck = nil
	r.NextGeneration()
	if err := r.SetGameState(room.StateRoundEnd); err != nil {
		logger.Log.Errorf("room %s: end round: %v", r.Code, err)
	}
	return Advance{
		Finished:    true,
		Number:      r.QuestionNumber,
		Total:       s.RoundLength,
		Leaderboard: Leaderboard(r),
	}
}

// BuzzIn records the first buzz for the current question. Later buzzes,
// and buzzes from players not in the room, are ignored.
func (s Settings) BuzzIn(r *room.Room, playerID string) (*room.Player, bool) {
	p, ok := r.Player(playerID)
	if !ok || r.BuzzedPlayer != "" {
		return nil, false
	}
	r.BuzzedPlayer = playerID
	return p, true
}

// SubmitAnswer scores a player's answer to the active question. It returns
// false when there is no active question or the player is not seated.
func (s Settings) SubmitAnswer(r *room.Room, playerID, answer string, now time.Time) (Submission, bool) {
	if r.CurrentQuestion == nil {
		return Submission{}, false
	}
	p, ok := r.Player(playerID)
	if !ok {
		return Submission{}, false
	}

	correct := answer == r.CurrentQuestion.Answer
	points := s.Points(now.Sub(r.QuestionStart), correct)
	if correct {
		p.Score += points
	}

	record := room.AnswerRecord{Answer: answer, Correct: correct, Points: points}
	r.Answers[playerID] = record

	trigger := playerID == r.BuzzedPlayer || len(r.Answers) == r.PlayerCount()
	advance := trigger && !r.AdvancePending
	if advance {
		r.AdvancePending = true
	}

	return Submission{
		Player:        p,
		Record:        record,
		CorrectAnswer: r.CurrentQuestion.Answer,
		Answered:      len(r.Answers),
		ShouldAdvance: advance,
	}, true
}

// Points 计分: floor(100 + max(0, window-elapsed)/1000*10)，答错为 0
func (s Settings) Points(elapsed time.Duration, correct bool) int {
	if !correct {
		return 0
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := (s.BonusWindow - elapsed).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	// remaining/1000*10 == remaining/100, floored by integer division
	return 100 + int(remaining/100)
}

// Leaderboard ranks players by score, ties kept in roster order.
func Leaderboard(r *room.Room) []LeaderboardEntry {
	players := r.Players()
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})

	entries := make([]LeaderboardEntry, 0, len(players))
	for i, p := range players {
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			ID:     p.ID,
			Name:   p.Name,
			Avatar: p.Avatar,
			Score:  p.Score,
		})
	}
	return entries
}
