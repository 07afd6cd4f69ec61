package router

import (
	"github.com/wfunc/buzzparty/game"
	"github.com/wfunc/buzzparty/question"
	"github.com/wfunc/buzzparty/room"
)

// Client-visible error messages.
const (
	msgRoomNotFound    = "Room not found"
	msgNotAuthorized   = "Not authorized"
	msgHostLeft        = "Host disconnected"
	msgRoomUnavailable = "Could not create room"
)

// --- inbound ---

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Avatar     string `json:"avatar"`
}

type startGameRequest struct {
	RoomCode string `json:"roomCode"`
	Game     string `json:"game"`
}

type buzzInRequest struct {
	PlayerID string `json:"playerId"`
}

type submitAnswerRequest struct {
	PlayerID string `json:"playerId"`
	Answer   string `json:"answer"`
}

// --- outbound ---

type errorPayload struct {
	Message string `json:"message"`
}

type createRoomReply struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode,omitempty"`
	Message  string `json:"message,omitempty"`
}

type joinedRoomPayload struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type gameStartedPayload struct {
	Game           string `json:"game"`
	TotalQuestions int    `json:"totalQuestions"`
}

// hostQuestionPayload carries the answer; only the host receives it.
type hostQuestionPayload struct {
	question.Question
	QuestionNumber int `json:"questionNumber"`
	TotalQuestions int `json:"totalQuestions"`
}

type playerQuestionPayload struct {
	question.PublicQuestion
	QuestionNumber int `json:"questionNumber"`
	TotalQuestions int `json:"totalQuestions"`
}

type playerBuzzedPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type answerResultPayload struct {
	Correct       bool   `json:"correct"`
	Points        int    `json:"points"`
	CorrectAnswer string `json:"correctAnswer"`
	TotalScore    int    `json:"totalScore"`
}

type answerSubmittedPayload struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Correct      bool   `json:"correct"`
	Points       int    `json:"points"`
	Answered     int    `json:"answered"`
	TotalPlayers int    `json:"totalPlayers"`
}

type roundEndPayload struct {
	Leaderboard []game.LeaderboardEntry `json:"leaderboard"`
}

type roomClosedPayload struct {
	Message string `json:"message"`
}

type playerLeftPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

// RoomSummary is the diagnostic view of one room.
type RoomSummary struct {
	Code        string         `json:"code"`
	Players     int            `json:"players"`
	GameState   room.GameState `json:"gameState"`
	CurrentGame *string        `json:"currentGame"`
}
