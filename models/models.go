// models/models.go
package models

import (
	"time"
)

// GameRecord 一局结束后的归档数据
type GameRecord struct {
	RoomCode   string         `json:"room_code"`
	GameMode   string         `json:"game_mode"`
	Questions  int            `json:"questions"`
	Results    []PlayerResult `json:"results"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// PlayerResult is one player's line in a finished round.
type PlayerResult struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`
	Score    int       `json:"score"`
	Rank     int       `json:"rank"`
	RoomCode string    `json:"room_code,omitempty"`
	PlayedAt time.Time `json:"played_at,omitempty"`
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	PlayerID   string `json:"player_id"`
	TotalGames int    `json:"total_games"`
	Wins       int    `json:"wins"`
	BestScore  int    `json:"best_score"`
	TotalScore int    `json:"total_score"`
}
