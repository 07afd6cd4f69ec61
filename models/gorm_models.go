// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormGameRecord 游戏记录模型
type GormGameRecord struct {
	gorm.Model
	RoomCode   string            `gorm:"index;not null"`
	GameMode   string            `gorm:"not null"`
	Questions  int               `gorm:"default:0"`
	Players    int               `gorm:"default:0"`
	StartedAt  time.Time
	FinishedAt time.Time         `gorm:"index"`
	Results    []GormRoundResult `gorm:"foreignKey:GameRecordID"`
}

func (GormGameRecord) TableName() string { return "game_records" }

// GormRoundResult 每个玩家在一局中的成绩
type GormRoundResult struct {
	gorm.Model
	GameRecordID uint   `gorm:"index;not null"`
	PlayerID     string `gorm:"index;not null"`
	Name         string `gorm:"not null"`
	Avatar       string
	Score        int `gorm:"not null"`
	Rank         int `gorm:"not null"`
}

func (GormRoundResult) TableName() string { return "round_results" }

// FromGameRecord converts the domain record into its gorm rows.
func FromGameRecord(rec GameRecord) *GormGameRecord {
	row := &GormGameRecord{
		RoomCode:   rec.RoomCode,
		GameMode:   rec.GameMode,
		Questions:  rec.Questions,
		Players:    len(rec.Results),
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	for _, r := range rec.Results {
		row.Results = append(row.Results, GormRoundResult{
			PlayerID: r.PlayerID,
			Name:     r.Name,
			Avatar:   r.Avatar,
			Score:    r.Score,
			Rank:     r.Rank,
		})
	}
	return row
}
