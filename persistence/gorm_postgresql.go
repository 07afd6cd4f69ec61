// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/wfunc/buzzparty/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL opens a postgres database from a DSN.
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	return NewGormDatabase(postgres.Open(dsn))
}

// NewGormDatabase opens any gorm dialector and migrates the archive tables.
func NewGormDatabase(dialector gorm.Dialector) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGameRecord{},
		&models.GormRoundResult{},
	)
}

// SaveGameRecord stores a finished round and its results in one transaction.
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	row := models.FromGameRecord(record)
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
}

// PlayerHistory returns the player's most recent results, newest first.
func (p *GormPostgreSQL) PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.PlayerResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []struct {
		models.GormRoundResult
		RoomCode   string
		FinishedAt time.Time
	}
	err := p.db.WithContext(ctx).
		Table("round_results").
		Select("round_results.*, game_records.room_code, game_records.finished_at").
		Joins("JOIN game_records ON game_records.id = round_results.game_record_id").
		Where("round_results.player_id = ?", playerID).
		Order("game_records.finished_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]models.PlayerResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, models.PlayerResult{
			PlayerID: r.PlayerID,
			Name:     r.Name,
			Avatar:   r.Avatar,
			Score:    r.Score,
			Rank:     r.Rank,
			RoomCode: r.RoomCode,
			PlayedAt: r.FinishedAt,
		})
	}
	return results, nil
}

// GetPlayerStats aggregates every archived result of a player.
func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats

	err := p.db.WithContext(ctx).Raw(
		`
        SELECT
            COUNT(*) AS total_games,
            COALESCE(SUM(CASE WHEN rank = 1 THEN 1 ELSE 0 END), 0) AS wins,
            COALESCE(MAX(score), 0) AS best_score,
            COALESCE(SUM(score), 0) AS total_score
        FROM round_results
        WHERE player_id = ? AND deleted_at IS NULL`,
		playerID,
	).Scan(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if stats.TotalGames == 0 {
		return nil, ErrRecordNotFound
	}

	stats.PlayerID = playerID
	return &stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
