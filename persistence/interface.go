// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/wfunc/buzzparty/models"
)

// Database archives finished rounds. Live room state is never persisted.
type Database interface {
	SaveGameRecord(ctx context.Context, record models.GameRecord) error
	PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.PlayerResult, error)
	GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)
