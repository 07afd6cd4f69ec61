// services/record_service.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/buzzparty/logger"
	"github.com/wfunc/buzzparty/models"
	"github.com/wfunc/buzzparty/persistence"
)

var ErrArchiveDisabled = errors.New("record archive is disabled")

// RecordService 异步归档结束的对局，游戏主流程从不等待数据库
type RecordService struct {
	db      persistence.Database
	queue   chan models.GameRecord
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRecordService creates a service. A nil db disables archiving.
func NewRecordService(db persistence.Database, queueSize int) *RecordService {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &RecordService{
		db:      db,
		queue:   make(chan models.GameRecord, queueSize),
		timeout: 5 * time.Second,
	}
}

func (s *RecordService) Enabled() bool {
	return s != nil && s.db != nil
}

// Start runs the archive worker until ctx is cancelled, then drains the queue.
func (s *RecordService) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case rec := <-s.queue:
				s.save(rec)
			case <-ctx.Done():
				for {
					select {
					case rec := <-s.queue:
						s.save(rec)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the worker has exited.
func (s *RecordService) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// Archive queues a record without blocking; when the queue is full the
// record is dropped and logged.
func (s *RecordService) Archive(rec models.GameRecord) {
	if !s.Enabled() {
		return
	}
	select {
	case s.queue <- rec:
	default:
		logger.Log.Warnf("archive queue full, dropping record for room %s", rec.RoomCode)
	}
}

func (s *RecordService) save(rec models.GameRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.db.SaveGameRecord(ctx, rec); err != nil {
		logger.Log.Errorf("archive room %s: %v", rec.RoomCode, err)
		return
	}
	logger.Log.Debugf("archived round of room %s (%d players)", rec.RoomCode, len(rec.Results))
}

// PlayerStats returns aggregated results for a player.
func (s *RecordService) PlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}
	return s.db.GetPlayerStats(ctx, playerID)
}

// PlayerHistory returns the player's recent results.
func (s *RecordService) PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.PlayerResult, error) {
	if !s.Enabled() {
		return nil, ErrArchiveDisabled
	}
	return s.db.PlayerHistory(ctx, playerID, limit)
}
