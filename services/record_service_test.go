package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/buzzparty/models"
	"github.com/wfunc/buzzparty/persistence"
)

// fakeDatabase 记录所有保存的对局
type fakeDatabase struct {
	mu      sync.Mutex
	records []models.GameRecord
	saved   chan struct{}
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{saved: make(chan struct{}, 16)}
}

func (f *fakeDatabase) SaveGameRecord(ctx context.Context, record models.GameRecord) error {
	f.mu.Lock()
	f.records = append(f.records, record)
	f.mu.Unlock()
	f.saved <- struct{}{}
	return nil
}

func (f *fakeDatabase) PlayerHistory(ctx context.Context, playerID string, limit int) ([]models.PlayerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlayerResult
	for _, rec := range f.records {
		for _, r := range rec.Results {
			if r.PlayerID == playerID {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeDatabase) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	history, _ := f.PlayerHistory(ctx, playerID, 0)
	if len(history) == 0 {
		return nil, persistence.ErrRecordNotFound
	}
	stats := &models.PlayerStats{PlayerID: playerID, TotalGames: len(history)}
	for _, r := range history {
		stats.TotalScore += r.Score
		if r.Rank == 1 {
			stats.Wins++
		}
	}
	return stats, nil
}

func (f *fakeDatabase) Close() error { return nil }

func testRecord(code string) models.GameRecord {
	return models.GameRecord{
		RoomCode:  code,
		GameMode:  "trivia",
		Questions: 5,
		Results: []models.PlayerResult{
			{PlayerID: "p1", Name: "Ann", Score: 480, Rank: 1},
			{PlayerID: "p2", Name: "Bob", Score: 240, Rank: 2},
		},
		FinishedAt: time.Now(),
	}
}

func TestRecordService_ArchivesAsync(t *testing.T) {
	db := newFakeDatabase()
	svc := NewRecordService(db, 4)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	svc.Archive(testRecord("BRAVE-1234"))

	select {
	case <-db.saved:
	case <-time.After(time.Second):
		t.Fatal("Record was never saved")
	}

	stats, err := svc.PlayerStats(context.Background(), "p1")
	if err != nil {
		t.Fatalf("PlayerStats failed: %v", err)
	}
	if stats.TotalGames != 1 || stats.Wins != 1 || stats.TotalScore != 480 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	cancel()
	svc.Wait()
}

func TestRecordService_DrainsOnShutdown(t *testing.T) {
	db := newFakeDatabase()
	svc := NewRecordService(db, 8)

	svc.Archive(testRecord("A-0001"))
	svc.Archive(testRecord("A-0002"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc.Start(ctx)
	svc.Wait()

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.records) != 2 {
		t.Errorf("Expected queued records to be drained on shutdown, saved %d", len(db.records))
	}
}

func TestRecordService_DropsWhenFull(t *testing.T) {
	db := newFakeDatabase()
	svc := NewRecordService(db, 1)

	svc.Archive(testRecord("A-0001"))
	svc.Archive(testRecord("A-0002"))

	if len(svc.queue) != 1 {
		t.Errorf("Queue should hold exactly one record, has %d", len(svc.queue))
	}
}

func TestRecordService_Disabled(t *testing.T) {
	svc := NewRecordService(nil, 1)
	if svc.Enabled() {
		t.Fatal("Service without a database should be disabled")
	}

	svc.Archive(testRecord("A-0001"))
	svc.Start(context.Background())
	svc.Wait()

	if _, err := svc.PlayerStats(context.Background(), "p1"); err != ErrArchiveDisabled {
		t.Errorf("Expected ErrArchiveDisabled, got %v", err)
	}
	if _, err := svc.PlayerHistory(context.Background(), "p1", 5); err != ErrArchiveDisabled {
		t.Errorf("Expected ErrArchiveDisabled, got %v", err)
	}
}
