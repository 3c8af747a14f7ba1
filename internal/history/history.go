// Package history keeps an append-only ledger of finished battles.
// Live battles are never restored from it.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Reason string

const (
	ReasonFainted      Reason = "fainted"
	ReasonDisconnected Reason = "disconnected"
	ReasonExited       Reason = "exited"
)

var ErrUnknownDriver = errors.New("history: unknown driver")

// Record is one finished battle.
type Record struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoomID      string    `gorm:"size:64;uniqueIndex" json:"roomId"`
	Player1ID   string    `gorm:"size:64" json:"player1Id"`
	Player1Name string    `gorm:"size:64" json:"player1Name"`
	Pokemon1    string    `gorm:"size:64" json:"pokemon1"`
	Player2ID   string    `gorm:"size:64" json:"player2Id"`
	Player2Name string    `gorm:"size:64" json:"player2Name"`
	Pokemon2    string    `gorm:"size:64" json:"pokemon2"`
	WinnerID    string    `gorm:"size:64" json:"winnerId"`
	Reason      Reason    `gorm:"size:16" json:"reason"`
	Turns       int       `json:"turns"`
	EndedAt     time.Time `gorm:"index" json:"endedAt"`
}

// Recorder is what the hub needs from the ledger.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type Store struct {
	db *gorm.DB
}

// Open connects with the named driver ("postgres" or "sqlite") and migrates.
func Open(driver, dsn string) (*Store, error) {
	var dial gorm.Dialector
	switch driver {
	case "postgres":
		dial = postgres.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record battle %s: %w", rec.RoomID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []Record
	err := s.db.WithContext(ctx).Order("ended_at desc").Order("id desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
