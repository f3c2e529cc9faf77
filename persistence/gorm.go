package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/aperoland/aperoland-chat/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormGateway struct {
	db *gorm.DB
}

// NewGormGateway opens dsn with the "sqlite" or "postgres" dialect and migrates the chat table.
func NewGormGateway(dialect, dsn string) (*GormGateway, error) {
	db, err := setupGormDB(dialect, dsn)
	if err != nil {
		return nil, err
	}
	return &GormGateway{db: db}, nil
}

func setupGormDB(dialect, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no gorm dsn")
	}
	var dial gorm.Dialector
	switch dialect {
	case "postgres":
		dial = postgres.Open(dsn)

	case "", "sqlite":
		dial = sqlite.Open(dsn)

	default:
		return nil, fmt.Errorf("invalid gorm dialect %q", dialect)
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if dial.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	err = db.AutoMigrate(&types.ChatMessage{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (p *GormGateway) Append(ctx context.Context, msg types.ChatMessage) error {
	return p.db.WithContext(ctx).Create(&msg).Error
}

func (p *GormGateway) Query(ctx context.Context, room string, limit int) ([]types.ChatMessage, error) {
	if room == "" {
		return nil, ErrNoRoom
	}
	msgs := make([]types.ChatMessage, 0)
	tx := p.db.WithContext(ctx).Where("id_event = ?", room).Order("date DESC").Order("time DESC").Order("created DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	err := tx.Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (p *GormGateway) DeleteRoom(ctx context.Context, room string) (int, error) {
	if room == "" {
		return 0, ErrNoRoom
	}
	res := p.db.WithContext(ctx).Where("id_event = ?", room).Delete(&types.ChatMessage{})
	return int(res.RowsAffected), res.Error
}

func (p *GormGateway) Purge(ctx context.Context, before time.Time) (int, error) {
	res := p.db.WithContext(ctx).Where("created < ?", before).Delete(&types.ChatMessage{})
	return int(res.RowsAffected), res.Error
}

func (p *GormGateway) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
