package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/types"
)

// ErrNoRoom is returned by operations that require a room id when none was given.
var ErrNoRoom = errors.New("no room id")

// Gateway records chat messages and gives access to the history of a room.
type Gateway interface {
	// Append stores a single message.
	Append(context.Context, types.ChatMessage) error
	// Query returns at most limit messages of a room (all of them if limit <= 0), ordered by date, then time,
	// newest first.
	Query(ctx context.Context, room string, limit int) ([]types.ChatMessage, error)
	// DeleteRoom removes the whole history of a room and returns the number of removed messages.
	DeleteRoom(ctx context.Context, room string) (int, error)
	// Purge removes all messages received before the given instant.
	Purge(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// NewGateway creates the gateway selected by the persistence configuration.
func NewGateway(cfg *config.Config) (Gateway, error) {
	pc := cfg.PersistenceConfig
	var gw Gateway
	var err error
	switch pc.Type {
	case "", "buntdb":
		gw, err = NewBuntGateway(pc.DSN, pc.FlockPath)

	case "sqlite":
		gw, err = NewSQLiteGateway(pc.DSN)

	case "postgres":
		gw, err = NewPostgresGateway(pc.DSN)

	case "gorm":
		gw, err = NewGormGateway(pc.Dialect, pc.DSN)

	default:
		return nil, fmt.Errorf("invalid persistence type %q", pc.Type)
	}
	if err != nil {
		return nil, err
	}
	return gw, nil
}
