package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/gofrs/flock"
	"github.com/tidwall/buntdb"
)

const (
	buntMemory     = ":memory:"
	buntChatPrefix = "chat:"
	buntChatIndex  = "chatroomts"
)

// buntChatDocument is a stored message. Received is the zero-padded receipt instant in unix nanoseconds, it orders
// messages of the same second.
type buntChatDocument struct {
	types.ChatMessage
	Received string `json:"received"`
}

func receivedKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

// buntPivot sorts after every message of its room in the chat index.
type buntPivot struct {
	IdEvent  string `json:"idEvent"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Received string `json:"received"`
}

// BuntGateway stores chat messages as JSON documents in a BuntDB database. The data file is guarded by a file lock,
// so only one process can use it.
type BuntGateway struct {
	db   *buntdb.DB
	lock *flock.Flock
}

// NewBuntGateway opens the database in fileName (":memory:" for a volatile database). flockPath defaults to
// fileName + ".lock".
func NewBuntGateway(fileName, flockPath string) (*BuntGateway, error) {
	if fileName == "" {
		fileName = buntMemory
	}
	var lock *flock.Flock
	if fileName != buntMemory {
		if flockPath == "" {
			flockPath = fileName + ".lock"
		}
		lock = flock.New(flockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("could not lock %s: %w", flockPath, err)
		}
		if !locked {
			return nil, fmt.Errorf("database %s is in use by another process (lock %s)", fileName, flockPath)
		}
	}
	db, err := buntdb.Open(fileName)
	if err != nil {
		unlock(lock)
		return nil, err
	}
	err = db.CreateIndex(buntChatIndex, buntChatPrefix+"*", buntdb.IndexJSON("idEvent"), buntdb.IndexJSON("date"), buntdb.IndexJSON("time"),
		buntdb.IndexJSON("received"))
	if err != nil {
		db.Close()
		unlock(lock)
		return nil, err
	}
	return &BuntGateway{db: db, lock: lock}, nil
}

func unlock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		globals.AppLogger.Error("could not release lock", "path", lock.Path(), "error", err)
	}
}

func (p *BuntGateway) Append(_ context.Context, msg types.ChatMessage) error {
	raw, err := json.Marshal(buntChatDocument{ChatMessage: msg, Received: receivedKey(msg.Created)})
	if err != nil {
		return err
	}
	return p.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(buntChatPrefix+msg.Id, string(raw), nil)
		return err
	})
}

// roomItems calls iter for the messages of room, newest first, until iter returns false.
func (p *BuntGateway) roomItems(tx *buntdb.Tx, room string, iter func(key string, msg types.ChatMessage) bool) error {
	pivot, err := json.Marshal(buntPivot{IdEvent: room, Date: "9999-99-99", Time: "99:99:99", Received: "99999999999999999999"})
	if err != nil {
		return err
	}
	var iterErr error
	err = tx.DescendLessOrEqual(buntChatIndex, string(pivot), func(key, val string) bool {
		msg := types.ChatMessage{}
		if err := json.Unmarshal([]byte(val), &msg); err != nil {
			iterErr = fmt.Errorf("could not unmarshal %s: %w", key, err)
			return false
		}
		if !strings.EqualFold(msg.IdEvent, room) {
			return false
		}
		if msg.IdEvent != room {
			return true
		}
		return iter(key, msg)
	})
	if err != nil {
		return err
	}
	return iterErr
}

func (p *BuntGateway) Query(_ context.Context, room string, limit int) ([]types.ChatMessage, error) {
	if room == "" {
		return nil, ErrNoRoom
	}
	msgs := make([]types.ChatMessage, 0)
	err := p.db.View(func(tx *buntdb.Tx) error {
		return p.roomItems(tx, room, func(_ string, msg types.ChatMessage) bool {
			msgs = append(msgs, msg)
			return limit <= 0 || len(msgs) < limit
		})
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (p *BuntGateway) DeleteRoom(_ context.Context, room string) (int, error) {
	if room == "" {
		return 0, ErrNoRoom
	}
	n := 0
	err := p.db.Update(func(tx *buntdb.Tx) error {
		keys := make([]string, 0)
		err := p.roomItems(tx, room, func(key string, _ types.ChatMessage) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (p *BuntGateway) Purge(_ context.Context, before time.Time) (int, error) {
	n := 0
	err := p.db.Update(func(tx *buntdb.Tx) error {
		keys := make([]string, 0)
		var iterErr error
		err := tx.AscendKeys(buntChatPrefix+"*", func(key, val string) bool {
			msg := types.ChatMessage{}
			if err := json.Unmarshal([]byte(val), &msg); err != nil {
				iterErr = fmt.Errorf("could not unmarshal %s: %w", key, err)
				return false
			}
			if msg.Created.Before(before) {
				keys = append(keys, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		if iterErr != nil {
			return iterErr
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (p *BuntGateway) Close() error {
	defer unlock(p.lock)
	return p.db.Close()
}
