package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/aperoland/aperoland-chat/types"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteGateway keeps the chat table in an SQLite database. The receipt instant is stored as unix nanoseconds.
type SQLiteGateway struct {
	db *sql.DB
	sync.RWMutex
}

func NewSQLiteGateway(dsn string) (*SQLiteGateway, error) {
	db, err := setupSQLiteDB(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteGateway{db: db}, nil
}

func setupSQLiteDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no sqlite dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection, otherwise every connection to ":memory:" opens its own database
	db.SetMaxOpenConns(1)
	query := `CREATE TABLE IF NOT EXISTS chat (
id TEXT PRIMARY KEY,
id_event TEXT NOT NULL,
date TEXT NOT NULL,
time TEXT NOT NULL,
username TEXT NOT NULL,
message TEXT NOT NULL,
created INTEGER DEFAULT 0 NOT NULL
);`
	_, err = db.Exec(query)
	if err != nil {
		db.Close()
		return nil, err
	}
	query = `CREATE INDEX IF NOT EXISTS chat_room_ts_idx ON chat (id_event, date, time);`
	_, err = db.Exec(query)
	if err != nil {
		db.Close()
		return nil, err
	}
	query = `CREATE INDEX IF NOT EXISTS chat_created_idx ON chat (created);`
	_, err = db.Exec(query)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *SQLiteGateway) Append(ctx context.Context, msg types.ChatMessage) error {
	p.Lock()
	defer p.Unlock()
	query := `INSERT INTO chat (id,id_event,date,time,username,message,created) VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := p.db.ExecContext(ctx, query, msg.Id, msg.IdEvent, msg.Date, msg.Time, msg.Username, msg.Message, msg.Created.UnixNano())
	if err != nil {
		return fmt.Errorf("could not insert chat message: %w", err)
	}
	return nil
}

func (p *SQLiteGateway) Query(ctx context.Context, room string, limit int) ([]types.ChatMessage, error) {
	if room == "" {
		return nil, ErrNoRoom
	}
	p.RLock()
	defer p.RUnlock()
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT id,id_event,date,time,username,message,created FROM chat WHERE id_event=$1
ORDER BY date DESC, time DESC, created DESC LIMIT $2;`
	rows, err := p.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query chat messages: %w", err)
	}
	defer rows.Close()
	msgs := make([]types.ChatMessage, 0)
	for rows.Next() {
		var msg types.ChatMessage
		var created int64
		err = rows.Scan(&msg.Id, &msg.IdEvent, &msg.Date, &msg.Time, &msg.Username, &msg.Message, &created)
		if err != nil {
			return nil, err
		}
		msg.Created = time.Unix(0, created)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (p *SQLiteGateway) DeleteRoom(ctx context.Context, room string) (int, error) {
	if room == "" {
		return 0, ErrNoRoom
	}
	p.Lock()
	defer p.Unlock()
	query := `DELETE FROM chat WHERE id_event=$1;`
	return execCount(ctx, p.db, query, room)
}

func (p *SQLiteGateway) Purge(ctx context.Context, before time.Time) (int, error) {
	p.Lock()
	defer p.Unlock()
	query := `DELETE FROM chat WHERE created < $1;`
	return execCount(ctx, p.db, query, before.UnixNano())
}

func (p *SQLiteGateway) Close() error {
	p.Lock()
	defer p.Unlock()
	return p.db.Close()
}

func execCount(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
