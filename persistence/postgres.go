package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aperoland/aperoland-chat/types"
	_ "github.com/lib/pq"
)

type PostgresGateway struct {
	db *sql.DB
}

func NewPostgresGateway(dsn string) (*PostgresGateway, error) {
	db, err := setupPostgresDB(dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresGateway{db: db}, nil
}

func setupPostgresDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	query := `CREATE TABLE IF NOT EXISTS chat (
id TEXT PRIMARY KEY,
id_event TEXT NOT NULL,
date TEXT NOT NULL,
time TEXT NOT NULL,
username TEXT NOT NULL,
message TEXT NOT NULL,
created TIMESTAMP WITH TIME ZONE DEFAULT now() NOT NULL
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

func (p *PostgresGateway) Append(ctx context.Context, msg types.ChatMessage) error {
	query := `INSERT INTO chat (id,id_event,date,time,username,message,created) VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := p.db.ExecContext(ctx, query, msg.Id, msg.IdEvent, msg.Date, msg.Time, msg.Username, msg.Message, msg.Created)
	if err != nil {
		return fmt.Errorf("could not insert chat message: %w", err)
	}
	return nil
}

func (p *PostgresGateway) Query(ctx context.Context, room string, limit int) ([]types.ChatMessage, error) {
	if room == "" {
		return nil, ErrNoRoom
	}
	// LIMIT NULL is LIMIT ALL
	var sqlLimit sql.NullInt64
	if limit > 0 {
		sqlLimit = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	query := `SELECT id,id_event,date,time,username,message,created FROM chat WHERE id_event=$1
ORDER BY date DESC, time DESC, created DESC LIMIT $2;`
	rows, err := p.db.QueryContext(ctx, query, room, sqlLimit)
	if err != nil {
		return nil, fmt.Errorf("could not query chat messages: %w", err)
	}
	defer rows.Close()
	msgs := make([]types.ChatMessage, 0)
	for rows.Next() {
		var msg types.ChatMessage
		err = rows.Scan(&msg.Id, &msg.IdEvent, &msg.Date, &msg.Time, &msg.Username, &msg.Message, &msg.Created)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func (p *PostgresGateway) DeleteRoom(ctx context.Context, room string) (int, error) {
	if room == "" {
		return 0, ErrNoRoom
	}
	query := `DELETE FROM chat WHERE id_event=$1;`
	return execCount(ctx, p.db, query, room)
}

func (p *PostgresGateway) Purge(ctx context.Context, before time.Time) (int, error) {
	query := `DELETE FROM chat WHERE created < $1;`
	return execCount(ctx, p.db, query, before)
}

func (p *PostgresGateway) Close() error {
	return p.db.Close()
}
