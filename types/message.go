package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// Layouts of the date and time of a chat message. Both are fixed width, so the stored strings sort chronologically.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// ChatMessage is a chat message as it is persisted.
type ChatMessage struct {
	Id       string    `json:"id" gorm:"primaryKey"`
	IdEvent  string    `json:"idEvent" gorm:"index;not null"`
	Date     string    `json:"date" gorm:"not null"`
	Time     string    `json:"time" gorm:"not null"`
	Username string    `json:"username" gorm:"not null"`
	Message  string    `json:"msg" gorm:"not null"`
	Created  time.Time `json:"created" gorm:"index;not null"`
}

// TableName keeps the table name of the event application.
func (ChatMessage) TableName() string {
	return "chat"
}

// NewChatMessage creates the canonical record of a message received at the instant at. Date and time are those of at
// in loc (time.Local if nil); surrounding whitespace of username and text is removed.
func NewChatMessage(room, username, text string, at time.Time, loc *time.Location) (ChatMessage, error) {
	if loc == nil {
		loc = time.Local
	}
	local := at.In(loc)
	msg := ChatMessage{
		IdEvent:  room,
		Date:     local.Format(DateLayout),
		Time:     local.Format(TimeLayout),
		Username: strings.TrimSpace(username),
		Message:  strings.TrimSpace(text),
		Created:  at,
	}
	err := msg.CreateId()
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// CreateId sets Id to a hash over the room, sender, text and receipt instant.
func (m *ChatMessage) CreateId() error {
	h, err := hashstructure.Hash(struct {
		IdEvent  string
		Username string
		Message  string
		Created  int64
	}{m.IdEvent, m.Username, m.Message, m.Created.UnixNano()}, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = strconv.FormatUint(h, 16)
	return nil
}

// Outgoing returns the representation broadcast to the room.
func (m ChatMessage) Outgoing() OutgoingChatMessage {
	return OutgoingChatMessage{
		Date:     m.Date,
		Time:     m.Time,
		Username: m.Username,
		Msg:      m.Message,
	}
}
