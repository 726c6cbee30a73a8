package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one direct message. A conversation is the unordered pair
// {SenderID, ReceiverID}; rows are never hard-deleted. IDs are UUIDv7 so they
// sort in insertion order when CreatedAt ties.
type Message struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	SenderID   string        `gorm:"column:sender_id;size:128;not null;index:idx_messages_pair,priority:1" json:"senderId"`
	ReceiverID string        `gorm:"column:receiver_id;size:128;not null;index:idx_messages_pair,priority:2;index:idx_messages_unseen,priority:1" json:"receiverId"`
	Text       *string       `gorm:"type:text" json:"text"`
	Image      *string       `gorm:"size:1024" json:"image"`
	Video      *string       `gorm:"size:1024" json:"video"`
	ReplyToID  *string       `gorm:"column:reply_to_id;size:36;index" json:"replyToId,omitempty"`
	ReplyTo    *ReplyPreview `gorm:"-" json:"replyTo,omitempty"`
	IsDeleted  bool          `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`
	DeletedAt  *time.Time    `gorm:"column:deleted_at" json:"deletedAt,omitempty"`
	Seen       bool          `gorm:"not null;default:false;index:idx_messages_unseen,priority:2" json:"seen"`
	SeenAt     *time.Time    `gorm:"column:seen_at" json:"seenAt,omitempty"`
	CreatedAt  time.Time     `gorm:"autoCreateTime;index:idx_messages_pair,priority:3" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		m.ID = id.String()
	}
	return nil
}

// Preview returns the summary shown when another message replies to m.
func (m *Message) Preview() *ReplyPreview {
	return &ReplyPreview{
		ID:        m.ID,
		Text:      m.Text,
		Image:     m.Image,
		Video:     m.Video,
		SenderID:  m.SenderID,
		IsDeleted: m.IsDeleted,
	}
}

type ReplyPreview struct {
	ID        string  `json:"id"`
	Text      *string `json:"text"`
	Image     *string `json:"image"`
	Video     *string `json:"video"`
	SenderID  string  `json:"senderId"`
	IsDeleted bool    `json:"isDeleted"`
}
