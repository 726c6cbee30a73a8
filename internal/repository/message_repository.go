package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/directchat/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	ListConversation(ctx context.Context, userA, userB string) ([]model.Message, error)
	LastInConversation(ctx context.Context, userA, userB string) (*model.Message, error)
	CountUnread(ctx context.Context, senderID, receiverID string) (int64, error)
	MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	FindPreviews(ctx context.Context, ids []string) (map[string]*model.ReplyPreview, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) SetDB(db *gorm.DB) {
	r.db = db
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msg model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func pairScope(userA, userB string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA)
	}
}

func (r *messageRepository) ListConversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Scopes(pairScope(userA, userB)).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// LastInConversation returns nil without error when the pair never exchanged a message.
func (r *messageRepository) LastInConversation(ctx context.Context, userA, userB string) (*model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msg model.Message
	err := r.db.WithContext(ctx).
		Select("id", "text", "image", "video", "sender_id", "receiver_id", "created_at", "is_deleted").
		Scopes(pairScope(userA, userB)).
		Order("created_at DESC").
		Order("id DESC").
		Take(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, senderID, receiverID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// MarkSeen flips every unseen message from sender to receiver in one statement
// and reports how many rows changed.
func (r *messageRepository) MarkSeen(ctx context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND seen = ?", senderID, receiverID, false).
		Updates(map[string]interface{}{"seen": true, "seen_at": at})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": at,
			"text":       gorm.Expr("NULL"),
			"image":      gorm.Expr("NULL"),
			"video":      gorm.Expr("NULL"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *messageRepository) FindPreviews(ctx context.Context, ids []string) (map[string]*model.ReplyPreview, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[string]*model.ReplyPreview, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Select("id", "text", "image", "video", "sender_id", "is_deleted").
		Where("id IN ?", ids).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i := range msgs {
		out[msgs[i].ID] = msgs[i].Preview()
	}
	return out, nil
}
