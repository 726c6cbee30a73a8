package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/media"
	"github.com/shinyyama/directchat/internal/metrics"
	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/realtime"
	"github.com/shinyyama/directchat/internal/reqctx"
	"github.com/shinyyama/directchat/internal/repository"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const sidebarConcurrency = 8

// Presence resolves a user to their live connection.
type Presence interface {
	Lookup(userID string) (string, bool)
}

// Emitter delivers one event to one connection.
type Emitter interface {
	Emit(connID, event string, payload any) error
}

type MessageService interface {
	ListSidebar(ctx context.Context, me string) ([]SidebarEntry, error)
	Conversation(ctx context.Context, me, counterpart string) ([]model.Message, error)
	Send(ctx context.Context, in SendInput) (*model.Message, error)
	MarkSeen(ctx context.Context, me, counterpart string) (int64, error)
	Delete(ctx context.Context, me, messageID string) error
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Video      string
	ReplyTo    string
}

type LastMessage struct {
	Text      *string   `json:"text"`
	Image     *string   `json:"image"`
	Video     *string   `json:"video"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
	IsDeleted bool      `json:"isDeleted"`
}

type SidebarEntry struct {
	model.User
	LastMessage *LastMessage `json:"lastMessage"`
	UnreadCount int64        `json:"unreadCount"`
	Online      bool         `json:"online"`
}

func (e SidebarEntry) activity() time.Time {
	if e.LastMessage == nil {
		return time.Unix(0, 0)
	}
	return e.LastMessage.CreatedAt
}

type messageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	presence Presence
	emitter  Emitter
	uploader media.Uploader
	logger   zerolog.Logger
	now      func() time.Time
}

// NewMessageService wires the message operations. presence, emitter and
// uploader may be nil; pushes are then skipped and media sends fail.
func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	presence Presence,
	emitter Emitter,
	uploader media.Uploader,
	logger zerolog.Logger,
) MessageService {
	return &messageService{
		messages: messages,
		users:    users,
		presence: presence,
		emitter:  emitter,
		uploader: uploader,
		logger:   logger.With().Str("component", "message_service").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) ListSidebar(ctx context.Context, me string) ([]SidebarEntry, error) {
	users, err := s.users.ListExcept(ctx, me)
	if err != nil {
		return nil, s.internal(ctx, "list_sidebar", err, me, "")
	}

	entries := make([]SidebarEntry, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sidebarConcurrency)
	for i := range users {
		i := i
		entries[i].User = users[i]
		g.Go(func() error {
			other := users[i].ID
			last, err := s.messages.LastInConversation(gctx, me, other)
			if err != nil {
				return err
			}
			unread, err := s.messages.CountUnread(gctx, other, me)
			if err != nil {
				return err
			}
			if last != nil {
				entries[i].LastMessage = &LastMessage{
					Text:      last.Text,
					Image:     last.Image,
					Video:     last.Video,
					SenderID:  last.SenderID,
					CreatedAt: last.CreatedAt,
					IsDeleted: last.IsDeleted,
				}
			}
			entries[i].UnreadCount = unread
			entries[i].Online = s.isOnline(other)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, s.internal(ctx, "list_sidebar", err, me, "")
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].activity().After(entries[b].activity())
	})
	return entries, nil
}

func (s *messageService) Conversation(ctx context.Context, me, counterpart string) ([]model.Message, error) {
	msgs, err := s.messages.ListConversation(ctx, me, counterpart)
	if err != nil {
		return nil, s.internal(ctx, "conversation", err, me, counterpart)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	if err := s.attachPreviews(ctx, msgs); err != nil {
		return nil, s.internal(ctx, "conversation", err, me, counterpart)
	}
	return msgs, nil
}

func (s *messageService) attachPreviews(ctx context.Context, msgs []model.Message) error {
	var ids []string
	for i := range msgs {
		if msgs[i].ReplyToID != nil {
			ids = append(ids, *msgs[i].ReplyToID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	previews, err := s.messages.FindPreviews(ctx, ids)
	if err != nil {
		return err
	}
	for i := range msgs {
		if msgs[i].ReplyToID != nil {
			msgs[i].ReplyTo = previews[*msgs[i].ReplyToID]
		}
	}
	return nil
}

func (s *messageService) Send(ctx context.Context, in SendInput) (*model.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == "" && in.Video == "" {
		return nil, ErrEmptyMessage
	}
	if in.SenderID == in.ReceiverID {
		return nil, ErrSelfMessage
	}
	if _, err := s.users.FindByID(ctx, in.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal(ctx, "send", err, in.SenderID, in.ReceiverID)
	}

	msg := &model.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
	}
	if text != "" {
		msg.Text = &in.Text
	}
	if in.ReplyTo != "" {
		replyTo := in.ReplyTo
		msg.ReplyToID = &replyTo
	}
	if in.Image != "" {
		url, err := s.upload(ctx, media.KindImage, in.SenderID, in.Image)
		if err != nil {
			return nil, err
		}
		msg.Image = &url
	}
	if in.Video != "" {
		url, err := s.upload(ctx, media.KindVideo, in.SenderID, in.Video)
		if err != nil {
			return nil, err
		}
		msg.Video = &url
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, s.internal(ctx, "send", err, in.SenderID, in.ReceiverID)
	}
	if msg.ReplyToID != nil {
		one := []model.Message{*msg}
		if err := s.attachPreviews(ctx, one); err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("reply preview lookup failed")
		} else {
			msg.ReplyTo = one[0].ReplyTo
		}
	}
	metrics.MessagesSent.WithLabelValues(messageKind(msg)).Inc()

	s.push(ctx, msg.ReceiverID, model.EventNewMessage, msg)
	return msg, nil
}

func (s *messageService) upload(ctx context.Context, kind media.Kind, owner, payload string) (string, error) {
	if s.uploader == nil {
		return "", ErrMediaUnavailable
	}
	url, err := s.uploader.Upload(ctx, kind, owner, payload)
	if err != nil {
		if errors.Is(err, media.ErrInvalidPayload) {
			return "", ErrInvalidMedia
		}
		s.logger.Error().Err(err).
			Str("request_id", reqctx.RequestID(ctx)).
			Str("kind", string(kind)).
			Str("sender_id", owner).
			Msg("media upload failed")
		return "", ErrMediaUnavailable
	}
	return url, nil
}

func (s *messageService) MarkSeen(ctx context.Context, me, counterpart string) (int64, error) {
	count, err := s.messages.MarkSeen(ctx, counterpart, me, s.now())
	if err != nil {
		return 0, s.internal(ctx, "mark_seen", err, me, counterpart)
	}
	if count == 0 {
		return 0, nil
	}
	metrics.MessagesSeen.Add(float64(count))
	s.push(ctx, counterpart, model.EventMessagesSeen, model.MessagesSeenEvent{
		UserID: me,
		ChatID: counterpart,
		Count:  count,
	})
	return count, nil
}

func (s *messageService) Delete(ctx context.Context, me, messageID string) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.internal(ctx, "delete", err, me, messageID)
	}
	if msg.SenderID != me {
		return ErrForbidden
	}
	if msg.IsDeleted {
		return nil
	}
	if err := s.messages.SoftDelete(ctx, messageID, s.now()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return s.internal(ctx, "delete", err, me, messageID)
	}
	metrics.MessagesDeleted.Inc()
	s.push(ctx, msg.ReceiverID, model.EventMessageDeleted, model.MessageDeletedEvent{MessageID: messageID})
	return nil
}

func (s *messageService) isOnline(userID string) bool {
	if s.presence == nil {
		return false
	}
	_, ok := s.presence.Lookup(userID)
	return ok
}

// push is best-effort; the store stays the source of truth.
func (s *messageService) push(ctx context.Context, userID, event string, payload any) {
	if s.presence == nil || s.emitter == nil {
		metrics.PushesTotal.WithLabelValues(event, "offline").Inc()
		return
	}
	connID, ok := s.presence.Lookup(userID)
	if !ok {
		metrics.PushesTotal.WithLabelValues(event, "offline").Inc()
		return
	}
	if err := s.emitter.Emit(connID, event, payload); err != nil {
		outcome := "failed"
		if errors.Is(err, realtime.ErrConnectionGone) {
			outcome = "offline"
		}
		metrics.PushesTotal.WithLabelValues(event, outcome).Inc()
		s.logger.Debug().Err(err).
			Str("request_id", reqctx.RequestID(ctx)).
			Str("event", event).
			Str("user_id", userID).
			Msg("push dropped")
		return
	}
	metrics.PushesTotal.WithLabelValues(event, "delivered").Inc()
}

func (s *messageService) internal(ctx context.Context, op string, err error, userID, target string) error {
	s.logger.Error().Err(err).
		Str("op", op).
		Str("request_id", reqctx.RequestID(ctx)).
		Str("user_id", userID).
		Str("target", target).
		Msg("store operation failed")
	return ErrInternal
}

func messageKind(m *model.Message) string {
	switch {
	case m.Image != nil && m.Video == nil && m.Text == nil:
		return "image"
	case m.Video != nil && m.Image == nil && m.Text == nil:
		return "video"
	case m.Image == nil && m.Video == nil:
		return "text"
	default:
		return "mixed"
	}
}
