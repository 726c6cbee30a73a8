package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/service"
)

var ErrNoConversation = errors.New("no conversation open")

// API is the subset of Client that State drives.
type API interface {
	Sidebar(ctx context.Context) ([]service.SidebarEntry, error)
	Conversation(ctx context.Context, userID string) ([]model.Message, error)
	Send(ctx context.Context, userID string, req SendRequest) (*model.Message, error)
	MarkSeen(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, messageID string) error
}

// Event is one server push as read off the stream.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// State mirrors what one signed-in user sees. Seen reports are only sent
// while the view is visible and a conversation is open.
type State struct {
	api API
	me  string
	now func() time.Time

	mu          sync.Mutex
	counterpart string
	messages    []model.Message
	users       []service.SidebarEntry
	online      map[string]bool
	visible     bool
}

func NewState(api API, me string) *State {
	return &State{
		api:     api,
		me:      me,
		now:     time.Now,
		online:  make(map[string]bool),
		visible: true,
	}
}

func (s *State) Open(ctx context.Context, counterpart string) error {
	msgs, err := s.api.Conversation(ctx, counterpart)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.counterpart = counterpart
	s.messages = msgs
	visible := s.visible
	s.mu.Unlock()

	if visible {
		return s.markSeen(ctx, counterpart)
	}
	return nil
}

func (s *State) Close() {
	s.mu.Lock()
	s.counterpart = ""
	s.messages = nil
	s.mu.Unlock()
}

// SetVisible records whether the view is on screen. Becoming visible with
// a conversation open reports it as seen.
func (s *State) SetVisible(ctx context.Context, visible bool) error {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	counterpart := s.counterpart
	s.mu.Unlock()

	if visible && !was && counterpart != "" {
		return s.markSeen(ctx, counterpart)
	}
	return nil
}

func (s *State) markSeen(ctx context.Context, counterpart string) error {
	_, err := s.api.MarkSeen(ctx, counterpart)
	return err
}

// Apply folds one pushed event into the state. Unknown events are ignored.
func (s *State) Apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case model.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return err
		}
		return s.applyNewMessage(ctx, msg)
	case model.EventMessagesSeen:
		var seen model.MessagesSeenEvent
		if err := json.Unmarshal(ev.Payload, &seen); err != nil {
			return err
		}
		s.applySeen(seen)
	case model.EventMessageDeleted:
		var del model.MessageDeletedEvent
		if err := json.Unmarshal(ev.Payload, &del); err != nil {
			return err
		}
		s.mu.Lock()
		s.scrub(del.MessageID)
		s.mu.Unlock()
	case model.EventOnlineUsers:
		var ids []string
		if err := json.Unmarshal(ev.Payload, &ids); err != nil {
			return err
		}
		online := make(map[string]bool, len(ids))
		for _, id := range ids {
			online[id] = true
		}
		s.mu.Lock()
		s.online = online
		s.mu.Unlock()
	}
	return nil
}

// applyNewMessage only touches the open conversation. Sidebar unread counts
// come from the next RefreshUsers.
func (s *State) applyNewMessage(ctx context.Context, msg model.Message) error {
	s.mu.Lock()
	if s.counterpart == "" || msg.SenderID != s.counterpart {
		s.mu.Unlock()
		return nil
	}
	s.messages = append(s.messages, msg)
	visible := s.visible
	counterpart := s.counterpart
	s.mu.Unlock()

	if visible {
		return s.markSeen(ctx, counterpart)
	}
	return nil
}

func (s *State) applySeen(ev model.MessagesSeenEvent) {
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == s.me && m.ReceiverID == ev.UserID && !m.Seen {
			m.Seen = true
			m.SeenAt = &at
		}
	}
}

// scrub must be called with mu held.
func (s *State) scrub(messageID string) {
	for i := range s.messages {
		m := &s.messages[i]
		if m.ID == messageID {
			m.IsDeleted = true
			m.Text, m.Image, m.Video = nil, nil, nil
		}
		if m.ReplyTo != nil && m.ReplyTo.ID == messageID {
			m.ReplyTo.IsDeleted = true
			m.ReplyTo.Text, m.ReplyTo.Image, m.ReplyTo.Video = nil, nil, nil
		}
	}
}

func (s *State) Send(ctx context.Context, req SendRequest) (*model.Message, error) {
	s.mu.Lock()
	counterpart := s.counterpart
	s.mu.Unlock()
	if counterpart == "" {
		return nil, ErrNoConversation
	}
	msg, err := s.api.Send(ctx, counterpart, req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.counterpart == counterpart {
		s.messages = append(s.messages, *msg)
	}
	s.mu.Unlock()
	return msg, nil
}

func (s *State) Delete(ctx context.Context, messageID string) error {
	if err := s.api.Delete(ctx, messageID); err != nil {
		return err
	}
	s.mu.Lock()
	s.scrub(messageID)
	s.mu.Unlock()
	return nil
}

func (s *State) RefreshUsers(ctx context.Context) error {
	users, err := s.api.Sidebar(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

func (s *State) Counterpart() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counterpart
}

// Messages returns a copy of the open conversation.
func (s *State) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

func (s *State) Users() []service.SidebarEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.SidebarEntry(nil), s.users...)
}

func (s *State) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userID]
}
