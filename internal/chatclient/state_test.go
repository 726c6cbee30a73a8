package chatclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shinyyama/directchat/internal/model"
	"github.com/shinyyama/directchat/internal/service"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	conversation []model.Message
	sidebar      []service.SidebarEntry
	seenCalls    []string
	deleted      []string
	sent         []SendRequest
}

func (f *fakeAPI) Sidebar(context.Context) ([]service.SidebarEntry, error) {
	return f.sidebar, nil
}

func (f *fakeAPI) Conversation(context.Context, string) ([]model.Message, error) {
	return append([]model.Message(nil), f.conversation...), nil
}

func (f *fakeAPI) Send(_ context.Context, userID string, req SendRequest) (*model.Message, error) {
	f.sent = append(f.sent, req)
	text := req.Text
	return &model.Message{ID: "sent-1", SenderID: "me", ReceiverID: userID, Text: &text}, nil
}

func (f *fakeAPI) MarkSeen(_ context.Context, userID string) (int64, error) {
	f.seenCalls = append(f.seenCalls, userID)
	return 1, nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func strp(s string) *string { return &s }

func event(t *testing.T, typ string, payload any) Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return Event{Type: typ, Payload: raw}
}

func TestOpenReportsSeenOnlyWhenVisible(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{conversation: []model.Message{{ID: "m1", SenderID: "bob", ReceiverID: "me", Text: strp("hi")}}}
	st := NewState(api, "me")

	require.NoError(t, st.SetVisible(ctx, false))
	require.NoError(t, st.Open(ctx, "bob"))
	require.Len(t, st.Messages(), 1)
	require.Empty(t, api.seenCalls, "hidden view must not report seen")

	require.NoError(t, st.SetVisible(ctx, true))
	require.Equal(t, []string{"bob"}, api.seenCalls)

	require.NoError(t, st.Open(ctx, "bob"))
	require.Equal(t, []string{"bob", "bob"}, api.seenCalls)
}

func TestNewMessageFiltering(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{sidebar: []service.SidebarEntry{{User: model.User{ID: "carol"}}}}
	st := NewState(api, "me")
	require.NoError(t, st.RefreshUsers(ctx))
	require.NoError(t, st.Open(ctx, "bob"))
	api.seenCalls = nil

	require.NoError(t, st.Apply(ctx, event(t, model.EventNewMessage, model.Message{ID: "x", SenderID: "carol", ReceiverID: "me"})))
	require.Empty(t, st.Messages(), "messages from other users stay out of the open conversation")
	require.Zero(t, st.Users()[0].UnreadCount, "sidebar counts wait for the next refresh")

	require.NoError(t, st.Apply(ctx, event(t, model.EventNewMessage, model.Message{ID: "y", SenderID: "bob", ReceiverID: "me"})))
	require.Len(t, st.Messages(), 1)
	require.Equal(t, []string{"bob"}, api.seenCalls)
	require.Zero(t, st.Users()[0].UnreadCount)

	require.NoError(t, st.SetVisible(ctx, false))
	require.NoError(t, st.Apply(ctx, event(t, model.EventNewMessage, model.Message{ID: "z", SenderID: "bob", ReceiverID: "me"})))
	require.Len(t, st.Messages(), 2)
	require.Equal(t, []string{"bob"}, api.seenCalls, "passive receipt while hidden never marks")
}

func TestMessagesSeenFlipsOnlyMyMessagesToThatUser(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{conversation: []model.Message{
		{ID: "1", SenderID: "me", ReceiverID: "bob"},
		{ID: "2", SenderID: "bob", ReceiverID: "me"},
		{ID: "3", SenderID: "me", ReceiverID: "bob"},
	}}
	st := NewState(api, "me")
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return fixed }
	require.NoError(t, st.Open(ctx, "bob"))

	require.NoError(t, st.Apply(ctx, event(t, model.EventMessagesSeen, model.MessagesSeenEvent{UserID: "carol", ChatID: "me", Count: 1})))
	for _, m := range st.Messages() {
		require.False(t, m.Seen)
	}

	require.NoError(t, st.Apply(ctx, event(t, model.EventMessagesSeen, model.MessagesSeenEvent{UserID: "bob", ChatID: "me", Count: 2})))
	msgs := st.Messages()
	require.True(t, msgs[0].Seen)
	require.Equal(t, fixed, *msgs[0].SeenAt)
	require.False(t, msgs[1].Seen)
	require.True(t, msgs[2].Seen)
}

func TestDeletionScrubsMessageAndReplyPreview(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{conversation: []model.Message{
		{ID: "1", SenderID: "bob", ReceiverID: "me", Text: strp("oops")},
		{ID: "2", SenderID: "me", ReceiverID: "bob", Text: strp("what"), ReplyTo: &model.ReplyPreview{ID: "1", Text: strp("oops"), SenderID: "bob"}},
		{ID: "3", SenderID: "me", ReceiverID: "bob", Text: strp("mine")},
	}}
	st := NewState(api, "me")
	require.NoError(t, st.Open(ctx, "bob"))

	require.NoError(t, st.Apply(ctx, event(t, model.EventMessageDeleted, model.MessageDeletedEvent{MessageID: "1"})))
	msgs := st.Messages()
	require.True(t, msgs[0].IsDeleted)
	require.Nil(t, msgs[0].Text)
	require.True(t, msgs[1].ReplyTo.IsDeleted)
	require.Nil(t, msgs[1].ReplyTo.Text)

	require.NoError(t, st.Delete(ctx, "3"))
	require.Equal(t, []string{"3"}, api.deleted)
	require.True(t, st.Messages()[2].IsDeleted)
}

func TestOnlineUsersAndSend(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	st := NewState(api, "me")

	_, err := st.Send(ctx, SendRequest{Text: "nobody"})
	require.ErrorIs(t, err, ErrNoConversation)

	require.NoError(t, st.Apply(ctx, event(t, model.EventOnlineUsers, []string{"bob", "me"})))
	require.True(t, st.IsOnline("bob"))
	require.False(t, st.IsOnline("carol"))

	require.NoError(t, st.Open(ctx, "bob"))
	msg, err := st.Send(ctx, SendRequest{Text: "yo"})
	require.NoError(t, err)
	require.Equal(t, "bob", msg.ReceiverID)
	require.Len(t, st.Messages(), 1)

	require.NoError(t, st.Apply(ctx, Event{Type: "pong"}))
	require.Error(t, st.Apply(ctx, Event{Type: model.EventOnlineUsers, Payload: json.RawMessage(`{`)}))
}
