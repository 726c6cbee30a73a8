package model

// Real-time event names pushed from the server to connected clients.
const (
	EventNewMessage     = "newMessage"
	EventMessagesSeen   = "messagesSeen"
	EventMessageDeleted = "messageDeleted"
	EventOnlineUsers    = "getOnlineUsers"
)

// MessagesSeenEvent tells a sender that UserID has read Count of their
// messages in the conversation identified by ChatID.
type MessagesSeenEvent struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
	Count  int64  `json:"count"`
}

type MessageDeletedEvent struct {
	MessageID string `json:"messageId"`
}
