package event

import (
	"sodeclick-chat/domain"
	"time"

	"github.com/google/uuid"
)

type Name string

// Inbound
const (
	Join               Name = "join"
	Leave              Name = "leave"
	SendMessage        Name = "send-message"
	React              Name = "react"
	MarkRead           Name = "mark-read"
	TypingStart        Name = "typing-start"
	TypingStop         Name = "typing-stop"
	DeleteMessage      Name = "delete-message"
	DeleteConversation Name = "delete-conversation"
)

// Outbound
const (
	Joined              Name = "joined"
	RosterUpdated       Name = "roster-updated"
	UserJoined          Name = "user-joined"
	UserLeft            Name = "user-left"
	NewMessage          Name = "new-message"
	MessageNotification Name = "message-notification"
	ReactionUpdated     Name = "reaction-updated"
	UnreadCountUpdate   Name = "unread-count-update"
	ReadReceipt         Name = "read-receipt"
	Typing              Name = "typing"
	MessageDeleted      Name = "message-deleted"
	ConversationDeleted Name = "conversation-deleted"
	Error               Name = "error"
)

// ConnectionChannel marks events addressed to a single connection.
const ConnectionChannel = "connection"

// Event is what a sink receives. Channel is the room address, a personal
// channel or ConnectionChannel.
type Event struct {
	Name    Name   `json:"event"`
	Channel string `json:"channel"`
	Payload any    `json:"data"`
}

func New(name Name, channel string, payload any) Event {
	return Event{Name: name, Channel: channel, Payload: payload}
}

type JoinedPayload struct {
	Address          string `json:"address"`
	RequestedAddress string `json:"requestedAddress"`
	Kind             string `json:"kind"`
}

type RosterEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type RosterPayload struct {
	Address     string        `json:"address"`
	OnlineCount int           `json:"onlineCount"`
	Members     []RosterEntry `json:"members"`
}

type PresencePayload struct {
	Address     string `json:"address"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type NotificationPayload struct {
	MessageID  uuid.UUID `json:"messageId"`
	Address    string    `json:"address"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Preview    string    `json:"preview"`
}

type ReactionPayload struct {
	MessageID    uuid.UUID                   `json:"messageId"`
	Counts       map[domain.ReactionType]int `json:"counts"`
	UserID       string                      `json:"userId"`
	ReactionType domain.ReactionType         `json:"reactionType"`
	Action       domain.ReactionAction       `json:"action"`
}

type UnreadPayload struct {
	Address     string `json:"address"`
	UnreadCount int    `json:"unreadCount"`
}

type ReadReceiptPayload struct {
	Address string `json:"address"`
	UserID  string `json:"userId"`
	Count   int    `json:"count"`
}

type TypingPayload struct {
	Address     string `json:"address"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}

type MessageDeletedPayload struct {
	MessageID uuid.UUID `json:"messageId"`
	Address   string    `json:"address"`
	DeletedAt time.Time `json:"deletedAt"`
}

type ConversationDeletedPayload struct {
	Address    string `json:"address"`
	NewAddress string `json:"newAddress"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
