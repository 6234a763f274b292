// Package chat holds the inbound requests decoded from the websocket
// envelope. Field rules are enforced with go-playground/validator tags.
// User ids never contain "_", the separator of direct addresses.
package chat

import "github.com/google/uuid"

type JoinRequest struct {
	Address    string `json:"address" validate:"required,max=256"`
	UserID     string `json:"userId" validate:"required,max=128,excludes=_"`
	Credential string `json:"credential"`
}

type LeaveRequest struct {
	Address string `json:"address" validate:"required,max=256"`
	UserID  string `json:"userId" validate:"required,max=128,excludes=_"`
}

type SendMessageRequest struct {
	Address       string     `json:"address" validate:"required,max=256"`
	SenderID      string     `json:"senderId" validate:"required,max=128,excludes=_"`
	Type          string     `json:"type" validate:"required,oneof=text image emoji sticker"`
	Content       string     `json:"content" validate:"required_unless=Type image,max=4000"`
	AttachmentRef string     `json:"attachmentRef" validate:"required_if=Type image,max=512"`
	ReplyToID     *uuid.UUID `json:"replyToId"`
}

type ReactRequest struct {
	MessageID    uuid.UUID `json:"messageId" validate:"required"`
	UserID       string    `json:"userId" validate:"required,max=128,excludes=_"`
	ReactionType string    `json:"reactionType" validate:"required,oneof=heart like laugh wow sad angry"`
}

type MarkReadRequest struct {
	Address string `json:"address" validate:"required,max=256"`
	UserID  string `json:"userId" validate:"required,max=128,excludes=_"`
}

type TypingRequest struct {
	Address string `json:"address" validate:"required,max=256"`
	UserID  string `json:"userId" validate:"required,max=128,excludes=_"`
}

type DeleteMessageRequest struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
	UserID    string    `json:"userId" validate:"required,max=128,excludes=_"`
}

type DeleteConversationRequest struct {
	PeerID string `json:"peerId" validate:"required,max=128,excludes=_,nefield=UserID"`
	UserID string `json:"userId" validate:"required,max=128,excludes=_"`
}
