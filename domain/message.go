// Package domain contains core concepts of the chat system.
// This file defines Message and the reaction and read-receipt rules applied to it.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type MessageType string

const (
	TextMessage    MessageType = "text"
	ImageMessage   MessageType = "image"
	EmojiMessage   MessageType = "emoji"
	StickerMessage MessageType = "sticker"
)

type ReactionType string

const (
	ReactionHeart ReactionType = "heart"
	ReactionLike  ReactionType = "like"
	ReactionLaugh ReactionType = "laugh"
	ReactionWow   ReactionType = "wow"
	ReactionSad   ReactionType = "sad"
	ReactionAngry ReactionType = "angry"
)

type ReactionAction string

const (
	ReactionAdded    ReactionAction = "added"
	ReactionReplaced ReactionAction = "replaced"
	ReactionRemoved  ReactionAction = "removed"
)

type Reaction struct {
	UserID string       `json:"userId"`
	Type   ReactionType `json:"type"`
}

// Message is filed under exactly one address and never moves.
type Message struct {
	ID            uuid.UUID   `json:"id"`
	Address       string      `json:"address"`
	SenderID      string      `json:"senderId"`
	Type          MessageType `json:"type"`
	Content       string      `json:"content"`
	AttachmentRef string      `json:"attachmentRef,omitempty"`
	ReplyTo       *uuid.UUID  `json:"replyTo,omitempty"`
	Reactions     []Reaction  `json:"reactions"`
	ReadBy        []string    `json:"readBy"`
	IsDeleted     bool        `json:"isDeleted"`
	DeletedAt     *time.Time  `json:"deletedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// ToggleReaction keeps at most one reaction per user: the same type removes
// it, another type replaces it.
func (m *Message) ToggleReaction(userID string, reactionType ReactionType) ReactionAction {
	for i, r := range m.Reactions {
		if r.UserID != userID {
			continue
		}
		if r.Type == reactionType {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			return ReactionRemoved
		}
		m.Reactions[i].Type = reactionType
		return ReactionReplaced
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Type: reactionType})
	return ReactionAdded
}

// ReactionCounts aggregates reactions per type.
func (m Message) ReactionCounts() map[ReactionType]int {
	counts := lo.CountValuesBy(m.Reactions, func(r Reaction) ReactionType { return r.Type })
	if counts == nil {
		counts = map[ReactionType]int{}
	}
	return counts
}

// IsUnreadFor holds when someone else sent a live message the user has not read.
func (m Message) IsUnreadFor(userID string) bool {
	return m.SenderID != userID && !m.IsDeleted && !lo.Contains(m.ReadBy, userID)
}

// MarkReadBy returns true when the user was added to ReadBy.
func (m *Message) MarkReadBy(userID string) bool {
	if !m.IsUnreadFor(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

func (m *Message) SoftDelete(at time.Time) {
	if m.IsDeleted {
		return
	}
	m.IsDeleted = true
	m.DeletedAt = &at
}

// Preview is the short text used in personal notifications.
func (m Message) Preview() string {
	switch m.Type {
	case ImageMessage:
		return "[image]"
	case StickerMessage:
		return "[sticker]"
	}
	runes := []rune(m.Content)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return m.Content
}
