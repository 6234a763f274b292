package services

import (
	"context"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/runtime"
)

// React applies the toggle/replace rule: a user holds at most one reaction
// per message.
func (s *ChatService) React(ctx context.Context, connectionID string, req chat.ReactRequest) error {
	if err := s.validateRequest(req); err != nil {
		return err
	}
	conn, err := s.connection(connectionID, req.UserID)
	if err != nil {
		return err
	}
	msg, err := s.liveMessage(req.MessageID)
	if err != nil {
		return err
	}
	t, err := s.resolve(conn.UserID, msg.Address)
	if err != nil {
		return err
	}
	if err = s.authorize(conn.User, t, false); err != nil {
		return err
	}

	reactionType := domain.ReactionType(req.ReactionType)
	var action domain.ReactionAction
	msg, err = s.Messages.MutateMessage(msg.ID, func(m *domain.Message) bool {
		if m.IsDeleted {
			return false
		}
		action = m.ToggleReaction(conn.UserID, reactionType)
		return true
	})
	if err != nil {
		return s.storageError("react", err)
	}
	if action == "" {
		return errors.ErrMessageNotFound
	}
	s.toAudience(t.address, event.ReactionUpdated, event.ReactionPayload{
		MessageID:    msg.ID,
		Counts:       msg.ReactionCounts(),
		UserID:       conn.UserID,
		ReactionType: reactionType,
		Action:       action,
	})
	return nil
}

// MarkRead adds the user to the read set of every unread message of the
// address. Throttled calls are dropped without error.
func (s *ChatService) MarkRead(ctx context.Context, connectionID string, req chat.MarkReadRequest) error {
	if !s.Limiter.Allow(connectionID, runtime.MarkReadKind) {
		s.log.Debug("Mark-read throttled", "connection_id", connectionID)
		return nil
	}
	if err := s.validateRequest(req); err != nil {
		return err
	}
	conn, err := s.connection(connectionID, req.UserID)
	if err != nil {
		return err
	}
	t, err := s.resolve(conn.UserID, req.Address)
	if err != nil {
		return err
	}
	if err = s.authorize(conn.User, t, false); err != nil {
		return err
	}
	changed, err := s.Messages.MarkRead(t.String(), conn.UserID)
	if err != nil {
		return errors.Persistence("mark read", err)
	}
	s.pushUnreadCount(conn.UserID, t.address)
	if changed > 0 {
		s.toAudience(t.address, event.ReadReceipt, event.ReadReceiptPayload{
			Address: t.String(),
			UserID:  conn.UserID,
			Count:   changed,
		})
	}
	return nil
}
