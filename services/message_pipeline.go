package services

import (
	"context"
	stderrors "errors"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/runtime"

	"github.com/google/uuid"
)

// SendMessage validates, persists and fans out one message.
// The primary write is the only step whose failure aborts the call.
func (s *ChatService) SendMessage(ctx context.Context, connectionID string, req chat.SendMessageRequest) (domain.Message, error) {
	if !s.Limiter.Allow(connectionID, runtime.SendMessageKind) {
		return domain.Message{}, errors.ErrRateLimited
	}
	conn, err := s.connection(connectionID, req.SenderID)
	if err != nil {
		return domain.Message{}, err
	}
	if err = s.validateRequest(req); err != nil {
		return domain.Message{}, err
	}
	user := conn.User
	t, err := s.resolve(user.ID, req.Address)
	if err != nil {
		return domain.Message{}, err
	}
	if err = s.authorize(user, t, false); err != nil {
		return domain.Message{}, err
	}
	if !s.Registry.HasJoined(connectionID, t.String()) {
		return domain.Message{}, errors.ErrNotJoined
	}
	class := t.address.Kind()
	now := s.now()
	if err = s.checkQuota(ctx, user, class); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:            uuid.New(),
		Address:       t.String(),
		SenderID:      user.ID,
		Type:          domain.MessageType(req.Type),
		Content:       s.moderate(req.Content),
		AttachmentRef: req.AttachmentRef,
		ReplyTo:       req.ReplyToID,
		Reactions:     []domain.Reaction{},
		ReadBy:        []string{},
		CreatedAt:     now,
	}
	if msg.Type == domain.ImageMessage {
		msg.Content = ""
	}
	if err = s.Messages.StoreMessage(msg); err != nil {
		return domain.Message{}, errors.Persistence("store message", err)
	}
	if s.Metrics != nil {
		s.Metrics.MessagesSent.WithLabelValues(class.String()).Inc()
	}

	// Secondary counters drift on failure, the message stays.
	if t.room != nil {
		if err := s.Rooms.IncrementTotalMessages(t.room.ID); err != nil {
			s.log.Warn("Room stats not updated", "room_id", t.room.ID, "error", err)
		}
	}
	if err := s.Usage.Increment(ctx, user.ID, class, now); err != nil {
		s.log.Warn("Usage counter not updated", "user_id", user.ID, "class", class.String(), "error", err)
	}

	s.toAudience(t.address, event.NewMessage, msg)
	for _, recipient := range s.recipients(t, user.ID) {
		s.pushUnreadCount(recipient, t.address)
	}
	if class == domain.DirectPseudoRoom {
		peer := t.address.Peer(user.ID)
		s.toUser(peer, event.New(event.MessageNotification, domain.UserChannel(peer), event.NotificationPayload{
			MessageID:  msg.ID,
			Address:    t.address.Canonical().String(),
			SenderID:   user.ID,
			SenderName: user.DisplayName,
			Preview:    msg.Preview(),
		}))
	}
	s.log.Debug("Message sent", "message_id", msg.ID, "address", msg.Address, "sender_id", user.ID)
	return msg, nil
}

// checkQuota only limits private rooms. An unreadable counter lets the message through.
func (s *ChatService) checkQuota(ctx context.Context, user domain.User, class domain.AddressKind) error {
	if class != domain.PrivateRoom || s.Limits.BypassesLimit(user, domain.LimitDailyQuota) {
		return nil
	}
	quota := s.Limits.DailyQuota(user)
	if quota == domain.Unlimited {
		return nil
	}
	count, err := s.Usage.Count(ctx, user.ID, class, s.now())
	if err != nil {
		s.log.Warn("Usage counter unreadable, quota not enforced", "user_id", user.ID, "error", err)
		return nil
	}
	if count >= quota {
		return errors.ErrQuotaExceeded
	}
	return nil
}

func (s *ChatService) moderate(content string) string {
	if s.Moderator == nil || content == "" {
		return content
	}
	censored, words := s.Moderator.Censor(content)
	if len(words) > 0 {
		s.log.Info("Message censored", "words", len(words), "lang", s.Moderator.DetectLanguage(content))
		if s.Metrics != nil {
			s.Metrics.ModerationHits.Add(float64(len(words)))
		}
	}
	return censored
}

// Typing relays typing-start and typing-stop to the address. Nothing is stored.
func (s *ChatService) Typing(ctx context.Context, connectionID string, req chat.TypingRequest, isTyping bool) error {
	if err := s.validateRequest(req); err != nil {
		return err
	}
	conn, err := s.connection(connectionID, req.UserID)
	if err != nil {
		return err
	}
	address, err := s.joinedAddress(conn, req.Address)
	if err != nil {
		return err
	}
	addr := domain.RoomAddress(address, domain.PublicRoom)
	if domain.IsDirect(address) {
		if addr, err = domain.ParseDirectAddress(address); err != nil {
			return err
		}
	}
	s.toAudience(addr, event.Typing, event.TypingPayload{
		Address:     address,
		UserID:      conn.UserID,
		DisplayName: conn.DisplayName,
		IsTyping:    isTyping,
	})
	return nil
}

// DeleteMessage soft-deletes a message. Its sender or an elevated user may do it.
func (s *ChatService) DeleteMessage(ctx context.Context, connectionID string, req chat.DeleteMessageRequest) error {
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
	if !conn.User.IsElevated() {
		if msg.SenderID != conn.UserID {
			return errors.ErrNotMessageOwner
		}
		if err = s.authorize(conn.User, t, false); err != nil {
			return err
		}
	}

	deletedAt := s.now()
	msg, err = s.Messages.MutateMessage(msg.ID, func(m *domain.Message) bool {
		if m.IsDeleted {
			return false
		}
		m.SoftDelete(deletedAt)
		return true
	})
	if err != nil {
		return s.storageError("delete message", err)
	}
	s.toAudience(t.address, event.MessageDeleted, event.MessageDeletedPayload{
		MessageID: msg.ID,
		Address:   msg.Address,
		DeletedAt: deletedAt,
	})
	for _, recipient := range s.recipients(t, msg.SenderID) {
		s.pushUnreadCount(recipient, t.address)
	}
	return nil
}

// DeleteConversation hides a direct conversation for the caller only.
// The caller moves to a deleter-scoped address, the peer keeps theirs,
// and no message is touched.
func (s *ChatService) DeleteConversation(ctx context.Context, connectionID string, req chat.DeleteConversationRequest) error {
	if err := s.validateRequest(req); err != nil {
		return err
	}
	conn, err := s.connection(connectionID, req.UserID)
	if err != nil {
		return err
	}
	canonical := domain.DirectAddress(conn.UserID, req.PeerID)
	previous, err := s.directAddressFor(conn.UserID, canonical)
	if err != nil {
		return err
	}
	scoped := canonical.ScopedFor(conn.UserID, s.now())
	if err = s.Conversations.SetScopedAddress(conn.UserID, canonical.String(), scoped.String()); err != nil {
		return errors.Persistence("set scoped address", err)
	}
	moved := s.Registry.MoveMemberships(conn.UserID, previous.String(), scoped.String())
	s.log.Info("Conversation deleted", "user_id", conn.UserID, "address", previous.String(),
		"new_address", scoped.String(), "connections", moved)

	s.toUser(conn.UserID, event.New(event.ConversationDeleted, domain.UserChannel(conn.UserID),
		event.ConversationDeletedPayload{Address: previous.String(), NewAddress: scoped.String()}))
	if moved > 0 {
		s.broadcastRoster(previous.String())
		s.broadcastRoster(scoped.String())
	}
	s.pushUnreadCount(conn.UserID, scoped)
	return nil
}

func (s *ChatService) liveMessage(id uuid.UUID) (domain.Message, error) {
	msg, err := s.Messages.GetMessage(id)
	if err != nil {
		return domain.Message{}, s.storageError("get message", err)
	}
	if msg.IsDeleted {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	return msg, nil
}

// storageError keeps not-found errors as they are and wraps anything else.
func (s *ChatService) storageError(op string, err error) error {
	if stderrors.Is(err, errors.ErrNotFound) {
		return err
	}
	return errors.Persistence(op, err)
}
