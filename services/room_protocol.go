package services

import (
	"context"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/runtime"
)

// Join authenticates the caller on every call, binds the connection to the
// user and joins the resolved address.
// Nothing changes in memory or storage when any check fails.
func (s *ChatService) Join(ctx context.Context, connectionID string, sink contract.EventSink, req chat.JoinRequest) error {
	if !s.Limiter.Allow(connectionID, runtime.JoinKind) {
		return errors.ErrRateLimited
	}
	if err := s.validateRequest(req); err != nil {
		return err
	}
	user, err := s.Authenticator.Authenticate(ctx, req.Credential)
	if err != nil {
		return err
	}
	if req.UserID != user.ID {
		return errors.ErrIdentityMismatch
	}
	if bound, ok := s.Registry.Connection(connectionID); ok && bound.UserID != user.ID {
		return errors.ErrIdentityMismatch
	}

	t, err := s.resolve(user.ID, req.Address)
	if err != nil {
		return err
	}
	if err = s.authorize(user, t, true); err != nil {
		return err
	}
	if t.room != nil && !t.room.IsMember(user.ID) && t.address.Kind() == domain.PublicRoom {
		if _, err = s.Rooms.AddMember(t.room.ID, user.ID, domain.MemberRoleStd, s.now()); err != nil {
			return errors.Persistence("add room member", err)
		}
		t.room.AddMember(user.ID, domain.MemberRoleStd, s.now())
		s.log.Debug("Room membership created", "room_id", t.room.ID, "user_id", user.ID)
	}

	if first := s.Registry.RegisterConnection(user, connectionID, sink); first {
		if err := s.Users.SetOnline(ctx, user.ID, true); err != nil {
			s.log.Warn("Unable to flag user online", "user_id", user.ID, "error", err)
		}
	}
	address := t.String()
	alreadyPresent := s.Registry.IsPresent(address, user.ID)
	s.Registry.AddMembership(address, connectionID)
	s.log.Info("Joined", "connection_id", connectionID, "user_id", user.ID, "address", address)

	s.toConnection(connectionID, event.New(event.Joined, event.ConnectionChannel, event.JoinedPayload{
		Address:          address,
		RequestedAddress: t.requested,
		Kind:             t.address.Kind().String(),
	}))
	s.pushUnreadCount(user.ID, t.address)
	if !alreadyPresent {
		s.toAddress(address, event.UserJoined, event.PresencePayload{
			Address:     address,
			UserID:      user.ID,
			DisplayName: user.DisplayName,
		})
	}
	s.broadcastRoster(address)
	return nil
}

// Leave detaches the connection from one address. The address may be given
// raw or as the effective address returned by join.
func (s *ChatService) Leave(ctx context.Context, connectionID string, req chat.LeaveRequest) error {
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
	s.leave(conn, address)
	return nil
}

// Disconnect is an implicit leave of every joined address followed by the
// removal of the connection. The last connection of a user flips them offline.
func (s *ChatService) Disconnect(ctx context.Context, connectionID string) {
	s.Limiter.Forget(connectionID)
	conn, ok := s.Registry.Connection(connectionID)
	if !ok {
		return
	}
	for _, address := range s.Registry.JoinedAddresses(connectionID) {
		s.leave(conn, address)
	}
	if last := s.Registry.DeregisterConnection(conn.UserID, connectionID); last {
		if err := s.Users.SetOnline(ctx, conn.UserID, false); err != nil {
			s.log.Warn("Unable to flag user offline", "user_id", conn.UserID, "error", err)
		}
		s.log.Info("User offline", "user_id", conn.UserID)
	}
	s.log.Debug("Connection closed", "connection_id", connectionID, "user_id", conn.UserID)
}

func (s *ChatService) leave(conn runtime.Connection, address string) {
	if stillPresent := s.Registry.RemoveMembership(address, conn.ID); !stillPresent {
		s.toAddress(address, event.UserLeft, event.PresencePayload{
			Address:     address,
			UserID:      conn.UserID,
			DisplayName: conn.DisplayName,
		})
	}
	s.broadcastRoster(address)
}

// joinedAddress finds which joined address a raw address refers to.
func (s *ChatService) joinedAddress(conn runtime.Connection, raw string) (string, error) {
	if s.Registry.HasJoined(conn.ID, raw) {
		return raw, nil
	}
	t, err := s.resolve(conn.UserID, raw)
	if err != nil {
		return "", err
	}
	if !s.Registry.HasJoined(conn.ID, t.String()) {
		return "", errors.ErrNotJoined
	}
	return t.String(), nil
}
