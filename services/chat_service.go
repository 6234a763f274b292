package services

import (
	stderrors "errors"
	"log/slog"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/moderation"
	"sodeclick-chat/observability"
	"sodeclick-chat/runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var _ contract.ChatService = (*ChatService)(nil)

// Dependencies gathers the collaborators of the chat core.
// Moderator and Metrics are optional.
type Dependencies struct {
	Authenticator contract.Authenticator
	Users         contract.UserStore
	Rooms         contract.RoomRepository
	Messages      contract.MessageRepository
	Conversations contract.ConversationRepository
	Limits        contract.MembershipLimits
	Usage         contract.UsageCounter
	Broadcaster   contract.Broadcaster
	Registry      *runtime.PresenceRegistry
	Limiter       *runtime.RateLimiter
	Moderator     *moderation.Moderator
	Metrics       *observability.Metrics
}

// ChatService coordinates presence, rooms, messages and reactions.
type ChatService struct {
	Dependencies
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewChatService(log *slog.Logger, deps Dependencies) *ChatService {
	return &ChatService{
		Dependencies: deps,
		log:          log,
		validate:     validator.New(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// target is an address resolved for one user.
type target struct {
	requested string
	address   domain.Address
	room      *domain.ChatRoom
}

func (t target) String() string { return t.address.String() }

// connection returns the authenticated connection and checks that the
// claimed user id is the one bound to it.
func (s *ChatService) connection(connectionID, claimedUserID string) (runtime.Connection, error) {
	conn, ok := s.Registry.Connection(connectionID)
	if !ok {
		return runtime.Connection{}, errors.ErrNotAuthenticated
	}
	if claimedUserID != conn.UserID {
		return runtime.Connection{}, errors.ErrIdentityMismatch
	}
	s.Registry.Touch(connectionID)
	return conn, nil
}

func (s *ChatService) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return errors.Validation(err)
	}
	return nil
}

// resolve turns a raw address into the address the user actually works on.
// A direct address is redirected to the user's deleter-scoped variant when
// they soft-deleted the conversation.
func (s *ChatService) resolve(userID, raw string) (target, error) {
	if !domain.IsDirect(raw) {
		room, err := s.Rooms.GetRoom(raw)
		if err != nil {
			if stderrors.Is(err, errors.ErrNotFound) {
				return target{}, err
			}
			return target{}, errors.Persistence("get room", err)
		}
		return target{requested: raw, address: room.Address(), room: &room}, nil
	}

	parsed, err := domain.ParseDirectAddress(raw)
	if err != nil {
		return target{}, err
	}
	address, err := s.directAddressFor(userID, parsed)
	if err != nil {
		return target{}, err
	}
	return target{requested: raw, address: address}, nil
}

// directAddressFor returns the variant of a direct conversation a participant sees.
func (s *ChatService) directAddressFor(userID string, addr domain.Address) (domain.Address, error) {
	canonical := addr.Canonical()
	if !canonical.Involves(userID) {
		return canonical, nil
	}
	scoped, found, err := s.Conversations.GetScopedAddress(userID, canonical.String())
	if err != nil {
		return domain.Address{}, errors.Persistence("get scoped address", err)
	}
	if !found {
		return canonical, nil
	}
	return domain.ParseDirectAddress(scoped)
}

// authorize is the single access rule shared by join and send.
// Newcomer gates only apply when joining a public room.
func (s *ChatService) authorize(user domain.User, t target, joining bool) error {
	switch t.address.Kind() {
	case domain.DirectPseudoRoom:
		if !t.address.Involves(user.ID) {
			return errors.ErrNotParticipant
		}
		return nil
	case domain.PrivateRoom:
		if t.room.IsMember(user.ID) || s.Limits.BypassesLimit(user, domain.LimitMembership) {
			return nil
		}
		return errors.ErrNotMember
	default:
		if !joining || t.room.IsMember(user.ID) {
			return nil
		}
		if minAge := t.room.AgeRestriction.MinAge; minAge > 0 && user.Age < minAge &&
			!s.Limits.BypassesLimit(user, domain.LimitAge) {
			return errors.ErrAgeRestricted
		}
		if t.room.IsFull() && !s.Limits.BypassesLimit(user, domain.LimitCapacity) {
			return errors.ErrRoomFull
		}
		return nil
	}
}

// audience lists the room channels an event about this address goes to.
// Both participants of a direct conversation may be on different variants.
func (s *ChatService) audience(addr domain.Address) []string {
	if addr.Kind() != domain.DirectPseudoRoom {
		return []string{addr.String()}
	}
	var channels []string
	for _, participant := range addr.Participants() {
		variant, err := s.directAddressFor(participant, addr)
		if err != nil {
			s.log.Warn("Falling back to canonical address", "user_id", participant, "error", err)
			variant = addr.Canonical()
		}
		channels = append(channels, variant.String())
	}
	return lo.Uniq(channels)
}

// recipients are the users that should hear about activity on an address,
// the actor excluded.
func (s *ChatService) recipients(t target, actorID string) []string {
	if t.room != nil {
		return lo.Without(t.room.MemberIDs(), actorID)
	}
	participants := t.address.Participants()
	return lo.Without(participants[:], actorID)
}

func (s *ChatService) pushUnreadCount(userID string, addr domain.Address) {
	viewed := addr
	if addr.Kind() == domain.DirectPseudoRoom {
		var err error
		if viewed, err = s.directAddressFor(userID, addr); err != nil {
			s.log.Warn("Unread count skipped", "user_id", userID, "error", err)
			return
		}
	}
	count, err := s.Messages.CountUnread(viewed.String(), userID)
	if err != nil {
		s.log.Warn("Unread count failed", "user_id", userID, "address", viewed.String(), "error", err)
		return
	}
	channel := domain.UserChannel(userID)
	s.toUser(userID, event.New(event.UnreadCountUpdate, channel,
		event.UnreadPayload{Address: viewed.String(), UnreadCount: count}))
}

func (s *ChatService) toAddress(address string, name event.Name, payload any) {
	if err := s.Broadcaster.ToAddress(address, event.New(name, address, payload)); err != nil {
		s.log.Warn("Broadcast failed", "event", name, "address", address, "error", err)
	}
}

func (s *ChatService) toAudience(addr domain.Address, name event.Name, payload any) {
	for _, channel := range s.audience(addr) {
		s.toAddress(channel, name, payload)
	}
}

func (s *ChatService) toUser(userID string, e event.Event) {
	if err := s.Broadcaster.ToUser(userID, e); err != nil {
		s.log.Warn("Broadcast failed", "event", e.Name, "user_id", userID, "error", err)
	}
}

func (s *ChatService) toConnection(connectionID string, e event.Event) {
	if err := s.Broadcaster.ToConnection(connectionID, e); err != nil {
		s.log.Warn("Broadcast failed", "event", e.Name, "connection_id", connectionID, "error", err)
	}
}

func (s *ChatService) broadcastRoster(address string) {
	roster := s.Registry.Snapshot(address)
	s.toAddress(address, event.RosterUpdated, event.RosterPayload{
		Address:     address,
		OnlineCount: len(roster),
		Members:     lo.Ternary(roster == nil, []event.RosterEntry{}, roster),
	})
}

// ErrorEvent maps an error to the event sent back to the originating connection.
// Internal failures are not described to clients.
func (s *ChatService) ErrorEvent(err error) event.Event {
	kind := errors.KindOf(err)
	if s.Metrics != nil {
		s.Metrics.EventsRejected.WithLabelValues(string(kind)).Inc()
	}
	message := err.Error()
	if kind == errors.KindInternal {
		s.log.Error("Unexpected failure", "error", err)
		message = "internal error"
	}
	return event.New(event.Error, event.ConnectionChannel, event.ErrorPayload{Kind: string(kind), Message: message})
}
