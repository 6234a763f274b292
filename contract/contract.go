//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"time"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the outbound side of one connection.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
	Close()
}

// Broadcaster delivers events to a room channel, a personal channel or a single connection.
type Broadcaster interface {
	ToAddress(address string, e event.Event) error
	ToUser(userID string, e event.Event) error
	ToConnection(connectionID string, e event.Event) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.User, error)
}

// UserStore is the external owner of user records.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	SetOnline(ctx context.Context, userID string, online bool) error
}

// UsageCounter tracks messages sent per user, address class and day.
type UsageCounter interface {
	Count(ctx context.Context, userID string, class domain.AddressKind, day time.Time) (int, error)
	Increment(ctx context.Context, userID string, class domain.AddressKind, day time.Time) error
}

type MembershipLimits interface {
	DailyQuota(user domain.User) int
	BypassesLimit(user domain.User, kind domain.LimitKind) bool
}

type RoomRepository interface {
	GetRoom(roomID string) (domain.ChatRoom, error)
	SaveRoom(room domain.ChatRoom) error
	AddMember(roomID, userID string, role domain.MemberRole, at time.Time) (bool, error)
	IncrementTotalMessages(roomID string) error
}

type MessageRepository interface {
	StoreMessage(msg domain.Message) error
	GetMessage(id uuid.UUID) (domain.Message, error)
	// MutateMessage applies fn inside a read-modify-write transaction.
	// Nothing is written when fn returns false.
	MutateMessage(id uuid.UUID, fn func(*domain.Message) bool) (domain.Message, error)
	ListMessages(address string, cursor *string, limit int) ([]domain.Message, *string, error)
	CountUnread(address, userID string) (int, error)
	MarkRead(address, userID string) (int, error)
}

// ConversationRepository keeps, per user, the address a soft-deleted
// direct conversation was moved to.
type ConversationRepository interface {
	GetScopedAddress(userID, canonical string) (string, bool, error)
	SetScopedAddress(userID, canonical, scoped string) error
}

// ChatService is what the websocket transport dispatches inbound events to.
type ChatService interface {
	Join(ctx context.Context, connectionID string, sink EventSink, req chat.JoinRequest) error
	Leave(ctx context.Context, connectionID string, req chat.LeaveRequest) error
	Disconnect(ctx context.Context, connectionID string)
	SendMessage(ctx context.Context, connectionID string, req chat.SendMessageRequest) (domain.Message, error)
	React(ctx context.Context, connectionID string, req chat.ReactRequest) error
	MarkRead(ctx context.Context, connectionID string, req chat.MarkReadRequest) error
	Typing(ctx context.Context, connectionID string, req chat.TypingRequest, isTyping bool) error
	DeleteMessage(ctx context.Context, connectionID string, req chat.DeleteMessageRequest) error
	DeleteConversation(ctx context.Context, connectionID string, req chat.DeleteConversationRequest) error
	ErrorEvent(err error) event.Event
}
