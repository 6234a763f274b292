package services

import (
	"context"
	"fmt"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/mocks"
	"sodeclick-chat/runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSendMessage_Daily_Quota(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c-alice", alice, "vip-lounge")
	f.join(t, "c-clara", clara, "vip-lounge")

	// Given a member tier allowed 10 private-room messages a day
	for i := 0; i < 10; i++ {
		_, err := f.send("c-alice", alice, "vip-lounge", fmt.Sprintf("message %d", i))
		req.NoError(err)
	}

	// When the 11th is sent
	_, err := f.send("c-alice", alice, "vip-lounge", "one too many")

	// Then it is refused as an authorization error
	req.ErrorIs(err, errors.ErrQuotaExceeded)
	req.ErrorIs(err, errors.ErrAuthorization)

	// And an elevated user at the same count still gets through
	f.usage[usageKey(clara.ID, domain.PrivateRoom)] = 10
	_, err = f.send("c-clara", clara, "vip-lounge", "admins have no cap")
	req.NoError(err)

	room, err := f.rooms.GetRoom("vip-lounge")
	req.NoError(err)
	req.EqualValues(11, room.Stats.TotalMessages)
	req.Len(f.sent("vip-lounge", event.NewMessage), 11)
}

func TestSendMessage_Public_Room_Has_No_Quota(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c1", bob, "lobby")
	f.usage[usageKey(bob.ID, domain.PublicRoom)] = 500

	_, err := f.send("c1", bob, "lobby", "still talking")

	req.NoError(err)
	req.Equal(501, f.usage[usageKey(bob.ID, domain.PublicRoom)])
}

func TestSendMessage_Rate_Limited(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, map[runtime.EventKind]time.Duration{runtime.SendMessageKind: time.Minute})
	f.join(t, "c1", alice, "lobby")

	var accepted, limited int
	for i := 0; i < 5; i++ {
		_, err := f.send("c1", alice, "lobby", "spam")
		switch {
		case err == nil:
			accepted++
		case errors.KindOf(err) == errors.KindRateLimit:
			limited++
		default:
			req.FailNow("unexpected error", err)
		}
	}

	req.Equal(1, accepted)
	req.Equal(4, limited)
}

func TestSendMessage_Direct_Conversation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	// Given the pseudo-room address does not depend on who opens it
	address := domain.DirectAddress(bob.ID, alice.ID).String()
	req.Equal("private_alice_bob", address)
	req.Equal(address, domain.DirectAddress(alice.ID, bob.ID).String())
	f.join(t, "c-alice", alice, address)
	f.join(t, "c-bob", bob, address)

	// When alice writes
	msg, err := f.send("c-alice", alice, address, "hi Bob")
	req.NoError(err)

	// Then the message reaches the conversation
	req.Equal(address, msg.Address)
	newMessages := f.sent(address, event.NewMessage)
	req.Len(newMessages, 1)
	req.Equal(msg.ID, newMessages[0].Payload.(domain.Message).ID)

	// And bob's badge and notification are pushed on his personal channel
	unread := f.sent(domain.UserChannel(bob.ID), event.UnreadCountUpdate)
	req.Equal(event.UnreadPayload{Address: address, UnreadCount: 1}, unread[len(unread)-1].Payload)
	notifications := f.sent(domain.UserChannel(bob.ID), event.MessageNotification)
	req.Len(notifications, 1)
	notification := notifications[0].Payload.(event.NotificationPayload)
	req.Equal(msg.ID, notification.MessageID)
	req.Equal("Alice", notification.SenderName)
	req.Equal("hi Bob", notification.Preview)
	req.Empty(f.sent(domain.UserChannel(alice.ID), event.MessageNotification))

	// And direct messages do not consume the private-room quota
	req.Equal(0, f.usage[usageKey(alice.ID, domain.PrivateRoom)])
	req.Equal(1, f.usage[usageKey(alice.ID, domain.DirectPseudoRoom)])
}

func TestSendMessage_Room_Members_Get_Unread_Updates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c-alice", alice, "lobby")
	f.join(t, "c-bob", bob, "lobby")
	f.service.Disconnect(context.Background(), "c-bob")

	_, err := f.send("c-alice", alice, "lobby", "anyone?")
	req.NoError(err)

	// bob is offline but still a member, his badge is updated anyway
	unread := f.sent(domain.UserChannel(bob.ID), event.UnreadCountUpdate)
	req.Equal(event.UnreadPayload{Address: "lobby", UnreadCount: 1}, unread[len(unread)-1].Payload)
	req.Len(f.sent(domain.UserChannel(alice.ID), event.UnreadCountUpdate), 1)
}

func TestSendMessage_Rejections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c-bob", bob, "lobby")

	tests := []struct {
		description  string
		connectionID string
		request      chat.SendMessageRequest
		wantErr      error
	}{
		{
			"Should reject an unknown connection",
			"c-ghost",
			chat.SendMessageRequest{Address: "lobby", SenderID: bob.ID, Type: "text", Content: "hi"},
			errors.ErrNotAuthenticated,
		},
		{
			"Should reject a spoofed sender",
			"c-bob",
			chat.SendMessageRequest{Address: "lobby", SenderID: alice.ID, Type: "text", Content: "hi"},
			errors.ErrIdentityMismatch,
		},
		{
			"Should reject an empty text",
			"c-bob",
			chat.SendMessageRequest{Address: "lobby", SenderID: bob.ID, Type: "text"},
			errors.ErrInvalidPayload,
		},
		{
			"Should reject an image without attachment",
			"c-bob",
			chat.SendMessageRequest{Address: "lobby", SenderID: bob.ID, Type: "image"},
			errors.ErrInvalidPayload,
		},
		{
			"Should reject an unknown type",
			"c-bob",
			chat.SendMessageRequest{Address: "lobby", SenderID: bob.ID, Type: "video", Content: "x"},
			errors.ErrInvalidPayload,
		},
		{
			"Should reject an address not joined",
			"c-bob",
			chat.SendMessageRequest{Address: "adults", SenderID: bob.ID, Type: "text", Content: "hi"},
			errors.ErrNotJoined,
		},
		{
			"Should re-authorize a private room",
			"c-bob",
			chat.SendMessageRequest{Address: "vip-lounge", SenderID: bob.ID, Type: "text", Content: "hi"},
			errors.ErrNotMember,
		},
		{
			"Should reject a direct conversation of other users",
			"c-bob",
			chat.SendMessageRequest{Address: "private_alice_clara", SenderID: bob.ID, Type: "text", Content: "hi"},
			errors.ErrNotParticipant,
		},
	}

	for _, tt := range tests {
		_, err := f.service.SendMessage(context.Background(), tt.connectionID, tt.request)
		req.ErrorIs(err, tt.wantErr, tt.description)
	}
	req.Empty(f.sent("lobby", event.NewMessage))
}

func TestSendMessage_Image_Keeps_Only_Attachment(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c1", bob, "lobby")

	msg, err := f.service.SendMessage(context.Background(), "c1", chat.SendMessageRequest{
		Address:       "lobby",
		SenderID:      bob.ID,
		Type:          "image",
		Content:       "ignored caption",
		AttachmentRef: "uploads/2026/03/beach.jpg",
	})

	req.NoError(err)
	stored, err := f.messages.GetMessage(msg.ID)
	req.NoError(err)
	req.Empty(stored.Content)
	req.Equal("uploads/2026/03/beach.jpg", stored.AttachmentRef)
	req.Equal(domain.ImageMessage, stored.Type)
}

func TestSendMessage_Persistence_Failure_Aborts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c1", bob, "lobby")

	ctrl := gomock.NewController(t)
	messages := mocks.NewMockMessageRepository(ctrl)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("disk full"))
	f.service.Messages = messages

	_, err := f.send("c1", bob, "lobby", "lost")

	req.ErrorIs(err, errors.ErrPersistence)
	req.Empty(f.sent("lobby", event.NewMessage))
	req.Zero(f.usage[usageKey(bob.ID, domain.PublicRoom)])
	room, err := f.rooms.GetRoom("lobby")
	req.NoError(err)
	req.Zero(room.Stats.TotalMessages)
}

func TestDeleteConversation_Is_Per_User(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	canonical := domain.DirectAddress(alice.ID, bob.ID).String()
	f.join(t, "c-alice", alice, canonical)
	f.join(t, "c-bob", bob, canonical)

	// Given alice and bob exchanged messages
	_, err := f.send("c-alice", alice, canonical, "hello")
	req.NoError(err)
	_, err = f.send("c-bob", bob, canonical, "hey")
	req.NoError(err)

	// When alice deletes the conversation a minute later
	f.clock = f.clock.Add(time.Minute)
	err = f.service.DeleteConversation(ctx, "c-alice", chat.DeleteConversationRequest{PeerID: bob.ID, UserID: alice.ID})
	req.NoError(err)

	// Then alice is moved to a scoped address
	scoped := domain.DirectAddress(alice.ID, bob.ID).ScopedFor(alice.ID, f.clock).String()
	req.Equal(fmt.Sprintf("private_alice_bob_deleted_alice_%d", f.clock.Unix()), scoped)
	deleted := f.sent(domain.UserChannel(alice.ID), event.ConversationDeleted)
	req.Len(deleted, 1)
	req.Equal(event.ConversationDeletedPayload{Address: canonical, NewAddress: scoped}, deleted[0].Payload)
	req.True(f.registry.HasJoined("c-alice", scoped))
	req.False(f.registry.HasJoined("c-alice", canonical))

	// And her view is empty while bob keeps the whole history
	aliceView, _, err := f.messages.ListMessages(scoped, nil, 50)
	req.NoError(err)
	req.Empty(aliceView)
	bobView, _, err := f.messages.ListMessages(canonical, nil, 50)
	req.NoError(err)
	req.Len(bobView, 2)

	// When bob keeps writing on his unchanged address
	f.clock = f.clock.Add(time.Minute)
	msg, err := f.send("c-bob", bob, canonical, "still there?")
	req.NoError(err)
	req.Equal(canonical, msg.Address)

	// Then both variants receive it and alice's badge counts only the new message
	req.Len(f.sent(canonical, event.NewMessage), 3)
	req.Len(f.sent(scoped, event.NewMessage), 1)
	unread := f.sent(domain.UserChannel(alice.ID), event.UnreadCountUpdate)
	req.Equal(event.UnreadPayload{Address: scoped, UnreadCount: 1}, unread[len(unread)-1].Payload)

	// And alice opening the canonical address again lands on her scoped one
	f.join(t, "c-alice-2", alice, canonical)
	joined := f.sent("conn:c-alice-2", event.Joined)
	req.Equal(event.JoinedPayload{Address: scoped, RequestedAddress: canonical, Kind: "direct"}, joined[0].Payload)
}

func TestDeleteMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "c-alice", alice, "lobby")
	f.join(t, "c-bob", bob, "lobby")
	f.join(t, "c-clara", clara, "adults")
	msg, err := f.send("c-alice", alice, "lobby", "oops")
	req.NoError(err)
	unread, err := f.messages.CountUnread("lobby", bob.ID)
	req.NoError(err)
	req.Equal(1, unread)

	// A non-author cannot delete it
	err = f.service.DeleteMessage(ctx, "c-bob", chat.DeleteMessageRequest{MessageID: msg.ID, UserID: bob.ID})
	req.ErrorIs(err, errors.ErrNotMessageOwner)

	// The author can
	err = f.service.DeleteMessage(ctx, "c-alice", chat.DeleteMessageRequest{MessageID: msg.ID, UserID: alice.ID})
	req.NoError(err)
	deleted := f.sent("lobby", event.MessageDeleted)
	req.Len(deleted, 1)
	req.Equal(msg.ID, deleted[0].Payload.(event.MessageDeletedPayload).MessageID)
	unread, err = f.messages.CountUnread("lobby", bob.ID)
	req.NoError(err)
	req.Zero(unread)

	// A deleted message is gone for everybody
	err = f.service.DeleteMessage(ctx, "c-alice", chat.DeleteMessageRequest{MessageID: msg.ID, UserID: alice.ID})
	req.ErrorIs(err, errors.ErrMessageNotFound)

	// An elevated user deletes anybody's message
	other, err := f.send("c-bob", bob, "lobby", "rude words")
	req.NoError(err)
	err = f.service.DeleteMessage(ctx, "c-clara", chat.DeleteMessageRequest{MessageID: other.ID, UserID: clara.ID})
	req.NoError(err)
	stored, err := f.messages.GetMessage(other.ID)
	req.NoError(err)
	req.True(stored.IsDeleted)
	req.NotNil(stored.DeletedAt)
}

func TestTyping(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "c1", alice, "lobby")

	err := f.service.Typing(ctx, "c1", chat.TypingRequest{Address: "lobby", UserID: alice.ID}, true)
	req.NoError(err)
	err = f.service.Typing(ctx, "c1", chat.TypingRequest{Address: "lobby", UserID: alice.ID}, false)
	req.NoError(err)

	typing := f.sent("lobby", event.Typing)
	req.Len(typing, 2)
	req.Equal(event.TypingPayload{Address: "lobby", UserID: alice.ID, DisplayName: "Alice", IsTyping: true}, typing[0].Payload)
	req.False(typing[1].Payload.(event.TypingPayload).IsTyping)

	err = f.service.Typing(ctx, "c1", chat.TypingRequest{Address: "adults", UserID: alice.ID}, true)
	req.ErrorIs(err, errors.ErrNotJoined)
}
