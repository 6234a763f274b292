package services

import (
	"context"
	"sodeclick-chat/domain"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
	"sodeclick-chat/runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestReact_Toggle_And_Replace(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "c-alice", alice, "lobby")
	f.join(t, "c-bob", bob, "lobby")
	msg, err := f.send("c-alice", alice, "lobby", "rate my photo")
	req.NoError(err)

	react := func(reactionType domain.ReactionType) event.ReactionPayload {
		err := f.service.React(ctx, "c-bob", chat.ReactRequest{MessageID: msg.ID, UserID: bob.ID, ReactionType: string(reactionType)})
		req.NoError(err)
		updates := f.sent("lobby", event.ReactionUpdated)
		return updates[len(updates)-1].Payload.(event.ReactionPayload)
	}

	// Same type twice nets zero
	payload := react(domain.ReactionHeart)
	req.Equal(domain.ReactionAdded, payload.Action)
	req.Equal(map[domain.ReactionType]int{domain.ReactionHeart: 1}, payload.Counts)
	payload = react(domain.ReactionHeart)
	req.Equal(domain.ReactionRemoved, payload.Action)
	req.Empty(payload.Counts)

	// A then B leaves only B
	react(domain.ReactionHeart)
	payload = react(domain.ReactionLike)
	req.Equal(domain.ReactionReplaced, payload.Action)
	req.Equal(map[domain.ReactionType]int{domain.ReactionLike: 1}, payload.Counts)

	stored, err := f.messages.GetMessage(msg.ID)
	req.NoError(err)
	req.Equal([]domain.Reaction{{UserID: bob.ID, Type: domain.ReactionLike}}, stored.Reactions)
}

func TestReact_Rejections(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "c-alice", alice, "vip-lounge")
	f.join(t, "c-bob", bob, "lobby")
	private, err := f.send("c-alice", alice, "vip-lounge", "members only")
	req.NoError(err)

	err = f.service.React(ctx, "c-bob", chat.ReactRequest{MessageID: uuid.New(), UserID: bob.ID, ReactionType: "wow"})
	req.ErrorIs(err, errors.ErrMessageNotFound)

	err = f.service.React(ctx, "c-bob", chat.ReactRequest{MessageID: private.ID, UserID: bob.ID, ReactionType: "wow"})
	req.ErrorIs(err, errors.ErrNotMember)

	err = f.service.React(ctx, "c-bob", chat.ReactRequest{MessageID: private.ID, UserID: bob.ID, ReactionType: "meh"})
	req.ErrorIs(err, errors.ErrInvalidPayload)

	req.Empty(f.sent("vip-lounge", event.ReactionUpdated))
}

func TestMarkRead_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	address := domain.DirectAddress(alice.ID, bob.ID).String()
	f.join(t, "c-alice", alice, address)
	f.join(t, "c-bob", bob, address)
	for _, content := range []string{"are you free tonight?", "dinner at 8?"} {
		_, err := f.send("c-alice", alice, address, content)
		req.NoError(err)
	}

	// When bob reads twice
	markRead := func() {
		err := f.service.MarkRead(ctx, "c-bob", chat.MarkReadRequest{Address: address, UserID: bob.ID})
		req.NoError(err)
	}
	markRead()
	afterFirst, err := f.messages.CountUnread(address, bob.ID)
	req.NoError(err)
	markRead()
	afterSecond, err := f.messages.CountUnread(address, bob.ID)
	req.NoError(err)

	// Then the count is the same and only one receipt went out
	req.Zero(afterFirst)
	req.Equal(afterFirst, afterSecond)
	receipts := f.sent(address, event.ReadReceipt)
	req.Len(receipts, 1)
	req.Equal(event.ReadReceiptPayload{Address: address, UserID: bob.ID, Count: 2}, receipts[0].Payload)
	unread := f.sent(domain.UserChannel(bob.ID), event.UnreadCountUpdate)
	req.Equal(event.UnreadPayload{Address: address, UnreadCount: 0}, unread[len(unread)-1].Payload)

	messages, _, err := f.messages.ListMessages(address, nil, 10)
	req.NoError(err)
	for _, msg := range messages {
		req.Equal([]string{bob.ID}, msg.ReadBy)
	}
}

func TestMarkRead_Throttled_Silently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, map[runtime.EventKind]time.Duration{runtime.MarkReadKind: time.Minute})
	f.join(t, "c-alice", alice, "lobby")
	f.join(t, "c-bob", bob, "lobby")
	_, err := f.send("c-alice", alice, "lobby", "first")
	req.NoError(err)

	req.NoError(f.service.MarkRead(ctx, "c-bob", chat.MarkReadRequest{Address: "lobby", UserID: bob.ID}))
	_, err = f.send("c-alice", alice, "lobby", "second")
	req.NoError(err)

	// The throttled call returns no error and reads nothing
	req.NoError(f.service.MarkRead(ctx, "c-bob", chat.MarkReadRequest{Address: "lobby", UserID: bob.ID}))
	unread, err := f.messages.CountUnread("lobby", bob.ID)
	req.NoError(err)
	req.Equal(1, unread)
	req.Len(f.sent("lobby", event.ReadReceipt), 1)
}
