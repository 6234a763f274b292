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

	"github.com/stretchr/testify/require"
)

func TestJoin_Public_Room_Creates_Membership(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	// Given bob never joined the lobby
	room, err := f.rooms.GetRoom("lobby")
	req.NoError(err)
	req.False(room.IsMember(bob.ID))

	// When he joins it
	f.join(t, "c1", bob, "lobby")

	// Then the membership is persisted and he is present
	room, err = f.rooms.GetRoom("lobby")
	req.NoError(err)
	req.True(room.IsMember(bob.ID))
	req.True(f.registry.IsPresent("lobby", bob.ID))
	req.Equal([]onlineCall{{userID: bob.ID, online: true}}, f.onlineCalls())

	joined := f.sent("conn:c1", event.Joined)
	req.Len(joined, 1)
	req.Equal(event.JoinedPayload{Address: "lobby", RequestedAddress: "lobby", Kind: "public"}, joined[0].Payload)
	req.Len(f.sent("lobby", event.UserJoined), 1)
	req.Len(f.sent(domain.UserChannel(bob.ID), event.UnreadCountUpdate), 1)

	roster := f.sent("lobby", event.RosterUpdated)
	req.Len(roster, 1)
	payload := roster[0].Payload.(event.RosterPayload)
	req.Equal(1, payload.OnlineCount)
	req.Equal([]event.RosterEntry{{UserID: bob.ID, DisplayName: "Bob"}}, payload.Members)
}

func TestJoin_Private_Room_Rejects_Non_Member(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	err := f.service.Join(context.Background(), "c1", nopSink{}, chat.JoinRequest{
		Address: "vip-lounge", UserID: bob.ID, Credential: token(bob),
	})

	req.ErrorIs(err, errors.ErrNotMember)
	req.ErrorIs(err, errors.ErrAuthorization)
	room, err := f.rooms.GetRoom("vip-lounge")
	req.NoError(err)
	req.Equal([]string{alice.ID}, room.MemberIDs())
	req.False(f.registry.IsOnline(bob.ID))
	req.Empty(f.onlineCalls())
}

func TestJoin_Private_Room_Elevated_Bypass(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	f.join(t, "c1", clara, "vip-lounge")

	req.True(f.registry.IsPresent("vip-lounge", clara.ID))
	room, err := f.rooms.GetRoom("vip-lounge")
	req.NoError(err)
	req.False(room.IsMember(clara.ID))
}

func TestJoin_Rejections(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		description string
		request     chat.JoinRequest
		wantErr     error
	}{
		{
			"Should reject an unknown credential",
			chat.JoinRequest{Address: "lobby", UserID: bob.ID, Credential: "forged"},
			errors.ErrInvalidSignature,
		},
		{
			"Should reject a claimed id that differs from the credential",
			chat.JoinRequest{Address: "lobby", UserID: alice.ID, Credential: token(bob)},
			errors.ErrIdentityMismatch,
		},
		{
			"Should reject an unknown room",
			chat.JoinRequest{Address: "nowhere", UserID: bob.ID, Credential: token(bob)},
			errors.ErrRoomNotFound,
		},
		{
			"Should reject a direct conversation of other users",
			chat.JoinRequest{Address: domain.DirectAddress(alice.ID, clara.ID).String(), UserID: bob.ID, Credential: token(bob)},
			errors.ErrNotParticipant,
		},
		{
			"Should reject a claimed id containing the direct separator",
			chat.JoinRequest{Address: "lobby", UserID: "john_doe", Credential: token(bob)},
			errors.ErrInvalidPayload,
		},
		{
			"Should reject a malformed direct address",
			chat.JoinRequest{Address: "private_bob", UserID: bob.ID, Credential: token(bob)},
			errors.ErrInvalidAddress,
		},
		{
			"Should reject an underage user",
			chat.JoinRequest{Address: "adults", UserID: dave.ID, Credential: token(dave)},
			errors.ErrAgeRestricted,
		},
		{
			"Should reject a newcomer in a full room",
			chat.JoinRequest{Address: "tiny", UserID: bob.ID, Credential: token(bob)},
			errors.ErrRoomFull,
		},
		{
			"Should reject a missing address",
			chat.JoinRequest{UserID: bob.ID, Credential: token(bob)},
			errors.ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		f := newFixture(t, nil)
		err := f.service.Join(context.Background(), "c1", nopSink{}, tt.request)
		req.ErrorIs(err, tt.wantErr, tt.description)
		_, registered := f.registry.Connection("c1")
		req.False(registered, tt.description)
	}
}

func TestJoin_Elevated_User_Skips_Newcomer_Gates(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	f.join(t, "c1", clara, "tiny")

	room, err := f.rooms.GetRoom("tiny")
	req.NoError(err)
	req.True(room.IsMember(clara.ID))
}

func TestJoin_Connection_Bound_To_Another_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "c1", alice, "lobby")

	err := f.service.Join(context.Background(), "c1", nopSink{}, chat.JoinRequest{
		Address: "lobby", UserID: bob.ID, Credential: token(bob),
	})

	req.ErrorIs(err, errors.ErrIdentityMismatch)
	req.False(f.registry.IsOnline(bob.ID))
}

func TestJoin_Rate_Limited(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, map[runtime.EventKind]time.Duration{runtime.JoinKind: time.Minute})
	f.join(t, "c1", alice, "lobby")

	err := f.service.Join(context.Background(), "c1", nopSink{}, chat.JoinRequest{
		Address: "vip-lounge", UserID: alice.ID, Credential: token(alice),
	})

	req.ErrorIs(err, errors.ErrRateLimited)
	req.False(f.registry.HasJoined("c1", "vip-lounge"))

	// Another connection has its own budget
	f.join(t, "c2", alice, "vip-lounge")
}

func TestLeave(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)
	f.join(t, "c1", alice, "lobby")
	f.join(t, "c2", bob, "lobby")

	// When alice leaves
	err := f.service.Leave(ctx, "c1", chat.LeaveRequest{Address: "lobby", UserID: alice.ID})

	// Then the others are told and the roster shrinks
	req.NoError(err)
	req.False(f.registry.IsPresent("lobby", alice.ID))
	req.True(f.registry.IsOnline(alice.ID))
	left := f.sent("lobby", event.UserLeft)
	req.Len(left, 1)
	req.Equal(alice.ID, left[0].Payload.(event.PresencePayload).UserID)
	roster := f.sent("lobby", event.RosterUpdated)
	req.Equal(1, roster[len(roster)-1].Payload.(event.RosterPayload).OnlineCount)

	// And leaving twice is rejected
	err = f.service.Leave(ctx, "c1", chat.LeaveRequest{Address: "lobby", UserID: alice.ID})
	req.ErrorIs(err, errors.ErrNotJoined)

	// And a foreign user id is rejected
	err = f.service.Leave(ctx, "c2", chat.LeaveRequest{Address: "lobby", UserID: alice.ID})
	req.ErrorIs(err, errors.ErrIdentityMismatch)
}

func TestLeave_Keeps_Presence_Of_Other_Device(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	f.join(t, "phone", alice, "lobby")
	f.join(t, "laptop", alice, "lobby")

	err := f.service.Leave(context.Background(), "phone", chat.LeaveRequest{Address: "lobby", UserID: alice.ID})

	req.NoError(err)
	req.True(f.registry.IsPresent("lobby", alice.ID))
	req.Empty(f.sent("lobby", event.UserLeft))
	// user-joined was only sent for the first device
	req.Len(f.sent("lobby", event.UserJoined), 1)
}

func TestDisconnect_Last_Connection_Goes_Offline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, nil)

	// Given alice on two devices, one of them joined to two rooms
	f.join(t, "phone", alice, "lobby")
	f.join(t, "phone", alice, "vip-lounge")
	f.join(t, "laptop", alice, "lobby")

	// When the phone disconnects
	f.service.Disconnect(ctx, "phone")

	// Then every room of the phone is cleaned but alice stays online
	req.True(f.registry.IsOnline(alice.ID))
	req.True(f.registry.IsPresent("lobby", alice.ID))
	req.False(f.registry.IsPresent("vip-lounge", alice.ID))
	req.Equal([]onlineCall{{userID: alice.ID, online: true}}, f.onlineCalls())

	// When the laptop disconnects too
	f.service.Disconnect(ctx, "laptop")

	// Then she is gone everywhere and flagged offline
	req.False(f.registry.IsOnline(alice.ID))
	req.False(f.registry.IsPresent("lobby", alice.ID))
	req.Empty(f.registry.Snapshot("lobby"))
	req.Equal([]onlineCall{{userID: alice.ID, online: true}, {userID: alice.ID, online: false}}, f.onlineCalls())

	// And a second disconnect is a no-op
	f.service.Disconnect(ctx, "laptop")
	req.Len(f.onlineCalls(), 2)
}

func TestJoin_Refreshes_The_Bound_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	upgraded := alice
	upgraded.Tier = domain.VIPTier
	f.credentials["token-alice-upgraded"] = upgraded

	// Given Alice joined the VIP lounge as a member who used her daily quota
	f.join(t, "c1", alice, "vip-lounge")
	f.usage[usageKey(alice.ID, domain.PrivateRoom)] = 10
	_, err := f.send("c1", alice, "vip-lounge", "hi")
	req.ErrorIs(err, errors.ErrQuotaExceeded)

	// When she joins again on the same connection after upgrading her tier
	err = f.service.Join(context.Background(), "c1", nopSink{}, chat.JoinRequest{
		Address:    "lobby",
		UserID:     alice.ID,
		Credential: "token-alice-upgraded",
	})
	req.NoError(err)

	// Then the fresh record is used to authorize her next message
	conn, ok := f.registry.Connection("c1")
	req.True(ok)
	req.Equal(domain.VIPTier, conn.User.Tier)
	_, err = f.send("c1", alice, "vip-lounge", "hi again")
	req.NoError(err)
}
