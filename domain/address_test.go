package domain

import (
	"sodeclick-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDirectAddress_Is_Commutative(t *testing.T) {
	req := require.New(t)

	// Given two users in both orders
	ab := DirectAddress("u42", "u17")
	ba := DirectAddress("u17", "u42")

	// Then both derive the same pseudo-room
	req.Equal(ab, ba)
	req.Equal("private_u17_u42", ab.String())
	req.Equal(DirectPseudoRoom, ab.Kind())
	req.True(ab.Involves("u17"))
	req.True(ab.Involves("u42"))
	req.False(ab.Involves("u99"))
	req.Equal("u42", ab.Peer("u17"))
	req.Equal("", ab.Peer("u99"))
}

func TestParseDirectAddress(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "canonical", raw: "private_u17_u42"},
		{name: "scoped", raw: "private_u17_u42_deleted_u17_1700000000"},
		{name: "unsorted participants", raw: "private_u42_u17", wantErr: true},
		{name: "same participant twice", raw: "private_u17_u17", wantErr: true},
		{name: "missing participant", raw: "private_u17", wantErr: true},
		{name: "deleter is a stranger", raw: "private_u17_u42_deleted_u99_1700000000", wantErr: true},
		{name: "bad timestamp", raw: "private_u17_u42_deleted_u17_abc", wantErr: true},
		{name: "wrong marker", raw: "private_u17_u42_removed_u17_1700000000", wantErr: true},
		{name: "room id", raw: "room-1", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			addr, err := ParseDirectAddress(tc.raw)
			if tc.wantErr {
				req.ErrorIs(err, errors.ErrInvalidAddress)
				req.ErrorIs(err, errors.ErrValidation)
				return
			}
			req.NoError(err)
			req.Equal(tc.raw, addr.String())
		})
	}
}

func TestAddress_ScopedFor_Keeps_Participants(t *testing.T) {
	req := require.New(t)
	at := time.Unix(1700000000, 0)

	// Given a direct conversation deleted by u17
	scoped := DirectAddress("u17", "u42").ScopedFor("u17", at)

	// Then it is still a direct address between the same users
	req.Equal("private_u17_u42_deleted_u17_1700000000", scoped.String())
	req.Equal("u17", scoped.DeletedBy())
	req.Equal(DirectPseudoRoom, scoped.Kind())
	req.Equal([2]string{"u17", "u42"}, scoped.Participants())
	req.Equal(DirectAddress("u42", "u17"), scoped.Canonical())

	// And it only shows what happened from the deletion on
	req.False(scoped.Shows(at.Add(-time.Second)))
	req.True(scoped.Shows(at))
	req.True(scoped.Canonical().Shows(at.Add(-time.Hour)))
	req.Equal(at, scoped.DeletedAt())

	// And it round-trips through the parser
	parsed, err := ParseDirectAddress(scoped.String())
	req.NoError(err)
	req.Equal(scoped, parsed)
}

func TestRoomAddress(t *testing.T) {
	req := require.New(t)
	addr := RoomAddress("lobby", PublicRoom)
	req.True(addr.IsRoom())
	req.False(addr.Involves("lobby"))
	req.Equal("lobby", addr.String())
	req.False(IsDirect(addr.String()))
	req.Equal("user_u17", UserChannel("u17"))
}

func TestValidUserID_Rejects_Direct_Separator(t *testing.T) {
	req := require.New(t)

	// Given an id containing the separator, the derived address splits two ways
	addr := DirectAddress("john_doe", "mary")
	req.Equal("private_john_doe_mary", addr.String())
	req.Equal("private_john_doe_mary", DirectAddress("john", "doe_mary").String())

	// Then such ids are refused before any address is derived
	req.False(ValidUserID("john_doe"))
	req.False(ValidUserID(""))
	req.True(ValidUserID("john-doe"))
	req.True(ValidUserID("665f1c2ab3"))
}
