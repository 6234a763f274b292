// Package domain contains core concepts of the chat system.
// This file defines conversation addresses and their derivation rules.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"sodeclick-chat/errors"
	"strconv"
	"strings"
	"time"
)

const (
	directPrefix  = "private_"
	deletedMarker = "deleted"
	userChannel   = "user_"
)

type AddressKind int

const (
	PublicRoom AddressKind = iota
	PrivateRoom
	DirectPseudoRoom
)

func (k AddressKind) String() string {
	switch k {
	case PublicRoom:
		return "public"
	case PrivateRoom:
		return "private"
	case DirectPseudoRoom:
		return "direct"
	default:
		return "unknown"
	}
}

// Address identifies a conversation. Room addresses carry the room id,
// direct addresses carry both participants sorted lexicographically and,
// once a participant soft-deleted the conversation, the deleter scope.
type Address struct {
	kind         AddressKind
	roomID       string
	participants [2]string
	deletedBy    string
	deletedAt    int64
}

func RoomAddress(id string, kind AddressKind) Address {
	return Address{kind: kind, roomID: id}
}

// DirectAddress derives the pseudo-room of two users. The result does not
// depend on the argument order.
func DirectAddress(userA, userB string) Address {
	if userB < userA {
		userA, userB = userB, userA
	}
	return Address{kind: DirectPseudoRoom, participants: [2]string{userA, userB}}
}

// IsDirect reports whether a raw address targets a pseudo-room.
func IsDirect(raw string) bool {
	return strings.HasPrefix(raw, directPrefix)
}

// ParseDirectAddress accepts "private_<a>_<b>" and the deleter-scoped
// "private_<a>_<b>_deleted_<deleter>_<unix>" forms.
func ParseDirectAddress(raw string) (Address, error) {
	if !IsDirect(raw) {
		return Address{}, errors.ErrInvalidAddress
	}
	parts := strings.Split(strings.TrimPrefix(raw, directPrefix), "_")
	if len(parts) != 2 && len(parts) != 5 {
		return Address{}, errors.ErrInvalidAddress
	}
	if parts[0] == "" || parts[1] == "" || parts[0] == parts[1] {
		return Address{}, errors.ErrInvalidAddress
	}
	addr := DirectAddress(parts[0], parts[1])
	if addr.String() != directPrefix+parts[0]+"_"+parts[1] {
		// participants must already be sorted
		return Address{}, errors.ErrInvalidAddress
	}
	if len(parts) == 2 {
		return addr, nil
	}
	if parts[2] != deletedMarker || !addr.Involves(parts[3]) {
		return Address{}, errors.ErrInvalidAddress
	}
	at, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || at <= 0 {
		return Address{}, errors.ErrInvalidAddress
	}
	addr.deletedBy = parts[3]
	addr.deletedAt = at
	return addr, nil
}

func (a Address) Kind() AddressKind { return a.kind }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) RoomID() string { return a.roomID }

func (a Address) Participants() [2]string { return a.participants }

func (a Address) DeletedBy() string { return a.deletedBy }

func (a Address) IsRoom() bool {
	return a.kind == PublicRoom || a.kind == PrivateRoom
}

// Involves reports whether the user is one of the two ids embedded in a direct address.
func (a Address) Involves(userID string) bool {
	if a.kind != DirectPseudoRoom || userID == "" {
		return false
	}
	return a.participants[0] == userID || a.participants[1] == userID
}

// Peer returns the other participant of a direct address.
func (a Address) Peer(userID string) string {
	switch userID {
	case a.participants[0]:
		return a.participants[1]
	case a.participants[1]:
		return a.participants[0]
	default:
		return ""
	}
}

// Canonical strips the deleter scope.
func (a Address) Canonical() Address {
	a.deletedBy = ""
	a.deletedAt = 0
	return a
}

// DeletedAt is the soft-delete instant of a scoped address, zero otherwise.
func (a Address) DeletedAt() time.Time {
	if a.deletedBy == "" {
		return time.Time{}
	}
	return time.Unix(a.deletedAt, 0)
}

// Shows reports whether a message created at the given instant is visible
// through this address. A scoped address hides everything older than the
// second the conversation was deleted.
func (a Address) Shows(createdAt time.Time) bool {
	if a.deletedBy == "" {
		return true
	}
	return createdAt.Unix() >= a.deletedAt
}

// ScopedFor returns the deleter-scoped variant used by userID after a soft delete.
func (a Address) ScopedFor(userID string, at time.Time) Address {
	c := a.Canonical()
	c.deletedBy = userID
	c.deletedAt = at.Unix()
	return c
}

func (a Address) String() string {
	switch a.kind {
	case DirectPseudoRoom:
		s := directPrefix + a.participants[0] + "_" + a.participants[1]
		if a.deletedBy != "" {
			s += "_" + deletedMarker + "_" + a.deletedBy + "_" + strconv.FormatInt(a.deletedAt, 10)
		}
		return s
	default:
		return a.roomID
	}
}

// UserChannel names the personal notification channel of a user.
func UserChannel(userID string) string {
	return userChannel + userID
}
