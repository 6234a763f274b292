package domain

import (
	"time"

	"github.com/samber/lo"
)

type RoomType string

const (
	PublicRoomType  RoomType = "public"
	PrivateRoomType RoomType = "private"
)

type MemberRole string

const (
	OwnerRole     MemberRole = "owner"
	ModeratorRole MemberRole = "moderator"
	MemberRoleStd MemberRole = "member"
)

type Member struct {
	UserID   string     `json:"userId"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joinedAt"`
}

type RoomStats struct {
	TotalMessages int64 `json:"totalMessages"`
}

type RoomSettings struct {
	// MaxMembers of 0 means unbounded.
	MaxMembers int `json:"maxMembers"`
}

type AgeRestriction struct {
	// MinAge of 0 disables the gate.
	MinAge int `json:"minAge"`
}

// ChatRoom is the persisted aggregate behind public and private room addresses.
// Direct pseudo-rooms have no ChatRoom.
type ChatRoom struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           RoomType       `json:"type"`
	Members        []Member       `json:"members"`
	Stats          RoomStats      `json:"stats"`
	Settings       RoomSettings   `json:"settings"`
	AgeRestriction AgeRestriction `json:"ageRestriction"`
	EntryFee       int64          `json:"entryFee"`
	CreatedAt      time.Time      `json:"createdAt"`
}

func (r ChatRoom) Address() Address {
	if r.Type == PrivateRoomType {
		return RoomAddress(r.ID, PrivateRoom)
	}
	return RoomAddress(r.ID, PublicRoom)
}

func (r ChatRoom) IsMember(userID string) bool {
	return lo.ContainsBy(r.Members, func(m Member) bool { return m.UserID == userID })
}

func (r ChatRoom) IsFull() bool {
	return r.Settings.MaxMembers > 0 && len(r.Members) >= r.Settings.MaxMembers
}

func (r ChatRoom) MemberIDs() []string {
	return lo.Map(r.Members, func(m Member, _ int) string { return m.UserID })
}

// AddMember is idempotent and returns false when the user already belongs to the room.
func (r *ChatRoom) AddMember(userID string, role MemberRole, at time.Time) bool {
	if r.IsMember(userID) {
		return false
	}
	r.Members = append(r.Members, Member{UserID: userID, Role: role, JoinedAt: at})
	return true
}
