package domain

import "strings"

type Role string

const (
	UserRole       Role = "user"
	AdminRole      Role = "admin"
	SuperAdminRole Role = "superadmin"
)

type Tier string

const (
	MemberTier   Tier = "member"
	SilverTier   Tier = "silver"
	GoldTier     Tier = "gold"
	VIPTier      Tier = "vip"
	DiamondTier  Tier = "diamond"
	PlatinumTier Tier = "platinum"
)

// User is owned by the external user store; the chat core only reads it
// and flips the online flag.
type User struct {
	ID          string
	DisplayName string
	Role        Role
	Tier        Tier
	Age         int
	Active      bool
	Online      bool
}

// ValidUserID rejects ids containing the separator of direct addresses:
// "private_<a>_<b>" could not be split back into its two participants.
func ValidUserID(id string) bool {
	return id != "" && !strings.Contains(id, "_")
}

func (u User) IsElevated() bool {
	return u.Role == AdminRole || u.Role == SuperAdminRole
}
