package domain

import (
	"fmt"
	"sodeclick-chat/errors"
	"strconv"
	"strings"
)

type LimitKind string

const (
	LimitMembership LimitKind = "membership"
	LimitDailyQuota LimitKind = "daily-quota"
	LimitAge        LimitKind = "age"
	LimitCapacity   LimitKind = "capacity"
)

// Unlimited marks a tier without daily quota.
const Unlimited = -1

// TierPolicy answers the two membership questions the chat core needs:
// how many private-room messages a user may send per day, and whether a
// user skips a given restriction altogether.
type TierPolicy struct {
	quotas       map[Tier]int
	defaultQuota int
}

func NewTierPolicy(quotas map[Tier]int, defaultQuota int) TierPolicy {
	return TierPolicy{quotas: quotas, defaultQuota: defaultQuota}
}

// ParseTierQuotas reads "member:10,silver:50,vip:-1".
func ParseTierQuotas(raw string) (map[Tier]int, error) {
	quotas := make(map[Tier]int)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tier, value, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(tier) == "" {
			return nil, fmt.Errorf("%w: %q", errors.ErrInvalidTierQuota, pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < Unlimited {
			return nil, fmt.Errorf("%w: %q", errors.ErrInvalidTierQuota, pair)
		}
		quotas[Tier(strings.ToLower(strings.TrimSpace(tier)))] = n
	}
	return quotas, nil
}

// DailyQuota returns Unlimited when the tier has no cap.
func (p TierPolicy) DailyQuota(user User) int {
	if q, ok := p.quotas[user.Tier]; ok {
		return q
	}
	return p.defaultQuota
}

// BypassesLimit is the single capability check shared by join and send.
// Elevated roles bypass every limit; unlimited tiers bypass the daily quota.
func (p TierPolicy) BypassesLimit(user User, kind LimitKind) bool {
	if user.IsElevated() {
		return true
	}
	if kind == LimitDailyQuota {
		return p.DailyQuota(user) == Unlimited
	}
	return false
}
