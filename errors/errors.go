package errors

import (
	"errors"
	"fmt"
)

// Kinds exposed to clients through the "error" event.
var (
	ErrAuthentication = fmt.Errorf("authentication error")
	ErrAuthorization  = fmt.Errorf("authorization error")
	ErrRateLimit      = fmt.Errorf("rate limit error")
	ErrNotFound       = fmt.Errorf("not found")
	ErrValidation     = fmt.Errorf("validation error")
	ErrPersistence    = fmt.Errorf("persistence error")
	ErrBroadcast      = fmt.Errorf("broadcast error")
)

var (
	ErrMissingCredential  = fmt.Errorf("%w: missing credential", ErrAuthentication)
	ErrInvalidSignature   = fmt.Errorf("%w: invalid signature", ErrAuthentication)
	ErrCredentialExpired  = fmt.Errorf("%w: credential expired", ErrAuthentication)
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrAuthentication)
	ErrUserInactive       = fmt.Errorf("%w: user inactive", ErrAuthentication)
	ErrIdentityMismatch   = fmt.Errorf("%w: identity mismatch", ErrAuthentication)
	ErrNotAuthenticated   = fmt.Errorf("%w: connection is not authenticated", ErrAuthentication)
	ErrInvalidUserID      = fmt.Errorf("%w: user id must not contain '_'", ErrAuthentication)
	ErrNotMember          = fmt.Errorf("%w: not a member", ErrAuthorization)
	ErrNotParticipant     = fmt.Errorf("%w: not a participant of this conversation", ErrAuthorization)
	ErrAgeRestricted      = fmt.Errorf("%w: age restriction", ErrAuthorization)
	ErrRoomFull           = fmt.Errorf("%w: room is full", ErrAuthorization)
	ErrQuotaExceeded      = fmt.Errorf("%w: daily message quota exceeded", ErrAuthorization)
	ErrNotJoined          = fmt.Errorf("%w: not joined to this address", ErrAuthorization)
	ErrNotMessageOwner    = fmt.Errorf("%w: not the author of this message", ErrAuthorization)
	ErrRateLimited        = fmt.Errorf("%w: too many requests", ErrRateLimit)
	ErrRoomNotFound       = fmt.Errorf("%w: room", ErrNotFound)
	ErrMessageNotFound    = fmt.Errorf("%w: message", ErrNotFound)
	ErrInvalidAddress     = fmt.Errorf("%w: invalid address", ErrValidation)
	ErrUnknownEvent       = fmt.Errorf("%w: unknown event", ErrValidation)
	ErrInvalidPayload     = fmt.Errorf("%w: invalid payload", ErrValidation)
	ErrSinkClosed         = fmt.Errorf("%w: sink closed", ErrBroadcast)
	ErrSinkFull           = fmt.Errorf("%w: sink buffer full", ErrBroadcast)
	ErrFanoutFull         = fmt.Errorf("%w: fanout buffer full", ErrBroadcast)
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrInvalidTierQuota   = fmt.Errorf("invalid tier quota")
	ErrInvalidReplacement = fmt.Errorf("replacement must be a single character")
)

type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindRateLimit      Kind = "rate-limit"
	KindNotFound       Kind = "not-found"
	KindValidation     Kind = "validation"
	KindPersistence    Kind = "persistence"
	KindBroadcast      Kind = "broadcast"
	KindInternal       Kind = "internal"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrAuthentication, KindAuthentication},
	{ErrAuthorization, KindAuthorization},
	{ErrRateLimit, KindRateLimit},
	{ErrNotFound, KindNotFound},
	{ErrValidation, KindValidation},
	{ErrPersistence, KindPersistence},
	{ErrBroadcast, KindBroadcast},
}

// KindOf maps an error to the taxonomy used on the wire.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}

// IsClientFacing reports whether the error is sent back to the originating connection.
// Broadcast failures are only logged.
func IsClientFacing(err error) bool {
	switch KindOf(err) {
	case KindBroadcast:
		return false
	default:
		return true
	}
}

// Persistence wraps a storage failure so that callers can match ErrPersistence.
func Persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Validation wraps a payload validation failure.
func Validation(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
}
