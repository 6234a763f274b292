package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"
	"strings"

	stderrors "errors"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator turns a bearer credential into a live, active user.
// It is stateless and consulted on every join.
type Authenticator struct {
	signer TokenSigner
	users  contract.UserStore
	log    *slog.Logger
}

func NewAuthenticator(signer TokenSigner, users contract.UserStore, log *slog.Logger) *Authenticator {
	return &Authenticator{signer: signer, users: users, log: log}
}

func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.User, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return domain.User{}, errors.ErrMissingCredential
	}

	claims, err := a.signer.ValidateToken(credential)
	switch {
	case err == nil:
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return domain.User{}, errors.ErrCredentialExpired
	default:
		a.log.Debug("Rejected credential", "error", err)
		return domain.User{}, errors.ErrInvalidSignature
	}
	if claims.UserID == "" {
		return domain.User{}, errors.ErrInvalidSignature
	}
	if !domain.ValidUserID(claims.UserID) {
		return domain.User{}, errors.ErrInvalidUserID
	}

	user, err := a.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return domain.User{}, err
		}
		return domain.User{}, fmt.Errorf("%w: %v", errors.ErrUserNotFound, err)
	}
	if !user.Active {
		return domain.User{}, errors.ErrUserInactive
	}
	return user, nil
}
