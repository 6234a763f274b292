package auth

import (
	"context"
	"log/slog"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"
	"sodeclick-chat/mocks"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	secret = "test_secret_with_enough_length_2026"
	issuer = "sodeclick-chat"
)

func TestAuthenticator_Valid_Credential(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	signer := NewTokenSigner(secret, issuer)
	authenticator := NewAuthenticator(signer, users, logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given a token issued for an active user
	token, err := signer.GenerateToken("u17", time.Hour)
	req.NoError(err)
	expected := domain.User{ID: "u17", DisplayName: "Alice", Active: true}
	users.EXPECT().GetUser(gomock.Any(), "u17").Return(expected, nil)

	// When authenticating with a bearer prefix
	user, err := authenticator.Authenticate(context.Background(), "Bearer "+token)

	// Then the user is returned
	req.NoError(err)
	req.Equal(expected, user)
}

func TestAuthenticator_Rejections(t *testing.T) {
	signer := NewTokenSigner(secret, issuer)
	valid, err := signer.GenerateToken("u17", time.Hour)
	require.NoError(t, err)
	expired, err := signer.GenerateToken("u17", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewTokenSigner("another_secret_with_enough_length", issuer).GenerateToken("u17", time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewTokenSigner(secret, "someone-else").GenerateToken("u17", time.Hour)
	require.NoError(t, err)
	underscore, err := signer.GenerateToken("john_doe", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name       string
		credential string
		user       *domain.User
		userErr    error
		wantErr    error
	}{
		{name: "missing", credential: "  ", wantErr: errors.ErrMissingCredential},
		{name: "garbage", credential: "not-a-jwt", wantErr: errors.ErrInvalidSignature},
		{name: "wrong secret", credential: foreign, wantErr: errors.ErrInvalidSignature},
		{name: "wrong issuer", credential: otherIssuer, wantErr: errors.ErrInvalidSignature},
		{name: "expired", credential: expired, wantErr: errors.ErrCredentialExpired},
		{name: "id with direct separator", credential: underscore, wantErr: errors.ErrInvalidUserID},
		{name: "unknown user", credential: valid, userErr: errors.ErrUserNotFound, wantErr: errors.ErrUserNotFound},
		{name: "inactive user", credential: valid, user: &domain.User{ID: "u17"}, wantErr: errors.ErrUserInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			users := mocks.NewMockUserStore(ctrl)
			if tc.user != nil || tc.userErr != nil {
				var u domain.User
				if tc.user != nil {
					u = *tc.user
				}
				users.EXPECT().GetUser(gomock.Any(), "u17").Return(u, tc.userErr)
			}
			authenticator := NewAuthenticator(signer, users, logs.GetLoggerFromLevel(slog.LevelDebug))

			_, err := authenticator.Authenticate(context.Background(), tc.credential)

			req.ErrorIs(err, tc.wantErr)
			req.ErrorIs(err, errors.ErrAuthentication)
		})
	}
}
