package auth

import (
	"context"
	"testing"
	"time"

	"crashd/config"
	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testhelpers.StubUnitOfWork) {
	t.Helper()
	uow := testhelpers.NewStubUnitOfWork()
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Hour)
	svc := NewService(&testhelpers.StubUnitOfWorkFactory{UoW: uow}, issuer, NewSessionRegistry(time.Hour), &config.Config{})
	return svc, uow
}

func TestService_RefreshLifecycle(t *testing.T) {
	ctx := context.Background()
	user := &entities.User{ID: 7, Username: "alice", Role: entities.RolePlayer, IsActive: true}

	t.Run("refresh re-issues while the session is active", func(t *testing.T) {
		svc, uow := newTestService(t)
		uow.Users.On("GetByID", mock.Anything, int64(7)).Return(user, nil)

		pair, err := svc.startSession(user)
		require.NoError(t, err)

		access, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		identity, err := svc.Authenticate(access)
		require.NoError(t, err)
		assert.Equal(t, int64(7), identity.UserID)
	})

	t.Run("refresh after logout is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)

		pair, err := svc.startSession(user)
		require.NoError(t, err)

		svc.Logout(user.ID)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("refresh with an access token is rejected", func(t *testing.T) {
		svc, _ := newTestService(t)

		pair, err := svc.startSession(user)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.AccessToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})

	t.Run("logout invalidates the outstanding access token", func(t *testing.T) {
		svc, _ := newTestService(t)

		pair, err := svc.startSession(user)
		require.NoError(t, err)

		svc.Logout(user.ID)

		_, err = svc.Authenticate(pair.AccessToken)
		assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
	})
}
