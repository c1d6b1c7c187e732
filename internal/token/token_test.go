package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memflow/lowcode-backend/internal/model"
)

func testIdentity() Identity {
	return Identity{
		ID:       42,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     model.RolePublic,
		Avatar:   "https://example.com/a.png",
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	t.Parallel()

	svc := New("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)

	raw, err := svc.IssueAccess(testIdentity())
	require.NoError(t, err)

	got, err := svc.Verify(raw, KindAccess)
	require.NoError(t, err)
	require.Equal(t, testIdentity(), got)
}

func TestVerifyAfterExpiry(t *testing.T) {
	t.Parallel()

	svc := New("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)

	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	raw, err := svc.IssueAccess(testIdentity())
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		svc.now = func() time.Time { return issued.Add(29 * time.Minute) }
		_, err := svc.Verify(raw, KindAccess)
		require.NoError(t, err)
	})

	t.Run("rejected after TTL elapses", func(t *testing.T) {
		svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
		_, err := svc.Verify(raw, KindAccess)
		require.ErrorIs(t, err, ErrInvalidOrExpired)
	})
}

func TestSecretsAreIndependent(t *testing.T) {
	t.Parallel()

	svc := New("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)

	t.Run("refresh token rejected as access", func(t *testing.T) {
		raw, err := svc.IssueRefresh(testIdentity())
		require.NoError(t, err)
		_, err = svc.Verify(raw, KindAccess)
		require.ErrorIs(t, err, ErrInvalidOrExpired)
	})

	t.Run("access token rejected as refresh", func(t *testing.T) {
		raw, err := svc.IssueAccess(testIdentity())
		require.NoError(t, err)
		_, err = svc.Verify(raw, KindRefresh)
		require.ErrorIs(t, err, ErrInvalidOrExpired)
	})

	t.Run("token from a different service rejected", func(t *testing.T) {
		other := New("other-secret", "other-refresh", 30*time.Minute, 7*24*time.Hour)
		raw, err := other.IssueAccess(testIdentity())
		require.NoError(t, err)
		_, err = svc.Verify(raw, KindAccess)
		require.ErrorIs(t, err, ErrInvalidOrExpired)
	})
}

func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	svc := New("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.Verify(raw, KindAccess)
		require.ErrorIs(t, err, ErrInvalidOrExpired)
	}
}
