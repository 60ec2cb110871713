package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitdesk/internal/audit"
	auditmemory "admitdesk/internal/audit/store/memory"
	"admitdesk/internal/auth/models"
	authmemory "admitdesk/internal/auth/store/memory"
	"admitdesk/pkg/apperrors"
	"admitdesk/pkg/requestcontext"
)

func newService(t *testing.T) (*Service, *auditmemory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	journal := auditmemory.New()
	writer, err := audit.NewWriter(journal, []byte("test-secret"), logger, nil)
	require.NoError(t, err)

	users := authmemory.NewUserStore()
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &models.User{
		Username:     "nva",
		PasswordHash: hash,
		FullName:     "Nguyen Van A",
		Roles:        []string{"staff"},
		Active:       true,
		CreatedAt:    time.Now(),
	}))

	svc, err := New(users, authmemory.NewSessionStore(time.Hour), writer, []byte("jwt-test-key"), time.Hour, logger)
	require.NoError(t, err)
	return svc, journal
}

func TestLoginAndVerify(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "nva", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "nva", user.Username)

	actor, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Nguyen Van A", actor.Name)
	assert.True(t, actor.HasRole("staff"))
}

func TestLoginFailureWritesJournalEntry(t *testing.T) {
	svc, journal := newService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "nva", "wrong")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	_, _, err = svc.Login(ctx, "ghost", "whatever")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	page, err := journal.ListEntries(ctx,
		audit.Filter{Action: string(audit.ActionException)}, audit.Sort{}, audit.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	for _, e := range page.Items {
		assert.Equal(t, audit.StatusFailure, e.Status)
		assert.Equal(t, "login_failed", e.NewValues["error_kind"])
	}
}

func TestLoginRecordsSessionDevice(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	journal := auditmemory.New()
	writer, err := audit.NewWriter(journal, []byte("test-secret"), logger, nil)
	require.NoError(t, err)

	users := authmemory.NewUserStore()
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), &models.User{
		Username: "nva", PasswordHash: hash, FullName: "Nguyen Van A",
		Roles: []string{"staff"}, Active: true, CreatedAt: time.Now(),
	}))
	sessions := authmemory.NewSessionStore(time.Hour)

	svc, err := New(users, sessions, writer, []byte("jwt-test-key"), time.Hour, logger)
	require.NoError(t, err)

	const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	ctx := requestcontext.WithUserAgent(context.Background(), chromeUA)

	token, _, err := svc.Login(ctx, "nva", "s3cret-pass")
	require.NoError(t, err)

	c, err := svc.parse(token)
	require.NoError(t, err)
	sess, err := sessions.Get(ctx, c.SessionID)
	require.NoError(t, err)
	assert.Contains(t, sess.Device, "Chrome")
	assert.Contains(t, sess.Device, "Windows")

	// Without a User-Agent the label stays empty.
	token, _, err = svc.Login(context.Background(), "nva", "s3cret-pass")
	require.NoError(t, err)
	c, err = svc.parse(token)
	require.NoError(t, err)
	sess, err = sessions.Get(context.Background(), c.SessionID)
	require.NoError(t, err)
	assert.Empty(t, sess.Device)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "nva", "s3cret-pass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Verify(ctx, token)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized), "token is dead once the session is gone")

	// Logging out again is a no-op.
	assert.NoError(t, svc.Logout(ctx, token))
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Verify(context.Background(), "not.a.token")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))

	// A token whose session lives in a different store is rejected even
	// though the signature checks out.
	other, _ := newService(t)
	token, _, err := other.Login(context.Background(), "nva", "s3cret-pass")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}
