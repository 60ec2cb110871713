// Package service implements login, logout, and token verification.
//
// A successful login creates a server-side session and issues a JWT
// that carries the session ID. Verification requires both a valid
// signature and a live session, so logout revokes tokens immediately.
// Failed logins land in the audit journal as FAILURE entries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"golang.org/x/crypto/bcrypt"

	"admitdesk/internal/audit"
	"admitdesk/internal/auth/models"
	"admitdesk/pkg/apperrors"
	"admitdesk/pkg/requestcontext"
)

// UserTargetType is the audit target type for account operations.
const UserTargetType = "User"

type Users interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Sessions interface {
	Create(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	users      Users
	sessions   Sessions
	auditor    *audit.Writer
	signingKey []byte
	ttl        time.Duration
	logger     *slog.Logger
}

func New(users Users, sessions Sessions, auditor *audit.Writer, signingKey []byte, ttl time.Duration, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit writer is required")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("JWT signing key is required")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{users: users, sessions: sessions, auditor: auditor, signingKey: signingKey, ttl: ttl, logger: logger}, nil
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Login checks credentials and returns a signed token. Invalid
// credentials and disabled accounts both answer unauthorized without
// revealing which check failed.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		// Burn a comparison anyway so unknown and known usernames take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return "", nil, s.failLogin(ctx, username, "unknown user")
	}
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, s.failLogin(ctx, username, "wrong password")
	}
	if !user.Active {
		return "", nil, s.failLogin(ctx, username, "account disabled")
	}

	now := requestcontext.Now(ctx)
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Roles:     user.Roles,
		Device:    deviceLabel(requestcontext.UserAgent(ctx)),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to create session")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to sign token")
	}
	return signed, user, nil
}

// Logout revokes the session behind the given token. Unknown or already
// revoked tokens succeed; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, c.SessionID); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to delete session")
	}
	return nil
}

// Verify validates a token and returns the actor it authenticates. The
// session must still exist server-side.
func (s *Service) Verify(ctx context.Context, token string) (requestcontext.Actor, error) {
	c, err := s.parse(token)
	if err != nil {
		return requestcontext.Actor{}, apperrors.New(apperrors.CodeUnauthorized, "invalid token")
	}

	sess, err := s.sessions.Get(ctx, c.SessionID)
	if errors.Is(err, models.ErrSessionExpired) {
		return requestcontext.Actor{}, apperrors.New(apperrors.CodeUnauthorized, "session expired")
	}
	if err != nil {
		return requestcontext.Actor{}, apperrors.Wrap(err, apperrors.CodeInternal, "failed to load session")
	}

	return requestcontext.Actor{
		ID:    fmt.Sprintf("%d", sess.UserID),
		Name:  sess.FullName,
		Roles: sess.Roles,
	}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid claims")
	}
	return c, nil
}

func (s *Service) failLogin(ctx context.Context, username, detail string) error {
	s.logger.WarnContext(ctx, "login rejected", "username", username, "detail", detail)
	s.auditor.WriteBestEffort(ctx, audit.Record{
		Action:     audit.ActionException,
		Status:     audit.StatusFailure,
		TargetType: UserTargetType,
		TargetID:   username,
		New:        map[string]any{"error_kind": "login_failed"},
	})
	return apperrors.New(apperrors.CodeUnauthorized, "invalid credentials")
}

// deviceLabel condenses a User-Agent header into a short label for the
// session record. Unparseable agents are kept verbatim.
func deviceLabel(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return rawUA
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s on %s", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}

// HashPassword wraps bcrypt for account bootstrap.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
