package application

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/pkg/apperrors"
	"github.com/statlerhq/accounts/pkg/helpers"
)

const sessionTTL = 24 * time.Hour

// TokenPair is an issued access/refresh token pair with the access token's
// expiry for the cookie layer.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	AccessExpiry  time.Time
	RefreshExpiry time.Time
}

// SessionManager issues JWT pairs and mirrors a session record in Redis so
// tokens can be revoked server-side on logout.
type SessionManager struct {
	JWT   *helpers.JWTManager
	Redis *redis.Client
}

func NewSessionManager(jwtm *helpers.JWTManager, rdb *redis.Client) *SessionManager {
	return &SessionManager{JWT: jwtm, Redis: rdb}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("user:session:%d", userID)
}

// Issue creates a token pair for the user and records the session in Redis.
func (m *SessionManager) Issue(ctx context.Context, u *entity.User) (*TokenPair, error) {
	access, accessExp, err := m.JWT.GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, refreshExp, err := m.JWT.GenerateRefreshToken(u.ID, string(u.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if m.Redis != nil {
		pipe := m.Redis.Pipeline()
		pipe.HSet(ctx, sessionKey(u.ID), map[string]any{
			"user_id":    u.ID,
			"uuid":       u.UUID,
			"email":      u.Email,
			"role":       string(u.Role),
			"issued_at":  time.Now().Unix(),
			"expires_at": refreshExp.Unix(),
		})
		pipe.Expire(ctx, sessionKey(u.ID), sessionTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, apperrors.Internal(err)
		}
	}

	return &TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessExpiry:  accessExp,
		RefreshExpiry: refreshExp,
	}, nil
}

// Refresh validates a refresh token against the live session and rotates
// the pair. A missing session means the user logged out; the refresh token
// is rejected even though its signature is still valid.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, int64, error) {
	claims, err := m.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, 0, apperrors.Unauthorized("invalid refresh token")
	}

	if m.Redis != nil {
		n, err := m.Redis.Exists(ctx, sessionKey(claims.UserID)).Result()
		if err != nil {
			return nil, 0, apperrors.Internal(err)
		}
		if n == 0 {
			return nil, 0, apperrors.Unauthorized("session expired")
		}
	}

	access, accessExp, err := m.JWT.GenerateAccessToken(claims.UserID, claims.Role)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	refresh, refreshExp, err := m.JWT.GenerateRefreshToken(claims.UserID, claims.Role)
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}
	if m.Redis != nil {
		pipe := m.Redis.Pipeline()
		pipe.HSet(ctx, sessionKey(claims.UserID), "expires_at", refreshExp.Unix())
		pipe.Expire(ctx, sessionKey(claims.UserID), sessionTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, 0, apperrors.Internal(err)
		}
	}

	return &TokenPair{
		AccessToken:   access,
		RefreshToken:  refresh,
		AccessExpiry:  accessExp,
		RefreshExpiry: refreshExp,
	}, claims.UserID, nil
}

// Validate parses an access token and confirms the backing session still
// exists.
func (m *SessionManager) Validate(ctx context.Context, accessToken string) (*helpers.Claims, error) {
	claims, err := m.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid access token")
	}
	if m.Redis != nil {
		n, err := m.Redis.Exists(ctx, sessionKey(claims.UserID)).Result()
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if n == 0 {
			return nil, apperrors.Unauthorized("session expired")
		}
	}
	return claims, nil
}

// Revoke drops the server-side session, invalidating outstanding refresh
// tokens immediately.
func (m *SessionManager) Revoke(ctx context.Context, userID int64) error {
	if m.Redis == nil {
		return nil
	}
	if err := m.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}
