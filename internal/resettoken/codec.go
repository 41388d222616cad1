// Package resettoken implements the stateless password-reset token scheme.
//
// A token is BASE64(expires + "|" + email + "|" + digest) where digest is
// BASE64(SHA256(expires + lowercase(email) + currentPasswordHash + dbHash)).
// Binding the digest to the current password hash invalidates the token the
// moment the password changes, so no server-side revocation list is needed.
// Brute forcing is limited by a per-(email, expires) failure counter.
package resettoken

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/pkg/apperrors"
)

// MaxAttempts is the number of failed validations allowed per (email,
// expires) pair before the key is locked out.
const MaxAttempts = 10

// HashSource resolves the current password hash for an email address. The
// codec needs it to recompute the expected token during validation.
type HashSource interface {
	PasswordHashByEmail(ctx context.Context, email string) (string, error)
}

// AttemptStore counts failed validations per token key. Implementations
// must increment atomically so concurrent validations keep the lockout
// accurate.
type AttemptStore interface {
	Failures(ctx context.Context, key string) (int, error)
	RecordFailure(ctx context.Context, key string, ttl time.Duration) error
}

// Codec generates and validates reset tokens.
type Codec struct {
	dbHash   string
	hashes   HashSource
	attempts AttemptStore
	logger   *logrus.Logger

	now func() time.Time
}

func NewCodec(dbHash string, hashes HashSource, attempts AttemptStore, logger *logrus.Logger) *Codec {
	return &Codec{
		dbHash:   dbHash,
		hashes:   hashes,
		attempts: attempts,
		logger:   logger,
		now:      time.Now,
	}
}

// Encode builds the token for a known password hash. expires is epoch
// milliseconds.
func Encode(email string, expires int64, passwordHash, dbHash string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(expires, 10)))
	h.Write([]byte(strings.ToLower(email)))
	h.Write([]byte(passwordHash))
	h.Write([]byte(dbHash))
	digest := base64.StdEncoding.EncodeToString(h.Sum(nil))

	payload := strconv.FormatInt(expires, 10) + "|" + email + "|" + digest
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// Generate looks up the account's current password hash and builds a token
// that expires at the given epoch-millisecond timestamp.
func (c *Codec) Generate(ctx context.Context, email string, expires int64) (string, error) {
	hash, err := c.hashes.PasswordHashByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return Encode(email, expires, hash, c.dbHash), nil
}

// Validate checks a candidate token and returns the embedded email as the
// verified identity. Failures are deliberately coarse: a wrong digest is
// indistinguishable from any other mismatch.
func (c *Codec) Validate(ctx context.Context, token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", apperrors.BadRequest("Invalid token structure")
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", apperrors.BadRequest("Invalid token structure")
	}

	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "", apperrors.BadRequest("Invalid token expiration")
	}
	email := parts[1]

	// replay protection
	if expires < c.now().UnixMilli() {
		return "", apperrors.BadRequest("Expired token")
	}

	key := attemptKey(email, expires)
	if n := c.failures(ctx, key); n >= MaxAttempts {
		return "", apperrors.NoPermission("Token locked")
	}

	expected, err := c.Generate(ctx, email, expires)
	if err != nil {
		return "", err
	}

	if constantTimeEqual(token, expected) {
		return email, nil
	}

	c.recordFailure(ctx, key, expires)
	return "", apperrors.BadRequest("Invalid token")
}

// EncodeURLSafe converts a token to the URL-safe alphabet used at the HTTP
// boundary; DecodeURLSafe reverses it.
func EncodeURLSafe(token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(token))
}

func DecodeURLSafe(token string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", apperrors.BadRequest("Invalid token structure")
	}
	return string(b), nil
}

func attemptKey(email string, expires int64) string {
	return email + "+" + strconv.FormatInt(expires, 10)
}

func (c *Codec) failures(ctx context.Context, key string) int {
	n, err := c.attempts.Failures(ctx, key)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("key", key).Warn("reset attempt lookup failed")
		}
		return 0
	}
	return n
}

func (c *Codec) recordFailure(ctx context.Context, key string, expires int64) {
	// Counters live only as long as the token they guard, plus a minute of
	// slack so a counter never dies before its token.
	ttl := time.UnixMilli(expires).Sub(c.now()) + time.Minute
	if err := c.attempts.RecordFailure(ctx, key, ttl); err != nil && c.logger != nil {
		c.logger.WithError(err).WithField("key", key).Warn("reset attempt record failed")
	}
}

// constantTimeEqual compares two strings byte for byte, XOR-accumulating
// differences. The loop always runs over the whole candidate even when the
// lengths differ, so a length mismatch does not produce a timing tell.
func constantTimeEqual(candidate, expected string) bool {
	diff := 0
	if len(candidate) != len(expected) {
		diff = 1
	}
	for i := 0; i < len(candidate); i++ {
		var e byte
		if i < len(expected) {
			e = expected[i]
		}
		diff |= int(candidate[i] ^ e)
	}
	return diff == 0
}
