package helpers

import (
	"unicode/utf8"

	"github.com/statlerhq/accounts/pkg/apperrors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted plaintext password length,
// enforced before any hashing is attempted.
const MinPasswordLength = 8

// PasswordHasher wraps bcrypt with a configurable cost. bcrypt generates a
// random salt per call and compares in constant time.
type PasswordHasher struct {
	Cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{Cost: cost}
}

// CheckPasswordLength rejects passwords shorter than MinPasswordLength with
// a validation error. Length is counted in characters, not bytes, so
// multibyte passwords are measured the way users count them.
func CheckPasswordLength(plain string) error {
	if utf8.RuneCountInString(plain) < MinPasswordLength {
		return apperrors.Validation("Your password must be at least 8 characters long.")
	}
	return nil
}

// Hash hashes the plaintext. The length policy must already have been
// checked; hashing failure is a generic credential error.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "password hashing failed", err)
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. A malformed hash and a
// mismatch both yield false; the caller cannot tell them apart.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
