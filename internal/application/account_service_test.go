package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/internal/domain/repository"
	"github.com/statlerhq/accounts/internal/resettoken"
	"github.com/statlerhq/accounts/pkg/apperrors"
	"github.com/statlerhq/accounts/pkg/helpers"
)

// fakeRepo is an in-memory UserRepository. GetByEmail matches addresses
// case-insensitively, like the Postgres implementation.
type fakeRepo struct {
	mu   sync.Mutex
	seq  int64
	rows map[int64]*entity.User

	updateLoginErr  error
	updateStatusErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[int64]*entity.User)}
}

func copyUser(u *entity.User) *entity.User {
	c := *u
	if u.LastLogin != nil {
		ll := *u.LastLogin
		c.LastLogin = &ll
	}
	return &c
}

func (r *fakeRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	u.ID = r.seq
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.rows[u.ID] = copyUser(u)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, apperrors.NotFound("User not found")
	}
	return copyUser(u), nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) List(_ context.Context, filter repository.StatusFilter) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.User
	for _, u := range r.rows {
		switch filter {
		case repository.FilterActive:
			if !u.Status.IsActiveClass() {
				continue
			}
		case repository.FilterInvited:
			if !u.Status.IsInvitedClass() {
				continue
			}
		}
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[u.ID]
	if !ok {
		return apperrors.NotFound("User not found")
	}
	stored.Username = u.Username
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id int64, status entity.Status) error {
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[id]
	if !ok {
		return apperrors.NotFound("User not found")
	}
	stored.Status = status
	return nil
}

func (r *fakeRepo) UpdateLogin(_ context.Context, u *entity.User) error {
	if r.updateLoginErr != nil {
		return r.updateLoginErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[u.ID]
	if !ok {
		return apperrors.NotFound("User not found")
	}
	stored.Status = u.Status
	if u.LastLogin != nil {
		ll := *u.LastLogin
		stored.LastLogin = &ll
	}
	return nil
}

func (r *fakeRepo) UpdatePassword(_ context.Context, id int64, hash string, status entity.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[id]
	if !ok {
		return apperrors.NotFound("User not found")
	}
	stored.Password = hash
	if status != "" {
		stored.Status = status
	}
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return apperrors.NotFound("User not found")
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeRepo) stored(id int64) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyUser(r.rows[id])
}

// recordSink collects emitted event names in order.
type recordSink struct {
	names []string
}

func (s *recordSink) Emit(_ context.Context, name string, _ *entity.User) {
	s.names = append(s.names, name)
}

func (s *recordSink) reset() { s.names = nil }

func newTestService(repo *fakeRepo) (*Service, *recordSink) {
	sink := &recordSink{}
	hasher := helpers.NewPasswordHasher(bcrypt.MinCost)
	codec := resettoken.NewCodec("test-db-hash", HashSourceFor(repo), resettoken.NewMemoryAttemptStore(), nil)
	svc := NewService(repo, hasher, codec, sink, nil)
	svc.ResetTokenTTL = time.Hour
	svc.ResetURL = "https://accounts.example.com/reset-password"
	return svc, sink
}

func mustRegister(t *testing.T, svc *Service, email, password string) *entity.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{
		Email:    email,
		Username: strings.SplitN(email, "@", 2)[0],
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)

	u := mustRegister(t, svc, "alice@example.com", "thundergun0")
	assert.Equal(t, entity.StatusActive, u.Status)
	assert.Equal(t, entity.RoleUser, u.Role)
	assert.NotEmpty(t, u.UUID)
	assert.NotEqual(t, "thundergun0", u.Password)
	assert.True(t, svc.Hasher.Verify("thundergun0", u.Password))
	assert.Equal(t, []string{EventAdded, EventActivated}, sink.names)
}

func TestRegisterInvited(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)

	u, err := svc.Register(context.Background(), RegisterInput{
		Email:    "bob@example.com",
		Username: "bob",
		Password: "thundergun0",
		Status:   entity.StatusInvited,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInvited, u.Status)
	assert.Equal(t, []string{EventAdded}, sink.names, "invited accounts are not activated")
}

func TestRegisterShortPassword(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Username: "alice", Password: "short",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, "Your password must be at least 8 characters long.", apperrors.MessageOf(err))
	assert.Empty(t, repo.rows)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mustRegister(t, svc, "alice@example.com", "thundergun0")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "ALICE@example.com", Username: "alice2", Password: "thundergun0",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mustRegister(t, svc, "alice@example.com", "thundergun0")

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "alice2@example.com", Username: "alice", Password: "thundergun0",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
	assert.Equal(t, "That username is already in use.", apperrors.MessageOf(err))
	assert.Len(t, repo.rows, 1)
}

func TestCheckUnknownEmail(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.Check(context.Background(), "nobody@example.com", "whatever1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "There is no user with that email address.", apperrors.MessageOf(err))
}

func TestCheckInactiveClasses(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	for i, status := range []entity.Status{entity.StatusInvited, entity.StatusInvitedPending, entity.StatusInactive} {
		email := fmt.Sprintf("u%d@example.com", i)
		_, err := svc.Register(context.Background(), RegisterInput{
			Email: email, Username: fmt.Sprintf("u%d", i), Password: "thundergun0", Status: status,
		})
		require.NoError(t, err)

		_, err = svc.Check(context.Background(), email, "thundergun0")
		require.Error(t, err, string(status))
		assert.True(t, errors.Is(err, apperrors.ErrNoPermission))
		assert.Equal(t, "The user with that email address is inactive.", apperrors.MessageOf(err))
	}
}

func TestCheckWrongPasswordWalksLadder(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")
	sink.reset()

	expect := []struct {
		status entity.Status
		msg    string
	}{
		{entity.StatusWarn1, "Your password is incorrect. 4 attempts remaining!"},
		{entity.StatusWarn2, "Your password is incorrect. 3 attempts remaining!"},
		{entity.StatusWarn3, "Your password is incorrect. 2 attempts remaining!"},
		{entity.StatusWarn4, "Your password is incorrect. 1 attempt remaining!"},
		{entity.StatusLocked, "Your password is incorrect. 0 attempt remaining!"},
	}
	for _, step := range expect {
		_, err := svc.Check(context.Background(), "alice@example.com", "wrongwrong")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
		assert.Equal(t, step.msg, apperrors.MessageOf(err))
		assert.Equal(t, step.status, repo.stored(u.ID).Status)
	}

	// Once locked, even the correct password is rejected before comparison.
	_, err := svc.Check(context.Background(), "alice@example.com", "thundergun0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPermission))
	assert.Contains(t, apperrors.MessageOf(err), "Your account is locked")
}

func TestCheckEscalationWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	repo.updateStatusErr = errors.New("db down")
	_, err := svc.Check(context.Background(), "alice@example.com", "wrongwrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.Equal(t, "Your password is incorrect.", apperrors.MessageOf(err),
		"no remaining count when the escalation was not persisted")
	assert.Equal(t, entity.StatusActive, repo.stored(u.ID).Status)
}

func TestCheckSuccessResetsWarnLevel(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	for i := 0; i < 3; i++ {
		_, _ = svc.Check(context.Background(), "alice@example.com", "wrongwrong")
	}
	require.Equal(t, entity.StatusWarn3, repo.stored(u.ID).Status)
	sink.reset()

	got, err := svc.Check(context.Background(), "alice@example.com", "thundergun0")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, got.Status)
	require.NotNil(t, got.LastLogin)

	stored := repo.stored(u.ID)
	assert.Equal(t, entity.StatusActive, stored.Status)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, []string{EventActivated, EventEdited}, sink.names)
}

func TestCheckCaseInsensitiveEmail(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	got, err := svc.Check(context.Background(), "ALICE@EXAMPLE.COM", "thundergun0")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotNil(t, repo.stored(u.ID).LastLogin)
}

func TestCheckLoginBookkeepingFailure(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	mustRegister(t, svc, "alice@example.com", "thundergun0")
	sink.reset()

	repo.updateLoginErr = errors.New("db down")
	got, err := svc.Check(context.Background(), "alice@example.com", "thundergun0")
	require.NoError(t, err, "a bookkeeping failure must not fail a valid login")
	assert.Equal(t, entity.StatusActive, got.Status)
	assert.Empty(t, sink.names, "nothing was persisted, so nothing is emitted")
}

func TestChangePasswordSelf(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")
	sink.reset()

	err := svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      u.ID,
		OldPassword: "thundergun0",
		NewPassword: "newsecret1",
		Confirm:     "newsecret1",
	}, Self(u.ID))
	require.NoError(t, err)
	assert.True(t, svc.Hasher.Verify("newsecret1", repo.stored(u.ID).Password))
	assert.Equal(t, []string{EventActivatedEdited, EventEdited}, sink.names)
}

func TestChangePasswordValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	cases := []struct {
		name   string
		in     ChangePasswordInput
		caller Caller
		msg    string
	}{
		{
			"mismatched confirmation",
			ChangePasswordInput{UserID: u.ID, OldPassword: "thundergun0", NewPassword: "newsecret1", Confirm: "other"},
			Self(u.ID),
			"Your new passwords do not match",
		},
		{
			"missing old password",
			ChangePasswordInput{UserID: u.ID, NewPassword: "newsecret1", Confirm: "newsecret1"},
			Self(u.ID),
			"Password is required for this operation",
		},
		{
			"short new password",
			ChangePasswordInput{UserID: u.ID, OldPassword: "thundergun0", NewPassword: "short", Confirm: "short"},
			Self(u.ID),
			"Your password must be at least 8 characters long.",
		},
		{
			"wrong old password",
			ChangePasswordInput{UserID: u.ID, OldPassword: "nope-nope", NewPassword: "newsecret1", Confirm: "newsecret1"},
			Self(u.ID),
			"Your password is incorrect",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ChangePassword(context.Background(), tc.in, tc.caller)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			assert.Equal(t, tc.msg, apperrors.MessageOf(err))
		})
	}
	assert.True(t, svc.Hasher.Verify("thundergun0", repo.stored(u.ID).Password), "password unchanged")
}

func TestChangePasswordAdminSkipsOldPassword(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	err := svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      u.ID,
		NewPassword: "adminset1",
		Confirm:     "adminset1",
	}, Admin())
	require.NoError(t, err)
	assert.True(t, svc.Hasher.Verify("adminset1", repo.stored(u.ID).Password))
}

func TestChangePasswordOtherAccountDenied(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	alice := mustRegister(t, svc, "alice@example.com", "thundergun0")
	bob := mustRegister(t, svc, "bob@example.com", "thundergun0")

	err := svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      alice.ID,
		OldPassword: "thundergun0",
		NewPassword: "newsecret1",
		Confirm:     "newsecret1",
	}, Self(bob.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPermission))
}

func resetLinkToken(t *testing.T, link string) string {
	t.Helper()
	i := strings.Index(link, "?token=")
	require.GreaterOrEqual(t, i, 0)
	return link[i+len("?token="):]
}

func TestPasswordResetFlow(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	// Lock the account with failed logins; reset must unlock it.
	for i := 0; i < 5; i++ {
		_, _ = svc.Check(context.Background(), "alice@example.com", "wrongwrong")
	}
	require.Equal(t, entity.StatusLocked, repo.stored(u.ID).Status)

	link, err := svc.RequestPasswordReset(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, svc.ResetURL+"?token="))

	sink.reset()
	got, err := svc.ResetPassword(context.Background(), resetLinkToken(t, link), "newsecret1", "newsecret1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, got.Status)

	stored := repo.stored(u.ID)
	assert.Equal(t, entity.StatusActive, stored.Status)
	assert.True(t, svc.Hasher.Verify("newsecret1", stored.Password))
	assert.Equal(t, []string{EventActivated, EventEdited}, sink.names)

	// The credential change invalidates the consumed token.
	_, err = svc.ResetPassword(context.Background(), resetLinkToken(t, link), "anothersecret1", "anothersecret1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.Check(context.Background(), "alice@example.com", "newsecret1")
	require.NoError(t, err)
}

func TestResetPasswordValidatesBeforeToken(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mustRegister(t, svc, "alice@example.com", "thundergun0")

	_, err := svc.ResetPassword(context.Background(), "garbage-token", "short", "short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation),
		"password policy runs before the token is decoded")

	_, err = svc.ResetPassword(context.Background(), "garbage-token", "newsecret1", "different1")
	require.Error(t, err)
	assert.Equal(t, "Your new passwords do not match", apperrors.MessageOf(err))
}

func TestResetPasswordDeletedAccount(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	link, err := svc.RequestPasswordReset(context.Background(), "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), u.ID, Admin()))

	// The hash lookup during token validation is what notices the account
	// is gone; the HTTP layer folds the NotFound into a generic invalid
	// token response either way.
	_, err = svc.ResetPassword(context.Background(), resetLinkToken(t, link), "newsecret1", "newsecret1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, "There is no user with that email address.", apperrors.MessageOf(err))
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	_, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDeleteEmitsLifecycleEvents(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")
	sink.reset()

	require.NoError(t, svc.Delete(context.Background(), u.ID, Admin()))
	assert.Equal(t, []string{EventDeactivated, EventDeleted}, sink.names)
	assert.Empty(t, repo.rows)
}

func TestDeleteInvitedSkipsDeactivated(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Username: "bob", Password: "thundergun0", Status: entity.StatusInvited,
	})
	require.NoError(t, err)
	sink.reset()

	require.NoError(t, svc.Delete(context.Background(), u.ID, Admin()))
	assert.Equal(t, []string{EventDeleted}, sink.names)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")

	err := svc.Delete(context.Background(), u.ID, Self(u.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNoPermission))
	assert.Len(t, repo.rows, 1)
}

func TestListFilters(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	mustRegister(t, svc, "alice@example.com", "thundergun0")
	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "bob@example.com", Username: "bob", Password: "thundergun0", Status: entity.StatusInvited,
	})
	require.NoError(t, err)

	active, err := svc.List(context.Background(), repository.FilterActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	invited, err := svc.List(context.Background(), repository.FilterInvited)
	require.NoError(t, err)
	assert.Len(t, invited, 1)

	all, err := svc.List(context.Background(), repository.FilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Empty filter defaults to active.
	def, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, def, 1)

	_, err = svc.List(context.Background(), "bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestUpdateProfile(t *testing.T) {
	repo := newFakeRepo()
	svc, sink := newTestService(repo)
	u := mustRegister(t, svc, "alice@example.com", "thundergun0")
	sink.reset()

	got, err := svc.UpdateProfile(context.Background(), u.ID, UpdateProfileInput{
		FirstName: "Alice",
		LastName:  "Bloggs",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FirstName)
	assert.Equal(t, "alice", got.Username, "empty input fields are left untouched")
	assert.Equal(t, []string{EventActivatedEdited, EventEdited}, sink.names)
}
