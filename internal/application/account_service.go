// Package application implements the account service: registration,
// authentication with warn-level throttling, password changes, and the
// stateless password-reset flow.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/statlerhq/accounts/internal/domain/entity"
	"github.com/statlerhq/accounts/internal/domain/repository"
	"github.com/statlerhq/accounts/internal/resettoken"
	"github.com/statlerhq/accounts/pkg/apperrors"
	"github.com/statlerhq/accounts/pkg/helpers"
	"github.com/statlerhq/accounts/pkg/mailer"
)

// Service orchestrates the account lifecycle. All persistence goes through
// Repo; lifecycle events go through Events after a successful write, never
// before.
type Service struct {
	Repo   repository.UserRepository
	Hasher *helpers.PasswordHasher
	Tokens *resettoken.Codec
	Events EventSink
	Mail   *helpers.RabbitPublisher
	Logger *logrus.Logger

	ES           *elasticsearch.Client
	ESUsersIndex string

	ResetURL      string
	ResetTokenTTL time.Duration
	MailEnabled   bool

	now func() time.Time
}

func NewService(repo repository.UserRepository, hasher *helpers.PasswordHasher, tokens *resettoken.Codec, events EventSink, logger *logrus.Logger) *Service {
	return &Service{
		Repo:   repo,
		Hasher: hasher,
		Tokens: tokens,
		Events: events,
		Logger: logger,
		now:    time.Now,
	}
}

// HashSourceFor adapts a user repository into the codec's password-hash
// lookup. Unknown emails surface as NotFound, matching the login flow.
func HashSourceFor(repo repository.UserRepository) resettoken.HashSource {
	return repoHashSource{repo: repo}
}

type repoHashSource struct {
	repo repository.UserRepository
}

func (s repoHashSource) PasswordHashByEmail(ctx context.Context, email string) (string, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperrors.NotFound("There is no user with that email address.")
	}
	return u.Password, nil
}

// RegisterInput carries the attributes for a new account. Status is
// optional; an empty status registers an active user, an invited-class
// status registers a pending invite.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
	Status    entity.Status
}

// Register validates the password policy, hashes the credential, persists
// the account, and emits added (plus activated for active-class statuses).
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	if err := helpers.CheckPasswordLength(in.Password); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = entity.StatusActive
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid account status")
	}

	if existing, err := s.Repo.GetByEmail(ctx, in.Email); err != nil {
		return nil, apperrors.Internal(err)
	} else if existing != nil {
		return nil, apperrors.Validation("That email address is already in use.")
	}
	if existing, err := s.Repo.GetByUsername(ctx, in.Username); err != nil {
		return nil, apperrors.Internal(err)
	} else if existing != nil {
		return nil, apperrors.Validation("That username is already in use.")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{
		UUID:      uuid.NewString(),
		Email:     in.Email,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Role:      entity.RoleUser,
		Status:    status,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.emit(ctx, EventAdded, u)
	if u.Status.IsActiveClass() {
		s.emit(ctx, EventActivated, u)
	}
	s.indexUser(ctx, u)
	s.queueWelcomeEmail(ctx, u)
	return u, nil
}

// Check authenticates an email/password pair. Failed comparisons escalate
// the account's warn level; a success resets the status to active and
// records last_login. Bookkeeping failures on the success path are logged
// and swallowed so they never mask a valid login.
func (s *Service) Check(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if u == nil {
		return nil, apperrors.NotFound("There is no user with that email address.")
	}

	if u.Status.IsInvitedClass() || u.Status == entity.StatusInactive {
		return nil, apperrors.NoPermission("The user with that email address is inactive.")
	}
	if u.Status == entity.StatusLocked {
		return nil, apperrors.NoPermission(`Your account is locked. Please reset your password to log in again by clicking the "Forgotten password?" link!`)
	}

	if !s.Hasher.Verify(password, u.Password) {
		return nil, s.recordFailedLogin(ctx, u)
	}

	prev := u.Status
	now := s.now()
	u.Status = entity.StatusActive
	u.LastLogin = &now
	if err := s.Repo.UpdateLogin(ctx, u); err != nil {
		// The user authenticated correctly; a failed bookkeeping write must
		// not turn that into a login failure.
		s.logError(err, "login bookkeeping write failed", u.ID)
		return u, nil
	}
	for _, name := range updateEvents(prev, u.Status) {
		s.emit(ctx, name, u)
	}
	return u, nil
}

// recordFailedLogin escalates the warn level by one step and returns the
// UnauthorizedError for the caller. The status write bypasses schema
// validation; if it fails, the escalation is abandoned and the error text
// simply omits the remaining-attempts hint.
func (s *Service) recordFailedLogin(ctx context.Context, u *entity.User) error {
	next, remaining, err := u.Status.Escalate()
	if err != nil {
		s.logError(err, "warn escalation failed", u.ID)
		return apperrors.Unauthorized("Your password is incorrect.")
	}
	prev := u.Status
	if err := s.Repo.UpdateStatus(ctx, u.ID, next); err != nil {
		s.logError(err, "warn escalation write failed", u.ID)
		return apperrors.Unauthorized("Your password is incorrect.")
	}
	u.Status = next
	for _, name := range updateEvents(prev, next) {
		s.emit(ctx, name, u)
	}

	plural := ""
	if remaining > 1 {
		plural = "s"
	}
	return apperrors.Newf(apperrors.KindUnauthorized,
		"Your password is incorrect. %d attempt%s remaining!", remaining, plural)
}

// ChangePasswordInput names the parameters of a password change. Confirm
// repeats the new password; OldPassword is required when the caller is the
// account owner.
type ChangePasswordInput struct {
	UserID      int64
	OldPassword string
	NewPassword string
	Confirm     string
}

// ChangePassword updates an account's credential. Self-service callers must
// prove knowledge of the old password; administrators may skip it.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput, caller Caller) error {
	if in.NewPassword != in.Confirm {
		return apperrors.Validation("Your new passwords do not match")
	}
	if caller.IsSelf(in.UserID) && in.OldPassword == "" {
		return apperrors.Validation("Password is required for this operation")
	}
	if err := helpers.CheckPasswordLength(in.NewPassword); err != nil {
		return err
	}

	u, err := s.Repo.GetByID(ctx, in.UserID)
	if err != nil {
		return err
	}

	if !caller.IsAdmin() {
		if !caller.IsSelf(in.UserID) {
			return apperrors.NoPermission("You do not have permission to change this password")
		}
		if !s.Hasher.Verify(in.OldPassword, u.Password) {
			return apperrors.Validation("Your password is incorrect")
		}
	}

	hash, err := s.Hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, u.ID, hash, ""); err != nil {
		return apperrors.Internal(err)
	}
	for _, name := range updateEvents(u.Status, u.Status) {
		s.emit(ctx, name, u)
	}
	return nil
}

// ResetPassword validates a reset token from the HTTP boundary (URL-safe
// alphabet), recovers the email, and writes the new hash together with
// status=active in a single update. The confirmation and length checks run
// before the token or the store is touched.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirm string) (*entity.User, error) {
	if newPassword != confirm {
		return nil, apperrors.Validation("Your new passwords do not match")
	}
	if err := helpers.CheckPasswordLength(newPassword); err != nil {
		return nil, err
	}

	inner, err := resettoken.DecodeURLSafe(token)
	if err != nil {
		return nil, err
	}
	email, err := s.Tokens.Validate(ctx, inner)
	if err != nil {
		return nil, err
	}

	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if u == nil {
		return nil, apperrors.NotFound("User not found")
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}
	prev := u.Status
	if err := s.Repo.UpdatePassword(ctx, u.ID, hash, entity.StatusActive); err != nil {
		return nil, apperrors.Internal(err)
	}
	u.Status = entity.StatusActive
	u.Password = hash
	for _, name := range updateEvents(prev, u.Status) {
		s.emit(ctx, name, u)
	}
	return u, nil
}

// RequestPasswordReset issues a reset token for the account and queues the
// reset email. The returned link embeds the URL-safe token. Callers decide
// whether a NotFound is surfaced; the public HTTP endpoint does not.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if u == nil {
		return "", apperrors.NotFound("There is no user with that email address.")
	}

	expiresAt := s.now().Add(s.ResetTokenTTL)
	token, err := s.Tokens.Generate(ctx, u.Email, expiresAt.UnixMilli())
	if err != nil {
		return "", err
	}
	link := s.ResetURL + "?token=" + resettoken.EncodeURLSafe(token)

	if s.Mail != nil && s.MailEnabled {
		job := mailer.EmailJob{
			To:       u.Email,
			Template: mailer.TemplateResetPassword,
			Data: map[string]any{
				"Name":      displayName(u),
				"Email":     u.Email,
				"ResetURL":  link,
				"ExpiresAt": expiresAt.UTC().Format(time.RFC1123),
			},
		}
		if err := s.Mail.PublishJSON(ctx, job); err != nil {
			s.logError(err, "reset email enqueue failed", u.ID)
		}
	}
	return link, nil
}

// GetProfile returns the account by id.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*entity.User, error) {
	return s.Repo.GetByID(ctx, userID)
}

// UpdateProfileInput carries the editable profile fields; empty fields are
// left untouched.
type UpdateProfileInput struct {
	Username  string
	FirstName string
	LastName  string
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Username != "" {
		u.Username = in.Username
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, apperrors.Internal(err)
	}
	for _, name := range updateEvents(u.Status, u.Status) {
		s.emit(ctx, name, u)
	}
	s.indexUser(ctx, u)
	return u, nil
}

// List returns accounts filtered by status class.
func (s *Service) List(ctx context.Context, filter repository.StatusFilter) ([]*entity.User, error) {
	switch filter {
	case repository.FilterActive, repository.FilterInvited, repository.FilterAll:
	case "":
		filter = repository.FilterActive
	default:
		return nil, apperrors.Validation("invalid status filter")
	}
	users, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

// Delete removes an account. Deletion of a previously active account emits
// deactivated before deleted.
func (s *Service) Delete(ctx context.Context, userID int64, caller Caller) error {
	if !caller.IsAdmin() {
		return apperrors.NoPermission("You do not have permission to delete users")
	}
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID); err != nil {
		return apperrors.Internal(err)
	}
	if u.Status.IsActiveClass() {
		s.emit(ctx, EventDeactivated, u)
	}
	s.emit(ctx, EventDeleted, u)
	s.deindexUser(ctx, u)
	return nil
}

func (s *Service) emit(ctx context.Context, name string, u *entity.User) {
	if s.Events != nil {
		s.Events.Emit(ctx, name, u)
	}
}

func (s *Service) queueWelcomeEmail(ctx context.Context, u *entity.User) {
	if s.Mail == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateWelcome,
		Data: map[string]any{
			"Name":  displayName(u),
			"Email": u.Email,
		},
	}
	if err := s.Mail.PublishJSON(ctx, job); err != nil {
		s.logError(err, "welcome email enqueue failed", u.ID)
	}
}

func (s *Service) logError(err error, msg string, userID int64) {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error(msg)
	}
}

func displayName(u *entity.User) string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}
