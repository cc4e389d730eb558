package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/mail"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/password"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
	"github.com/Skotchmaster/auth_service/pkg/logging"
)

type Mailer interface {
	Dispatch(ctx context.Context, msg mail.Message)
}

type AuthService struct {
	Repo     repo.UserStore
	Sessions *session.Signer
	Mailer   Mailer
	Links    mail.Links
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type RegisterInput struct {
	Name     *string
	Email    string
	Password string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Register creates an unverified user and emails the verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (u *models.User, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")
	defer func() { s.Metrics.Observe("register", Kind(err)) }()

	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if !password.ValidEmail(in.Email) {
		return nil, invalidInput(password.MsgInvalidMail)
	}
	email := password.NormalizeEmail(in.Email)

	if _, err := s.Repo.FindByEmail(ctx, email); err == nil {
		l.Warn("register_error", "status", 409, "reason", "email already in use")
		return nil, ErrConflict
	} else if !errors.Is(err, repo.ErrNotFound) {
		l.Error("register_error", "status", 500, "error", err)
		return nil, internalErr("FindByEmail", err)
	}

	if st := password.ValidateStrength(in.Password); !st.Valid {
		return nil, invalidInput(st.First())
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, internalErr("Hash", err)
	}

	grant, err := tokens.Issue(tokens.Verification, s.now())
	if err != nil {
		return nil, internalErr("tokens.Issue", err)
	}

	u = &models.User{
		Email:                   email,
		Name:                    name,
		PasswordHash:            hash,
		Role:                    models.RoleUser,
		VerificationToken:       &grant.Hash,
		VerificationTokenExpiry: &grant.ExpiresAt,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			l.Warn("register_error", "status", 409, "reason", "email already in use")
			return nil, ErrConflict
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, internalErr("Create", err)
	}

	s.sendVerification(ctx, u.Email, grant.Token, false)
	s.publish(ctx, events.UserRegistered, u)
	l.Info("user_registered", "user_id", u.ID)
	return u, nil
}

// Login never tells an unknown email apart from a wrong password.
func (s *AuthService) Login(ctx context.Context, email, pw string) (res *LoginResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")
	defer func() { s.Metrics.Observe("login", Kind(err)) }()

	if pw == "" {
		return nil, invalidInput(MsgPasswordRequired)
	}
	if !password.ValidEmail(email) {
		return nil, invalidInput(password.MsgInvalidMail)
	}

	u, err := s.Repo.FindByEmail(ctx, password.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			password.Check(password.DummyHash, pw)
			l.Warn("login_failed", "status", 401)
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, internalErr("FindByEmail", err)
	}
	if !password.Check(u.PasswordHash, pw) {
		l.Warn("login_failed", "status", 401, "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.IsVerified() {
		l.Warn("login_failed", "status", 403, "user_id", u.ID, "reason", "email not verified")
		return nil, ErrEmailNotVerified
	}

	tok, claims, err := s.Sessions.Issue(u)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, internalErr("Sessions.Issue", err)
	}

	s.publish(ctx, events.UserLoggedIn, u)
	l.Info("login_successful", "user_id", u.ID)
	return &LoginResult{Token: tok, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// ChangePassword bumps the session version, so every outstanding session of
// the user stops being trusted at its next revalidation.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)
	defer func() { s.Metrics.Observe("change_password", Kind(err)) }()

	if current == "" {
		return invalidInput(MsgCurrentPasswordRequired)
	}
	if st := password.ValidateStrength(next); !st.Valid {
		return invalidInput(st.First())
	}

	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return internalErr("FindByID", err)
	}
	if !password.Check(u.PasswordHash, current) {
		l.Warn("change_password_failed", "status", 401, "reason", "current password is incorrect")
		return ErrInvalidCredentials
	}
	if password.Check(u.PasswordHash, next) {
		return ErrSamePassword
	}

	hash, err := password.Hash(next)
	if err != nil {
		return internalErr("Hash", err)
	}
	if _, err := s.Repo.CompareAndUpdate(ctx, u.ID,
		map[string]any{"password_hash": u.PasswordHash},
		map[string]any{
			"password_hash":   hash,
			"session_version": gorm.Expr("session_version + 1"),
		}); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return ErrInvalidCredentials
		}
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		l.Error("change_password_failed", "status", 500, "error", err)
		return internalErr("Update", err)
	}

	s.publish(ctx, events.PasswordChanged, u)
	l.Info("password_changed")
	return nil
}

// ForgotPassword returns nil whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")
	defer func() { s.Metrics.Observe("forgot_password", Kind(err)) }()

	if !password.ValidEmail(email) {
		return invalidInput(password.MsgInvalidMail)
	}
	email = password.NormalizeEmail(email)

	u, err := s.Repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Info("reset_requested_unknown_email")
			return nil
		}
		return internalErr("FindByEmail", err)
	}

	grant, err := s.issue(ctx, u, tokens.Reset)
	if err != nil {
		// failures past the lookup stay invisible to keep both branches identical
		l.Error("reset_issue_failed", "user_id", u.ID, "error", err)
		return nil
	}

	msg, err := mail.ResetEmail(u.Email, s.Links.Reset(grant.Token, u.Email))
	if err != nil {
		l.Error("reset_mail_render_failed", "error", err)
		return nil
	}
	s.Mailer.Dispatch(ctx, msg)
	l.Info("reset_requested", "user_id", u.ID)
	return nil
}

// ResetPassword consumes the reset token. An unknown email is reported as a
// token mismatch.
func (s *AuthService) ResetPassword(ctx context.Context, token, email, next string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")
	defer func() { s.Metrics.Observe("reset_password", Kind(err)) }()

	if token == "" {
		return invalidInput(MsgTokenRequired)
	}
	if !password.ValidEmail(email) {
		return invalidInput(password.MsgInvalidMail)
	}
	if st := password.ValidateStrength(next); !st.Valid {
		return invalidInput(st.First())
	}

	u, err := s.lookupForToken(ctx, email)
	if err != nil {
		return err
	}
	if err := s.checkToken(u, tokens.Reset, token); err != nil {
		l.Warn("reset_failed", "user_id", u.ID, "reason", Kind(err))
		return err
	}
	if password.Check(u.PasswordHash, next) {
		return ErrSamePassword
	}

	hash, err := password.Hash(next)
	if err != nil {
		return internalErr("Hash", err)
	}
	fields := tokens.Cleared(tokens.Reset)
	fields["password_hash"] = hash
	fields["session_version"] = gorm.Expr("session_version + 1")

	if _, err := s.Repo.CompareAndUpdate(ctx, u.ID, tokens.Guard(tokens.Reset, u), fields); err != nil {
		if errors.Is(err, repo.ErrStale) || errors.Is(err, repo.ErrNotFound) {
			return ErrTokenMismatch
		}
		l.Error("reset_failed", "status", 500, "error", err)
		return internalErr("CompareAndUpdate", err)
	}

	s.publish(ctx, events.PasswordReset, u)
	l.Info("password_reset", "user_id", u.ID)
	return nil
}

func (s *AuthService) DeleteAccount(ctx context.Context, userID uuid.UUID, pw, confirm string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.delete_account", "user_id", userID)
	defer func() { s.Metrics.Observe("delete_account", Kind(err)) }()

	if pw == "" {
		return invalidInput(MsgPasswordRequired)
	}
	if confirm != DeleteConfirmation {
		return invalidInput(MsgConfirmDelete)
	}

	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return internalErr("FindByID", err)
	}
	if !password.Check(u.PasswordHash, pw) {
		l.Warn("delete_account_failed", "status", 401, "reason", "invalid password")
		return ErrInvalidCredentials
	}

	if err := s.Repo.Delete(ctx, u.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		l.Error("delete_account_failed", "status", 500, "error", err)
		return internalErr("Delete", err)
	}

	s.publish(ctx, events.AccountDeleted, u)
	l.Info("account_deleted")
	return nil
}

// ResendVerification returns nil for unknown and already verified emails.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.resend_verification")
	defer func() { s.Metrics.Observe("resend_verification", Kind(err)) }()

	if !password.ValidEmail(email) {
		return invalidInput(password.MsgInvalidMail)
	}

	u, err := s.Repo.FindByEmail(ctx, password.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return internalErr("FindByEmail", err)
	}
	if u.IsVerified() {
		return nil
	}

	grant, err := s.issue(ctx, u, tokens.Verification)
	if err != nil {
		l.Error("verification_issue_failed", "user_id", u.ID, "error", err)
		return nil
	}
	s.sendVerification(ctx, u.Email, grant.Token, true)
	l.Info("verification_resent", "user_id", u.ID)
	return nil
}

// VerifyEmail consumes the verification token and stamps EmailVerified once.
// A consumed link is cleared, so replaying it reports a token mismatch.
func (s *AuthService) VerifyEmail(ctx context.Context, token, email string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.verify_email")
	defer func() { s.Metrics.Observe("verify_email", Kind(err)) }()

	if strings.TrimSpace(token) == "" || strings.TrimSpace(email) == "" {
		return invalidInput(MsgMissingParams)
	}

	u, err := s.lookupForToken(ctx, email)
	if err != nil {
		return err
	}
	// the token goes first: without the link a verified account must look
	// the same as an unknown one
	if err := s.checkToken(u, tokens.Verification, token); err != nil {
		l.Warn("verify_failed", "user_id", u.ID, "reason", Kind(err))
		return err
	}
	if u.IsVerified() {
		return ErrAlreadyVerified
	}

	fields := tokens.Cleared(tokens.Verification)
	fields["email_verified"] = s.now()
	guard := tokens.Guard(tokens.Verification, u)
	guard["email_verified"] = nil

	if _, err := s.Repo.CompareAndUpdate(ctx, u.ID, guard, fields); err != nil {
		if errors.Is(err, repo.ErrStale) {
			// lost a race with another consumption of the same link
			if cur, ferr := s.Repo.FindByID(ctx, u.ID); ferr == nil && cur.IsVerified() {
				return ErrAlreadyVerified
			}
			return ErrTokenMismatch
		}
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTokenMismatch
		}
		return internalErr("CompareAndUpdate", err)
	}

	s.publish(ctx, events.EmailVerified, u)
	l.Info("email_verified", "user_id", u.ID)
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalErr("FindByID", err)
	}
	return u, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, name *string) (*models.User, error) {
	clean, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if clean == nil {
		return s.GetProfile(ctx, userID)
	}
	u, err := s.Repo.Update(ctx, userID, map[string]any{"name": *clean})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalErr("Update", err)
	}
	return u, nil
}

// SeedAdmin creates or promotes a verified admin account.
func (s *AuthService) SeedAdmin(ctx context.Context, email, name, pw string) (*models.User, error) {
	if !password.ValidEmail(email) {
		return nil, invalidInput(password.MsgInvalidMail)
	}
	if st := password.ValidateStrength(pw); !st.Valid {
		return nil, invalidInput(st.First())
	}
	email = password.NormalizeEmail(email)
	hash, err := password.Hash(pw)
	if err != nil {
		return nil, internalErr("Hash", err)
	}

	now := s.now()
	existing, err := s.Repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		fields := map[string]any{"password_hash": hash}
		if !existing.IsAdmin() {
			fields["role"] = models.RoleAdmin
		}
		if !existing.IsVerified() {
			fields["email_verified"] = now
		}
		u, err := s.Repo.Update(ctx, existing.ID, fields)
		if err != nil {
			return nil, internalErr("Update", err)
		}
		return u, nil
	case errors.Is(err, repo.ErrNotFound):
		u := &models.User{
			Email:         email,
			PasswordHash:  hash,
			Role:          models.RoleAdmin,
			EmailVerified: &now,
		}
		if name != "" {
			u.Name = &name
		}
		if err := s.Repo.Create(ctx, u); err != nil {
			return nil, internalErr("Create", err)
		}
		return u, nil
	default:
		return nil, internalErr("FindByEmail", err)
	}
}

func (s *AuthService) lookupForToken(ctx context.Context, email string) (*models.User, error) {
	u, err := s.Repo.FindByEmail(ctx, password.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenMismatch
		}
		return nil, internalErr("FindByEmail", err)
	}
	return u, nil
}

func (s *AuthService) checkToken(u *models.User, track tokens.Track, token string) error {
	switch err := tokens.Check(u, track, token, s.now()); {
	case err == nil:
		return nil
	case errors.Is(err, tokens.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMismatch
	}
}

// issue moves track to PENDING with a fresh token, overwriting any previous one.
func (s *AuthService) issue(ctx context.Context, u *models.User, track tokens.Track) (tokens.Grant, error) {
	grant, err := tokens.Issue(track, s.now())
	if err != nil {
		return tokens.Grant{}, err
	}
	if _, err := s.Repo.Update(ctx, u.ID, grant.Fields()); err != nil {
		return tokens.Grant{}, err
	}
	return grant, nil
}

func (s *AuthService) sendVerification(ctx context.Context, email, token string, resend bool) {
	msg, err := mail.VerificationEmail(email, s.Links.Verify(token, email), resend)
	if err != nil {
		logging.FromContext(ctx).Error("verification_mail_render_failed", "error", err)
		return
	}
	s.Mailer.Dispatch(ctx, msg)
}

// publish is called on the request path; Events is expected to enqueue, as
// events.Async does, rather than talk to the broker.
func (s *AuthService) publish(ctx context.Context, typ string, u *models.User) {
	if s.Events == nil {
		return
	}
	ev := events.UserEvent{Type: typ, UserID: u.ID.String(), Email: u.Email, At: s.now()}
	if err := s.Events.PublishEvent(ctx, events.TopicUserEvents, u.ID.String(), ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", typ, "error", err)
	}
}

func validateName(name *string) (*string, error) {
	if name == nil {
		return nil, nil
	}
	n := strings.TrimSpace(*name)
	switch c := utf8.RuneCountInString(n); {
	case c < 2:
		return nil, invalidInput(MsgNameTooShort)
	case c > 100:
		return nil, invalidInput(MsgNameTooLong)
	}
	return &n, nil
}
