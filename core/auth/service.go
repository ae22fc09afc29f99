package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"crates/core/mail"
	"crates/logger"
	"crates/model"
	"crates/repository"
)

// Password length bounds for registration and password reset. bcrypt only
// hashes the first 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Errors returned by Service. Their text is safe to show to clients.
var (
	ErrFieldsRequired       = errors.New("All fields are required")
	ErrCredentialsRequired  = errors.New("Email and password are required")
	ErrEmailRequired        = errors.New("Email is required")
	ErrPasswordTooShort     = errors.New("Password must be at least 8 characters long")
	ErrPasswordTooLong      = errors.New("Password must be at most 72 bytes long")
	ErrInvalidEmail         = errors.New("Please enter a valid email address")
	ErrEmailTaken           = errors.New("User with this email already exists")
	ErrInvalidCredentials   = errors.New("Invalid email or password")
	ErrEmailNotVerified     = errors.New("Please verify your email address before logging in")
	ErrTokenRequired        = errors.New("Verification token is required")
	ErrVerificationExpired  = errors.New("Verification token has expired")
	ErrInvalidVerification  = errors.New("Invalid verification token")
	ErrNoVerificationToken  = errors.New("No verification token found for user")
	ErrVerificationMismatch = errors.New("Verification token does not match")
	ErrAlreadyVerified      = errors.New("User is already verified")
	ErrResetFieldsRequired  = errors.New("Token and new password are required")
	ErrInvalidResetToken    = errors.New("Invalid or expired reset token")
	ErrResetExpired         = errors.New("Reset token has expired")
	ErrUserNotFound         = errors.New("User not found")
	ErrEmailDelivery        = errors.New("Failed to send verification email")
)

// Service implements registration, login, email verification and
// password reset.
type Service struct {
	users  repository.UserRepository
	tokens *TokenIssuer
	mailer mail.Mailer
	now    func() time.Time
	cost   int
}

func NewService(users repository.UserRepository, tokens *TokenIssuer, mailer mail.Mailer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		now:    time.Now,
		cost:   PasswordCost,
	}
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and mails a verification link.
// A failed email does not fail the registration.
func (s *Service) Register(ctx context.Context, email, password, name string) (int64, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return 0, ErrFieldsRequired
	}
	if len(password) < MinPasswordLength {
		return 0, ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return 0, ErrPasswordTooLong
	}
	if !emailPattern.MatchString(email) {
		return 0, ErrInvalidEmail
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrEmailTaken
	}

	hash, err := hashPasswordCost(password, s.cost)
	if err != nil {
		return 0, err
	}

	user := &model.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}

	token, err := s.storeVerificationToken(ctx, user)
	if err != nil {
		return 0, err
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		logger.Warn("[Register] verification email failed", logger.Int64("userId", user.ID), logger.ErrorField(err))
	}

	logger.Info("[Register] user registered", logger.Int64("userId", user.ID))
	return user.ID, nil
}

func (s *Service) storeVerificationToken(ctx context.Context, user *model.User) (string, error) {
	token, _, err := s.tokens.Issue(PurposeVerify, user.ID, user.Email, "")
	if err != nil {
		return "", err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Login checks verification before the password, so an unverified account
// always gets ErrEmailNotVerified.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, ErrCredentialsRequired
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return "", nil, ErrEmailNotVerified
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(PurposeSession, user.ID, user.Email, user.Name)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// VerifyEmail marks the account verified when token is the one last issued.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrTokenRequired
	}

	claims, err := s.tokens.Parse(token, PurposeVerify)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return ErrVerificationExpired
		}
		return ErrInvalidVerification
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if user.VerificationToken == nil {
		return ErrNoVerificationToken
	}
	if *user.VerificationToken != token {
		return ErrVerificationMismatch
	}

	ok, err := s.users.MarkVerified(ctx, user.ID, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVerificationMismatch
	}
	return nil
}

// ForgotPassword stores a reset token and mails it when the account exists.
// Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	token, expires, err := s.tokens.Issue(PurposeReset, user.ID, "", "")
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, expires.UTC()); err != nil {
		return err
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		logger.Warn("[ForgotPassword] reset email failed", logger.Int64("userId", user.ID), logger.ErrorField(err))
	}
	return nil
}

// ResetPassword replaces the password. The reset token is single use.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return ErrResetFieldsRequired
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	claims, err := s.tokens.Parse(token, PurposeReset)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return ErrResetExpired
		}
		return ErrInvalidResetToken
	}

	hash, err := hashPasswordCost(password, s.cost)
	if err != nil {
		return err
	}

	ok, err := s.users.ConsumeResetToken(ctx, claims.UserID, token, hash, s.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidResetToken
	}
	logger.Info("[ResetPassword] password reset", logger.Int64("userId", claims.UserID))
	return nil
}

// ResendVerification issues a fresh verification token, replacing the old
// one. Unknown emails succeed silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	token, err := s.storeVerificationToken(ctx, user)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

// CurrentUser loads the account behind a session.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Authenticate validates a bearer session token.
func (s *Service) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token, PurposeSession)
}
