package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crates/db"
	"crates/repository"

	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	verify []string
	reset  []string
	fail   error
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, _ string, token string) error {
	if m.fail != nil {
		return m.fail
	}
	m.verify = append(m.verify, token)
	return nil
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, _ string, token string) error {
	if m.fail != nil {
		return m.fail
	}
	m.reset = append(m.reset, token)
	return nil
}

func (m *fakeMailer) lastVerify(t *testing.T) string {
	t.Helper()
	if len(m.verify) == 0 {
		t.Fatal("no verification email sent")
	}
	return m.verify[len(m.verify)-1]
}

func newTestService(t *testing.T) (*Service, *fakeMailer) {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", false)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	mailer := &fakeMailer{}
	svc := NewService(repository.NewUserRepository(gdb), NewTokenIssuer("test-secret"), mailer)
	svc.cost = bcrypt.MinCost
	return svc, mailer
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name                  string
		email, password, user string
		want                  error
	}{
		{"Missing Name", "a@example.com", "password1", "", ErrFieldsRequired},
		{"Missing Email", "", "password1", "Ann", ErrFieldsRequired},
		{"Short Password", "a@example.com", "short", "Ann", ErrPasswordTooShort},
		{"Long Password", "a@example.com", strings.Repeat("a", MaxPasswordLength+1), "Ann", ErrPasswordTooLong},
		{"Bad Email", "not-an-email", "password1", "Ann", ErrInvalidEmail},
		{"Email With Space", "a b@example.com", "password1", "Ann", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.Register(context.Background(), tt.email, tt.password, tt.user)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("Duplicate Email Is Case Insensitive", func(t *testing.T) {
		svc, _ := newTestService(t)
		if _, err := svc.Register(ctx, "Ann@Example.com", "password1", "Ann"); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Register(ctx, "ann@example.com", "password2", "Ann"); !errors.Is(err, ErrEmailTaken) {
			t.Errorf("expected ErrEmailTaken, got %v", err)
		}
	})

	t.Run("Unverified Login Fails Regardless Of Password", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, _ = svc.Register(ctx, "ann@example.com", "password1", "Ann")

		for _, pw := range []string{"password1", "wrong-password"} {
			if _, _, err := svc.Login(ctx, "ann@example.com", pw); !errors.Is(err, ErrEmailNotVerified) {
				t.Errorf("password %q: expected ErrEmailNotVerified, got %v", pw, err)
			}
		}
	})

	t.Run("Verify Then Login", func(t *testing.T) {
		svc, mailer := newTestService(t)
		id, err := svc.Register(ctx, "ann@example.com", "password1", "Ann")
		if err != nil {
			t.Fatal(err)
		}

		if err := svc.VerifyEmail(ctx, mailer.lastVerify(t)); err != nil {
			t.Fatalf("expected verification to succeed, got %v", err)
		}
		if err := svc.VerifyEmail(ctx, mailer.lastVerify(t)); !errors.Is(err, ErrAlreadyVerified) {
			t.Errorf("expected ErrAlreadyVerified, got %v", err)
		}

		if _, _, err := svc.Login(ctx, "ann@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}

		token, user, err := svc.Login(ctx, "ANN@example.com", "password1")
		if err != nil {
			t.Fatalf("expected login to succeed, got %v", err)
		}
		if user.ID != id {
			t.Errorf("expected user %d, got %d", id, user.ID)
		}

		claims, err := svc.Authenticate(token)
		if err != nil {
			t.Fatalf("expected valid session token, got %v", err)
		}
		if claims.UserID != id || claims.Email != "ann@example.com" || claims.Name != "Ann" {
			t.Errorf("unexpected claims %+v", claims)
		}
	})

	t.Run("Unknown Email", func(t *testing.T) {
		svc, _ := newTestService(t)
		if _, _, err := svc.Login(ctx, "nobody@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Registration Survives Mail Failure", func(t *testing.T) {
		svc, mailer := newTestService(t)
		mailer.fail = errors.New("smtp down")
		if _, err := svc.Register(ctx, "ann@example.com", "password1", "Ann"); err != nil {
			t.Errorf("expected registration to succeed, got %v", err)
		}
	})
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("Resend Replaces Token", func(t *testing.T) {
		svc, mailer := newTestService(t)
		_, _ = svc.Register(ctx, "ann@example.com", "password1", "Ann")
		old := mailer.lastVerify(t)

		if err := svc.ResendVerification(ctx, "ann@example.com"); err != nil {
			t.Fatal(err)
		}
		if err := svc.VerifyEmail(ctx, old); !errors.Is(err, ErrVerificationMismatch) {
			t.Errorf("expected old token rejected, got %v", err)
		}
		if err := svc.VerifyEmail(ctx, mailer.lastVerify(t)); err != nil {
			t.Errorf("expected new token accepted, got %v", err)
		}
		if err := svc.ResendVerification(ctx, "ann@example.com"); !errors.Is(err, ErrAlreadyVerified) {
			t.Errorf("expected ErrAlreadyVerified, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		svc, mailer := newTestService(t)
		_, _ = svc.Register(ctx, "ann@example.com", "password1", "Ann")
		svc.tokens.now = func() time.Time { return time.Now().Add(VerifyTTL + time.Hour) }

		if err := svc.VerifyEmail(ctx, mailer.lastVerify(t)); !errors.Is(err, ErrVerificationExpired) {
			t.Errorf("expected ErrVerificationExpired, got %v", err)
		}
	})

	t.Run("Wrong Purpose", func(t *testing.T) {
		svc, _ := newTestService(t)
		session, _, _ := svc.tokens.Issue(PurposeSession, 1, "ann@example.com", "Ann")
		if err := svc.VerifyEmail(ctx, session); !errors.Is(err, ErrInvalidVerification) {
			t.Errorf("expected ErrInvalidVerification, got %v", err)
		}
	})

	t.Run("Missing Token", func(t *testing.T) {
		svc, _ := newTestService(t)
		if err := svc.VerifyEmail(ctx, ""); !errors.Is(err, ErrTokenRequired) {
			t.Errorf("expected ErrTokenRequired, got %v", err)
		}
	})

	t.Run("Resend Unknown Email", func(t *testing.T) {
		svc, mailer := newTestService(t)
		if err := svc.ResendVerification(ctx, "nobody@example.com"); err != nil {
			t.Errorf("expected generic success, got %v", err)
		}
		if len(mailer.verify) != 0 {
			t.Error("no email should be sent for unknown accounts")
		}
	})

	t.Run("Resend Mail Failure", func(t *testing.T) {
		svc, mailer := newTestService(t)
		_, _ = svc.Register(ctx, "ann@example.com", "password1", "Ann")
		mailer.fail = errors.New("smtp down")
		if err := svc.ResendVerification(ctx, "ann@example.com"); !errors.Is(err, ErrEmailDelivery) {
			t.Errorf("expected ErrEmailDelivery, got %v", err)
		}
	})
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, *fakeMailer) {
		svc, mailer := newTestService(t)
		_, _ = svc.Register(ctx, "ann@example.com", "password1", "Ann")
		if err := svc.VerifyEmail(ctx, mailer.lastVerify(t)); err != nil {
			t.Fatal(err)
		}
		return svc, mailer
	}

	t.Run("Single Use", func(t *testing.T) {
		svc, mailer := setup(t)
		if err := svc.ForgotPassword(ctx, "ann@example.com"); err != nil {
			t.Fatal(err)
		}
		if len(mailer.reset) != 1 {
			t.Fatalf("expected one reset email, got %d", len(mailer.reset))
		}
		token := mailer.reset[0]

		if err := svc.ResetPassword(ctx, token, "new-password"); err != nil {
			t.Fatalf("expected first reset to succeed, got %v", err)
		}
		if err := svc.ResetPassword(ctx, token, "other-password"); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expected reused token rejected, got %v", err)
		}

		if _, _, err := svc.Login(ctx, "ann@example.com", "new-password"); err != nil {
			t.Errorf("expected login with new password, got %v", err)
		}
		if _, _, err := svc.Login(ctx, "ann@example.com", "password1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected old password rejected, got %v", err)
		}
	})

	t.Run("Unknown Email Is Silent", func(t *testing.T) {
		svc, mailer := setup(t)
		if err := svc.ForgotPassword(ctx, "nobody@example.com"); err != nil {
			t.Errorf("expected generic success, got %v", err)
		}
		if len(mailer.reset) != 0 {
			t.Error("no email should be sent for unknown accounts")
		}
	})

	t.Run("Short Password", func(t *testing.T) {
		svc, mailer := setup(t)
		_ = svc.ForgotPassword(ctx, "ann@example.com")
		if err := svc.ResetPassword(ctx, mailer.reset[0], "short"); !errors.Is(err, ErrPasswordTooShort) {
			t.Errorf("expected ErrPasswordTooShort, got %v", err)
		}
	})

	t.Run("Long Password", func(t *testing.T) {
		svc, mailer := setup(t)
		_ = svc.ForgotPassword(ctx, "ann@example.com")
		if err := svc.ResetPassword(ctx, mailer.reset[0], strings.Repeat("a", 80)); !errors.Is(err, ErrPasswordTooLong) {
			t.Errorf("expected ErrPasswordTooLong, got %v", err)
		}
		if err := svc.ResetPassword(ctx, mailer.reset[0], strings.Repeat("a", MaxPasswordLength)); err != nil {
			t.Errorf("expected 72 byte password accepted, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		svc, mailer := setup(t)
		_ = svc.ForgotPassword(ctx, "ann@example.com")
		svc.tokens.now = func() time.Time { return time.Now().Add(2 * ResetTTL) }
		if err := svc.ResetPassword(ctx, mailer.reset[0], "new-password"); !errors.Is(err, ErrResetExpired) {
			t.Errorf("expected ErrResetExpired, got %v", err)
		}
	})

	t.Run("Superseded Token", func(t *testing.T) {
		svc, mailer := setup(t)
		_ = svc.ForgotPassword(ctx, "ann@example.com")
		_ = svc.ForgotPassword(ctx, "ann@example.com")
		if err := svc.ResetPassword(ctx, mailer.reset[0], "new-password"); !errors.Is(err, ErrInvalidResetToken) {
			t.Errorf("expected first token superseded, got %v", err)
		}
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("password1")
	if err != nil {
		t.Fatal(err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != PasswordCost {
		t.Errorf("expected cost %d, got %d (%v)", PasswordCost, cost, err)
	}
	if !CheckPasswordHash("password1", hash) || CheckPasswordHash("password2", hash) {
		t.Error("hash comparison mismatch")
	}
}
