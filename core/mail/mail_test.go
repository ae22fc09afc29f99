package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"crates/config"
)

func TestSMTPMailer(t *testing.T) {
	cfg := &config.Config{
		AppURL:    "http://localhost:5173/",
		EmailHost: "smtp.example.com",
		EmailPort: 587,
		EmailUser: "crates@example.com",
	}

	t.Run("Verification Link", func(t *testing.T) {
		var gotAddr string
		var gotTo []string
		var gotMsg string
		m := New(cfg).(*SMTPMailer)
		m.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			return nil
		}

		if err := m.SendVerificationEmail(context.Background(), "user@example.com", "abc.def"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotAddr != "smtp.example.com:587" {
			t.Errorf("unexpected addr %q", gotAddr)
		}
		if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
			t.Errorf("unexpected recipients %v", gotTo)
		}
		if !strings.Contains(gotMsg, "Subject: Verify your Crates account") {
			t.Error("missing subject")
		}
		if !strings.Contains(gotMsg, "http://localhost:5173/verify-email?token=abc.def") {
			t.Errorf("missing verification link in %s", gotMsg)
		}
	})

	t.Run("Send Failure", func(t *testing.T) {
		m := New(cfg).(*SMTPMailer)
		m.send = func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		}
		if err := m.SendPasswordResetEmail(context.Background(), "user@example.com", "tok"); err == nil {
			t.Error("expected error when relay fails")
		}
	})
}

func TestNewWithoutHost(t *testing.T) {
	m := New(&config.Config{AppURL: "http://localhost"})
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("expected LogMailer, got %T", m)
	}
	if err := m.SendVerificationEmail(context.Background(), "a@b.co", "tok"); err != nil {
		t.Errorf("log mailer must not fail, got %v", err)
	}
}
