package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 2525, From: "no-reply@stackit.local"})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := m.Send(context.Background(), "a@x.com", "Your code", "123456"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gotAddr != "smtp.example.com:2525" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "no-reply@stackit.local" || len(gotTo) != 1 || gotTo[0] != "a@x.com" {
		t.Errorf("from/to = %q/%v", gotFrom, gotTo)
	}
	if !strings.Contains(string(gotMsg), "Subject: Your code\r\n") || !strings.HasSuffix(string(gotMsg), "123456") {
		t.Errorf("message = %q", gotMsg)
	}
}

func TestSMTPMailer_SendError(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("boom") }
	if err := m.Send(context.Background(), "a@x.com", "s", "b"); err == nil {
		t.Fatal("Send() should propagate transport errors")
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, "a@x.com", "s", "b"); err == nil {
		t.Fatal("Send() should fail on a canceled context")
	}
}
