// Package alert delivers operator notifications when a dependency such as
// the reranker or the relevance classifier starts failing.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/soundprediction/recall/pkg/config"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// New returns an EmailAlerter when alerting is enabled and a NoOpAlerter otherwise.
func New(cfg config.AlertConfig) Alerter {
	if !cfg.Enabled || cfg.SMTPHost == "" || len(cfg.To) == 0 {
		return &NoOpAlerter{}
	}
	return NewEmailAlerter(cfg)
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailAlerter implements Alerter using SMTP. Repeated alerts with the same
// subject inside the cooldown window are dropped.
type EmailAlerter struct {
	cfg      config.AlertConfig
	send     sendFunc
	now      func() time.Time
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	return &EmailAlerter{
		cfg:      cfg,
		send:     smtp.SendMail,
		now:      time.Now,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}
	if !a.claim(subject) {
		return nil
	}

	var auth smtp.Auth
	if a.cfg.Username != "" {
		auth = smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	}

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", a.cfg.From, strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := a.send(addr, auth, a.cfg.From, to, msg); err != nil {
		a.release(subject)
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// claim records subject as sent unless it was sent within the cooldown.
func (a *EmailAlerter) claim(subject string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.lastSent[subject]; ok && a.cooldown > 0 && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastSent[subject] = now
	return true
}

func (a *EmailAlerter) release(subject string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.lastSent, subject)
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
