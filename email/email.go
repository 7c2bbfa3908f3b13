// Package email sends transactional mail over smtp.
package email

import (
	"fmt"
	"net/smtp"
)

type Links struct {
	ActivationURL string
	RecoveryURL   string
}

type Email struct {
	address  string
	auth     smtp.Auth
	hostPort string
	links    Links
}

func New(address string, password string, host string, port string, links Links) *Email {
	return &Email{
		address:  address,
		auth:     smtp.PlainAuth("", address, password, host),
		hostPort: host + ":" + port,
		links:    links,
	}
}

func (e *Email) SendActivationToken(token string, to string) error {
	subject := "Activate your bookstore account"
	body := fmt.Sprintf("Follow this link to activate your account:\r\n%s?token=%s\r\n", e.links.ActivationURL, token)
	return e.send(to, subject, body)
}

func (e *Email) SendRecoveryToken(token string, to string) error {
	subject := "Reset your bookstore password"
	body := fmt.Sprintf("Follow this link to choose a new password:\r\n%s?token=%s\r\n", e.links.RecoveryURL, token)
	return e.send(to, subject, body)
}

func (e *Email) send(to string, subject string, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", e.address, to, subject, body)

	if err := smtp.SendMail(e.hostPort, e.auth, e.address, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail to %s: %w", to, err)
	}
	return nil
}
