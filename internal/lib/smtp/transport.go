// Package smtp инкапсулирует почтовый транспорт отправителя уведомлений.
package smtp

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"

	"github.com/magabrotheeeer/facility-access/internal/config"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
)

// Client — минимальный интерфейс SMTP-сессии, достаточный для отправки
// одного письма. Выделен, чтобы сервис отправки можно было тестировать
// без реального SMTP-сервера.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Transport открывает SMTP-сессии с обязательным STARTTLS и PLAIN-аутентификацией.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect устанавливает соединение с SMTP-сервером и возвращает готовую
// к отправке сессию. Сессию закрывает вызывающий через Quit или Close.
func (t *Transport) Connect() (Client, error) {
	const op = "smtp.Connect"

	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("%s: dial %s: %w", op, addr, err)
	}

	if err := t.secure(client); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			t.log.Warn("failed to close smtp client", sl.Err(closeErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session{client: client}, nil
}

// secure поднимает TLS и аутентифицируется. Сервер без STARTTLS
// отвергается: учётные данные в открытый канал не уходят.
func (t *Transport) secure(client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return fmt.Errorf("server %s does not support STARTTLS", t.cfg.SMTPHost)
	}
	tlsConfig := &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	return nil
}

// Sender возвращает адрес отправителя писем.
func (t *Transport) Sender() string {
	return t.cfg.SMTPUser
}

// session реализует Client поверх *smtp.Client.
type session struct {
	client *smtp.Client
}

func (s *session) Mail(from string) error { return s.client.Mail(from) }

func (s *session) Rcpt(to string) error { return s.client.Rcpt(to) }

func (s *session) Data() (io.WriteCloser, error) { return s.client.Data() }

func (s *session) Quit() error { return s.client.Quit() }

func (s *session) Close() error { return s.client.Close() }
