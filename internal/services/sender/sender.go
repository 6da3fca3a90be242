// Package services отправляет email-уведомления об абонементах:
// о скором окончании срока действия и о переходе в льготный период
// или в EXPIRED. Письма уходят на административный ящик из конфигурации.
package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/facility-access/internal/config"
	"github.com/magabrotheeeer/facility-access/internal/lib/sl"
	"github.com/magabrotheeeer/facility-access/internal/lib/smtp"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

type SenderService struct {
	transport Transport
	notifyTo  string
	log       *slog.Logger
}

type Transport interface {
	Connect() (smtp.Client, error)
	Sender() string
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(cfg *config.Config, log *slog.Logger, transport Transport) *SenderService {
	return &SenderService{
		transport: transport,
		notifyTo:  cfg.SMTP.NotifyTo,
		log:       log,
	}
}

// SendInfoExpiringSubscription отправляет уведомление о скором окончании
// срока действия абонемента.
func (s *SenderService) SendInfoExpiringSubscription(body []byte) error {
	var message models.ExpiryInfo
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal message body", "error", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{s.notifyTo}
	subject := "Уведомление о скором окончании абонемента"
	bodyText := fmt.Sprintf("Срок действия абонемента №%d (пользователь %s, тариф %s) заканчивается %s.\n\nПредложите владельцу продлить абонемент заранее.",
		message.SubscriptionID, message.UserUID, message.PlanName,
		message.EndDate.Format("02.01.2006"))

	return s.sendEmail(to, subject, bodyText)
}

// SendInfoExpiredSubscription отправляет уведомление о том, что абонемент
// перешёл в льготный период или стал недействительным.
func (s *SenderService) SendInfoExpiredSubscription(body []byte) error {
	var message models.ExpiryInfo
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("Failed to unmarshal message body", "error", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{s.notifyTo}
	var subject, bodyText string
	if message.Status == models.StatusInGracePeriod && message.GraceEndDate != nil {
		subject = "Абонемент перешёл в льготный период"
		bodyText = fmt.Sprintf("Срок действия абонемента №%d (пользователь %s, тариф %s) закончился %s.\n\nДо %s владелец ещё может проходить по нему: действует льготный период в 7 дней.",
			message.SubscriptionID, message.UserUID, message.PlanName,
			message.EndDate.Format("02.01.2006"),
			message.GraceEndDate.Format("02.01.2006"))
	} else {
		subject = "Абонемент стал недействительным"
		bodyText = fmt.Sprintf("Абонемент №%d (пользователь %s, тариф %s) стал недействительным %s.\n\nДля восстановления доступа владельцу нужно оформить продление.",
			message.SubscriptionID, message.UserUID, message.PlanName,
			message.EndDate.Format("02.01.2006"))
	}

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.Sender(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", "error", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.Sender()); err != nil {
		s.log.Error("Failed to set MAIL FROM", "from", s.transport.Sender(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", "error", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("Failed to write email body", "error", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", "error", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", "error", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
