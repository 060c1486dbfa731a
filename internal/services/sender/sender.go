// Package sender реализует воркер доставки писем: читает уведомления
// о смене статуса подписки из очереди и отправляет их по SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/lib/smtp"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/services/notifier"
)

// Service отправляет письма по сообщениям из очереди уведомлений.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает воркер доставки писем.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleSubscriptionChange разбирает сообщение о смене статуса подписки
// и отправляет письмо. Ошибка возвращается брокеру: сообщение уйдёт
// в повторную доставку.
func (s *Service) HandleSubscriptionChange(body []byte) error {
	var message notifier.SubscriptionChangeMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal notification message", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	subject, bodyText := composeSubscriptionEmail(message.Status)
	return s.sendEmail([]string{message.Email}, subject, bodyText)
}

// composeSubscriptionEmail подбирает тему и текст письма под новый
// статус подписки. Неизвестный статус получает нейтральный текст.
func composeSubscriptionEmail(status string) (subject, body string) {
	switch status {
	case models.SubscriptionActive:
		return "Подписка HolidayHeroes активна",
			"Здравствуйте!\n\nВаша подписка на HolidayHeroes оформлена. Каталог проверенных организаторов каникулярных активностей уже доступен."
	case models.SubscriptionTrialing:
		return "Пробный период HolidayHeroes начался",
			"Здравствуйте!\n\nВаш пробный период на HolidayHeroes начался. Каталог проверенных организаторов открыт на время триала."
	case models.SubscriptionPastDue:
		return "Не удалось продлить подписку HolidayHeroes",
			"Здравствуйте!\n\nПоследний платёж за подписку HolidayHeroes не прошёл. Пожалуйста, проверьте способ оплаты, иначе доступ будет приостановлен."
	case models.SubscriptionCanceled:
		return "Подписка HolidayHeroes отменена",
			"Здравствуйте!\n\nВаша подписка на HolidayHeroes отменена. Доступ к каталогу сохранится до конца оплаченного периода."
	case models.SubscriptionExpired:
		return "Подписка HolidayHeroes истекла",
			"Здравствуйте!\n\nСрок вашей подписки на HolidayHeroes истёк. Чтобы вернуть доступ к каталогу, оформите подписку заново."
	default:
		return "Изменение статуса подписки HolidayHeroes",
			fmt.Sprintf("Здравствуйте!\n\nСтатус вашей подписки на HolidayHeroes изменился: %s.", status)
	}
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
