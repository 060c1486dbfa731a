package models

import "time"

// Статусы подписки. Набор закрытый и соответствует машине состояний
// в services/billing: новые значения не должны проваливаться молча.
const (
	// SubscriptionPending — чекаут создан, оплата ещё не подтверждена.
	SubscriptionPending = "pending"
	// SubscriptionActive — оплаченная действующая подписка.
	SubscriptionActive = "active"
	// SubscriptionTrialing — пробный период у провайдера платежей.
	SubscriptionTrialing = "trialing"
	// SubscriptionPastDue — продление не прошло, провайдер повторяет списание.
	SubscriptionPastDue = "past_due"
	// SubscriptionCanceled — отмена вступила в силу. Терминальный статус.
	SubscriptionCanceled = "canceled"
	// SubscriptionExpired — период закончился без продления и без отмены. Терминальный статус.
	SubscriptionExpired = "expired"
)

// IsTerminalSubscriptionStatus сообщает, что из статуса нет переходов:
// для возобновления доступа пользователь создаёт новую подписку.
func IsTerminalSubscriptionStatus(status string) bool {
	return status == SubscriptionCanceled || status == SubscriptionExpired
}

// Subscription представляет годовую подписку пользователя на сервис.
//
// Запись создаётся в статусе pending при создании чекаут-сессии; ExternalID
// появляется после завершения чекаута и с этого момента не меняется.
// Записи никогда не удаляются физически, только переводятся в терминальные статусы.
type Subscription struct {
	ID                int
	UserUID           string     // Владелец подписки
	CheckoutSessionID string     // ID чекаут-сессии, по нему коррелируется завершение чекаута
	ExternalID        string     // ID подписки у платёжного провайдера, "" до завершения чекаута
	Status            string     // Один из Subscription* статусов
	PeriodStart       *time.Time // Начало текущего оплаченного периода
	PeriodEnd         *time.Time // Конец текущего оплаченного периода
	CancelRequested   bool       // Отмена запрошена, но период ещё не истёк
	LastEventAt       time.Time  // Время последнего применённого события провайдера
	CreatedAt         time.Time
}

// SubscriptionView — проекция подписки для выдачи клиенту.
type SubscriptionView struct {
	Status          string     `json:"status"`
	PeriodStart     *time.Time `json:"period_start,omitempty"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
}

// NewSubscriptionView строит проекцию подписки без внешних идентификаторов.
func NewSubscriptionView(s *Subscription) SubscriptionView {
	return SubscriptionView{
		Status:          s.Status,
		PeriodStart:     s.PeriodStart,
		PeriodEnd:       s.PeriodEnd,
		CancelRequested: s.CancelRequested,
	}
}
