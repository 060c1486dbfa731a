package billing

import (
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
)

// nextStatus вычисляет целевой статус подписки для события провайдера.
//
// Возвращает (новый статус, true), если переход допустим, и ("", false),
// если событие не меняет состояние: терминальные статусы поглощают всё,
// недопустимые комбинации игнорируются, повторное попадание в тот же
// статус допускается (обновляются границы периода).
//
// Машина состояний:
//
//	pending  -> active | trialing           (оплата прошла)
//	trialing -> active                      (первое списание после триала)
//	active | trialing -> past_due           (продление не прошло)
//	past_due -> active                      (повторное списание прошло)
//	active | trialing | past_due -> canceled (отмена вступила в силу)
//	любой нетерминальный -> expired          (период истёк без продления)
//	canceled, expired — терминальные
func nextStatus(current string, kind paymentgateway.EventKind, snapshot *paymentgateway.SubscriptionSnapshot) (string, bool) {
	if models.IsTerminalSubscriptionStatus(current) {
		return "", false
	}

	switch kind {
	case paymentgateway.EventCheckoutCompleted:
		// Чекаут завершён: статус берётся из снимка провайдера,
		// подписка могла стартовать как active или trialing.
		if current != models.SubscriptionPending || snapshot == nil {
			return "", false
		}
		switch snapshot.Status {
		case models.SubscriptionActive, models.SubscriptionTrialing:
			return snapshot.Status, true
		default:
			return "", false
		}

	case paymentgateway.EventPaymentSucceeded:
		switch current {
		case models.SubscriptionPending, models.SubscriptionTrialing,
			models.SubscriptionPastDue, models.SubscriptionActive:
			return models.SubscriptionActive, true
		default:
			return "", false
		}

	case paymentgateway.EventPaymentFailed:
		switch current {
		case models.SubscriptionActive, models.SubscriptionTrialing:
			return models.SubscriptionPastDue, true
		default:
			return "", false
		}

	case paymentgateway.EventSubscriptionUpdated:
		if snapshot == nil {
			return "", false
		}
		switch snapshot.Status {
		case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue:
			return snapshot.Status, true
		case models.SubscriptionCanceled:
			return models.SubscriptionCanceled, true
		default:
			return "", false
		}

	case paymentgateway.EventSubscriptionDeleted:
		// Отмена вступила в силу: период закончился у провайдера.
		return models.SubscriptionCanceled, true

	case paymentgateway.EventIgnored:
		return "", false

	default:
		return "", false
	}
}
