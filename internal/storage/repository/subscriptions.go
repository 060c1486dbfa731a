package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/holidayheroes/holiday-heroes/internal/models"
)

const subscriptionColumns = `id, user_uid, checkout_session_id, external_id, status, period_start,
			      period_end, cancel_requested, last_event_at, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	sub := &models.Subscription{}
	var externalID sql.NullString
	var periodStart, periodEnd sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.CheckoutSessionID, &externalID, &sub.Status,
		&periodStart, &periodEnd, &sub.CancelRequested, &sub.LastEventAt, &sub.CreatedAt); err != nil {
		return nil, err
	}
	if externalID.Valid {
		sub.ExternalID = externalID.String
	}
	if periodStart.Valid {
		sub.PeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.PeriodEnd = &periodEnd.Time
	}
	return sub, nil
}

// CreateSubscription вставляет новую подписку в статусе pending и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, checkout_session_id, status, last_event_at)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.CheckoutSessionID, sub.Status, sub.LastEventAt).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetSubscriptionBySessionID возвращает подписку по ID чекаут-сессии.
func (s *Storage) GetSubscriptionBySessionID(ctx context.Context, sessionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionBySessionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE checkout_session_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// SetExternalID устанавливает внешний идентификатор подписки.
// Установленное значение не перезаписывается: COALESCE делает повторные
// вызовы безопасными, а внешний идентификатор — неизменяемым.
func (s *Storage) SetExternalID(ctx context.Context, sessionID, externalID string) error {
	const op = "storage.SetExternalID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET external_id = COALESCE(external_id, $1)
			  WHERE checkout_session_id = $2`
	result, err := s.DB.ExecContext(ctx, query, externalID, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// GetSubscriptionByExternalID возвращает подписку по внешнему идентификатору.
func (s *Storage) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByExternalID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// GetCurrentSubscription возвращает последнюю подписку пользователя.
// Исторические отменённые и истёкшие записи сохраняются, поэтому берётся
// самая свежая по времени создания.
func (s *Storage) GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetCurrentSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// TransitionParams описывает одно применение события провайдера к подписке.
type TransitionParams struct {
	EventID         string     // ID события провайдера, ключ дедупликации
	ExternalID      string     // Внешний ID подписки
	FromStatus      string     // Ожидаемый текущий статус
	ToStatus        string     // Новый статус
	PeriodStart     *time.Time // Новые границы периода, nil — не менять
	PeriodEnd       *time.Time //
	CancelRequested *bool      // nil — не менять
	EventAt         time.Time  // Время события у провайдера
}

// ApplyStatusTransition атомарно применяет переход статуса подписки.
//
// В одной сериализуемой транзакции событие регистрируется в таблице
// processed_webhook_events и выполняется условное обновление статуса.
// Возвращает false без ошибки, если событие уже обрабатывалось (повторная
// доставка), устарело (last_event_at новее) или текущий статус не совпал
// с ожидаемым (конкурентное обновление успело раньше).
func (s *Storage) ApplyStatusTransition(ctx context.Context, p TransitionParams) (bool, error) {
	const op = "storage.ApplyStatusTransition"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	applied := false
	err := s.inSerializableTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO processed_webhook_events (event_id) VALUES ($1)
			 ON CONFLICT (event_id) DO NOTHING`, p.EventID)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if inserted == 0 {
			// Повторная доставка: событие уже применялось.
			return nil
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE subscriptions
			 SET status           = $1,
			     period_start     = COALESCE($2, period_start),
			     period_end       = COALESCE($3, period_end),
			     cancel_requested = COALESCE($4, cancel_requested),
			     last_event_at    = $5
			 WHERE external_id = $6
			   AND status = $7
			   AND last_event_at <= $5`,
			p.ToStatus, p.PeriodStart, p.PeriodEnd, p.CancelRequested,
			p.EventAt, p.ExternalID, p.FromStatus)
		if err != nil {
			return err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = updated > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return applied, nil
}

// MarkCancelRequested отмечает, что пользователь запросил отмену:
// подписка доживёт до конца периода, статус сменится по вебхуку провайдера.
func (s *Storage) MarkCancelRequested(ctx context.Context, externalID string) error {
	const op = "storage.MarkCancelRequested"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET cancel_requested = true WHERE external_id = $1`
	result, err := s.DB.ExecContext(ctx, query, externalID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// ExpireLapsedSubscriptions переводит в expired подписки, у которых период
// закончился без продления и без запрошенной отмены. Возвращает количество
// затронутых записей.
func (s *Storage) ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireLapsedSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, last_event_at = $2
			  WHERE status IN ($3, $4, $5, $6)
			    AND cancel_requested = false
			    AND period_end IS NOT NULL
			    AND period_end < $2`
	result, err := s.DB.ExecContext(ctx, query,
		models.SubscriptionExpired, now,
		models.SubscriptionPending, models.SubscriptionActive,
		models.SubscriptionTrialing, models.SubscriptionPastDue)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
