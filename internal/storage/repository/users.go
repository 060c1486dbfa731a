package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/holidayheroes/holiday-heroes/internal/models"
)

const userColumns = `uid, email, name, password_hash, role, email_verified_at,
			      encrypted_phone, encrypted_dob, encrypted_address, stripe_customer_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var emailVerifiedAt sql.NullTime
	if err := row.Scan(&u.UUID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&emailVerifiedAt, &u.EncryptedPhone, &u.EncryptedDOB, &u.EncryptedAddress,
		&u.StripeCustomerID, &u.CreatedAt); err != nil {
		return nil, err
	}
	if emailVerifiedAt.Valid {
		u.EmailVerifiedAt = &emailVerifiedAt.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, name, password_hash, role)
			  VALUES ($1, $2, $3, $4)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash, user.Role).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// UpsertOAuthUser создаёт пользователя при первом входе через OAuth или
// возвращает существующего. Пароля у такого пользователя нет, почта
// считается подтверждённой провайдером.
func (s *Storage) UpsertOAuthUser(ctx context.Context, email, name string) (*models.User, error) {
	const op = "storage.UpsertOAuthUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (email, name, role, email_verified_at)
			  VALUES ($1, $2, $3, NOW())
			  ON CONFLICT (email) DO UPDATE
			  SET email_verified_at = COALESCE(users.email_verified_at, NOW())
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email, name, models.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по его email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListUsers возвращает список пользователей с пагинацией.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateProfile обновляет имя и зашифрованные персональные поля пользователя.
// Поля со значением nil не трогаются. Открытый текст сюда не попадает:
// шифрование выполняется сервисным слоем до вызова.
func (s *Storage) UpdateProfile(ctx context.Context, userUID string, name, encPhone, encDOB, encAddress *string) error {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET name              = COALESCE($1, name),
			      encrypted_phone   = COALESCE($2, encrypted_phone),
			      encrypted_dob     = COALESCE($3, encrypted_dob),
			      encrypted_address = COALESCE($4, encrypted_address)
			  WHERE uid = $5`
	result, err := s.DB.ExecContext(ctx, query, name, encPhone, encDOB, encAddress, userUID)
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

// SetStripeCustomerID сохраняет ID покупателя у платёжного провайдера,
// если он ещё не установлен. Повторные вызовы не перезаписывают значение,
// что исключает дубликаты покупателей на одного пользователя.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET stripe_customer_id = COALESCE(stripe_customer_id, $1)
			  WHERE uid = $2`
	_, err := s.DB.ExecContext(ctx, query, customerID, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateUserRole меняет роль пользователя в сериализуемой транзакции.
//
// Понижение единственного администратора отклоняется с ErrLastAdmin:
// счётчик администраторов читается в той же транзакции, что и обновление,
// поэтому две конкурентные операции не могут обе пройти проверку.
func (s *Storage) UpdateUserRole(ctx context.Context, targetUID, newRole string) error {
	const op = "storage.UpdateUserRole"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inSerializableTx(ctx, func(tx *sql.Tx) error {
		var currentRole string
		err := tx.QueryRowContext(ctx,
			`SELECT role FROM users WHERE uid = $1 FOR UPDATE`, targetUID).Scan(&currentRole)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if currentRole == models.RoleAdmin && newRole != models.RoleAdmin {
			var adminCount int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleAdmin).Scan(&adminCount); err != nil {
				return err
			}
			if adminCount <= 1 {
				return ErrLastAdmin
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE users SET role = $1 WHERE uid = $2`, newRole, targetUID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUser удаляет пользователя в сериализуемой транзакции.
// Удаление единственного администратора отклоняется с ErrLastAdmin.
func (s *Storage) DeleteUser(ctx context.Context, targetUID string) error {
	const op = "storage.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inSerializableTx(ctx, func(tx *sql.Tx) error {
		var currentRole string
		err := tx.QueryRowContext(ctx,
			`SELECT role FROM users WHERE uid = $1 FOR UPDATE`, targetUID).Scan(&currentRole)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if currentRole == models.RoleAdmin {
			var adminCount int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleAdmin).Scan(&adminCount); err != nil {
				return err
			}
			if adminCount <= 1 {
				return ErrLastAdmin
			}
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, targetUID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
