// Package user реализует операции над профилями и административное
// управление учётными записями. Персональные поля профиля шифруются
// до записи в хранилище и расшифровываются только при выдаче владельцу.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holidayheroes/holiday-heroes/internal/lib/pii"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

var (
	// ErrLastAdmin возвращается при попытке понизить или удалить
	// последнего администратора.
	ErrLastAdmin = errors.New("cannot remove the last administrator")
	// ErrSelfDeletion возвращается, когда администратор пытается
	// удалить собственную учётную запись.
	ErrSelfDeletion = errors.New("administrators cannot delete their own account")
	// ErrUserNotFound возвращается, когда пользователь не существует.
	ErrUserNotFound = errors.New("user not found")
)

// Storage описывает операции хранилища пользователей.
type Storage interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateProfile(ctx context.Context, userUID string, name, encPhone, encDOB, encAddress *string) error
	UpdateUserRole(ctx context.Context, targetUID, newRole string) error
	DeleteUser(ctx context.Context, targetUID string) error
}

// Profile — профиль пользователя с расшифрованными персональными полями.
// Выдаётся только самому владельцу учётной записи.
type Profile struct {
	models.UserProfile
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Service реализует работу с профилями и административные операции.
type Service struct {
	storage Storage
	codec   *pii.Codec
	log     *slog.Logger
}

// New создает сервис пользователей.
func New(storage Storage, codec *pii.Codec, log *slog.Logger) *Service {
	return &Service{storage: storage, codec: codec, log: log}
}

// GetProfile возвращает профиль владельца с расшифрованными
// персональными полями. Поле, которое не удалось расшифровать,
// опускается из ответа, ошибка логируется.
func (s *Service) GetProfile(ctx context.Context, userUID string) (*Profile, error) {
	const op = "services.user.GetProfile"

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	u, err := s.storage.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := &Profile{UserProfile: models.NewUserProfile(u)}
	profile.Phone = s.decryptField(u.EncryptedPhone, "phone", userUID)
	profile.DateOfBirth = s.decryptField(u.EncryptedDOB, "date_of_birth", userUID)
	profile.Address = s.decryptField(u.EncryptedAddress, "address", userUID)
	return profile, nil
}

func (s *Service) decryptField(ciphertext *string, field, userUID string) string {
	if ciphertext == nil || *ciphertext == "" {
		return ""
	}
	plain, err := s.codec.Decrypt(*ciphertext)
	if err != nil {
		s.log.Error("failed to decrypt profile field",
			slog.String("field", field), slog.String("user_uid", userUID), sl.Err(err))
		return ""
	}
	return plain
}

// UpdateProfile обновляет профиль владельца. Телефон, дата рождения и
// адрес шифруются до обращения к хранилищу: открытый текст за пределы
// сервиса не выходит. Пустые поля запроса не трогают сохранённые значения.
func (s *Service) UpdateProfile(ctx context.Context, userUID string, upd models.DummyProfileUpdate) error {
	const op = "services.user.UpdateProfile"

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var name, encPhone, encDOB, encAddress *string
	if upd.Name != "" {
		name = &upd.Name
	}
	var err error
	if encPhone, err = s.encryptField(upd.Phone); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if encDOB, err = s.encryptField(upd.DateOfBirth); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if encAddress, err = s.encryptField(upd.Address); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdateProfile(ctx, userUID, name, encPhone, encDOB, encAddress); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("profile updated", slog.String("user_uid", userUID))
	return nil
}

func (s *Service) encryptField(plain string) (*string, error) {
	if plain == "" {
		return nil, nil
	}
	enc, err := s.codec.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// ListUsers возвращает безопасные проекции пользователей для админки.
// Зашифрованные поля и хэши паролей в выдачу не попадают.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]models.UserProfile, error) {
	const op = "services.user.ListUsers"

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	users, err := s.storage.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profiles := make([]models.UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, models.NewUserProfile(u))
	}
	return profiles, nil
}

// ChangeRole меняет роль пользователя. Понижение последнего
// администратора отклоняется с ErrLastAdmin.
func (s *Service) ChangeRole(ctx context.Context, targetUID, newRole string) error {
	const op = "services.user.ChangeRole"

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := s.storage.UpdateUserRole(ctx, targetUID, newRole); err != nil {
		switch {
		case errors.Is(err, repository.ErrLastAdmin):
			return fmt.Errorf("%s: %w", op, ErrLastAdmin)
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("user role changed",
		slog.String("target_uid", targetUID), slog.String("new_role", newRole))
	return nil
}

// DeleteUser удаляет учётную запись. Администратор не может удалить
// сам себя, последний администратор не удаляется никем.
func (s *Service) DeleteUser(ctx context.Context, actorUID, targetUID string) error {
	const op = "services.user.DeleteUser"

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if actorUID == targetUID {
		return fmt.Errorf("%s: %w", op, ErrSelfDeletion)
	}

	if err := s.storage.DeleteUser(ctx, targetUID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLastAdmin):
			return fmt.Errorf("%s: %w", op, ErrLastAdmin)
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info("user deleted",
		slog.String("actor_uid", actorUID), slog.String("target_uid", targetUID))
	return nil
}
