// Package auth реализует регистрацию и вход: локальные учётные записи
// с bcrypt-хешем пароля и вход через Google OAuth. Успешный вход
// завершается выпуском JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holidayheroes/holiday-heroes/internal/lib/jwt"
	"github.com/holidayheroes/holiday-heroes/internal/lib/oauth"
	"github.com/holidayheroes/holiday-heroes/internal/lib/password"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	// Одна и та же ошибка для "нет пользователя" и "не тот пароль",
	// чтобы не раскрывать существование учётной записи.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists возвращается при повторной регистрации email.
	ErrUserExists = errors.New("user already exists")
)

// UserStorage описывает операции хранилища, нужные аутентификации.
type UserStorage interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpsertOAuthUser(ctx context.Context, email, name string) (*models.User, error)
}

// OAuthProvider обменивает код авторизации на профиль пользователя.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.UserInfo, error)
}

// Service реализует аутентификацию.
type Service struct {
	users UserStorage
	maker jwt.Maker
	oauth OAuthProvider
	log   *slog.Logger
}

// New создает сервис аутентификации.
func New(users UserStorage, maker jwt.Maker, oauthProvider OAuthProvider, log *slog.Logger) *Service {
	return &Service{users: users, maker: maker, oauth: oauthProvider, log: log}
}

// Register создает локальную учётную запись и возвращает UID пользователя.
func (s *Service) Register(ctx context.Context, email, name, plainPassword string) (string, error) {
	const op = "services.auth.Register"

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("%s: %w", op, ErrUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	hash, err := password.GetHash(plainPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	uid, err := s.users.RegisterUser(ctx, models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hash,
		Role:         models.RoleUser,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("user_uid", uid))
	return uid, nil
}

// Login проверяет пару email/пароль и выпускает JWT.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (string, error) {
	const op = "services.auth.Login"

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	// Учётная запись, созданная через OAuth, пароля не имеет.
	if user.PasswordHash == nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err := password.CompareHash(*user.PasswordHash, plainPassword); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.maker.GenerateToken(user.Email, user.Role, user.UUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// OAuthURL возвращает адрес страницы согласия Google для редиректа.
func (s *Service) OAuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// OAuthLogin завершает вход через Google: обменивает код на профиль,
// создает или обновляет пользователя и выпускает JWT. Email от Google
// считается подтверждённым.
func (s *Service) OAuthLogin(ctx context.Context, code string) (string, error) {
	const op = "services.auth.OAuthLogin"

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	info, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.UpsertOAuthUser(ctx, info.Email, info.Name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.maker.GenerateToken(user.Email, user.Role, user.UUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("oauth login completed", slog.String("user_uid", user.UUID))
	return token, nil
}
