// Package models содержит доменные структуры: пользователи, подписки,
// каталог проверенных организаторов, а также вспомогательные типы
// для приёма данных из JSON-запросов.
package models

import "time"

// Роли пользователей. Набор закрытый: любая операция со статусом обязана
// обрабатывать оба значения явно.
const (
	// RoleUser — обычный пользователь (родитель).
	RoleUser = "user"
	// RoleAdmin — администратор каталога и пользователей.
	RoleAdmin = "admin"
)

// User представляет зарегистрированного пользователя системы.
//
// Телефон, дата рождения и адрес хранятся только в зашифрованном виде
// (см. internal/lib/pii) и никогда не отдаются наружу. PasswordHash равен
// nil у пользователей, вошедших через OAuth.
type User struct {
	UUID             string     // Уникальный идентификатор пользователя
	Email            string     // Электронная почта (уникальная)
	Name             string     // Отображаемое имя
	PasswordHash     *string    // Хэш пароля, nil для OAuth-пользователей
	Role             string     // Роль пользователя, RoleUser или RoleAdmin
	EmailVerifiedAt  *time.Time // Когда подтверждена почта, nil — не подтверждена
	EncryptedPhone   *string    // Телефон, шифртекст
	EncryptedDOB     *string    // Дата рождения, шифртекст
	EncryptedAddress *string    // Адрес, шифртекст
	StripeCustomerID *string    // ID покупателя у платёжного провайдера
	CreatedAt        time.Time
}

// UserProfile — проекция пользователя, безопасная для выдачи клиенту.
// Намеренно не содержит ни хэша пароля, ни зашифрованных полей:
// структура физически не способна протечь персональными данными.
type UserProfile struct {
	UUID            string     `json:"uid"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Role            string     `json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewUserProfile строит безопасную проекцию из доменной модели.
func NewUserProfile(u *User) UserProfile {
	return UserProfile{
		UUID:            u.UUID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
	}
}

// DummyProfileUpdate используется для приёма данных профиля из JSON-запроса.
// Поля приходят открытым текстом и шифруются до записи в хранилище.
type DummyProfileUpdate struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Phone       string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	DateOfBirth string `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Password string `json:"password" validate:"required,min=8"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DummyChangeRole используется для приёма запроса смены роли.
type DummyChangeRole struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}
