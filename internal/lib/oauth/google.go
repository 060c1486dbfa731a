// Package oauth — тонкая обёртка над golang.org/x/oauth2 для входа
// через Google. Сервис обменивает код авторизации на профиль
// пользователя и дальше работает со своими JWT.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/holidayheroes/holiday-heroes/internal/config"
)

const userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// UserInfo — профиль пользователя, полученный от Google.
type UserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

// Provider выполняет обмен кода авторизации и запрос профиля.
type Provider struct {
	cfg *oauth2.Config
}

// NewProvider собирает конфигурацию Google OAuth из настроек сервиса.
func NewProvider(cfg config.GoogleOAuth) *Provider {
	return &Provider{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthCodeURL возвращает адрес страницы согласия Google.
// state защищает колбэк от CSRF и проверяется на стороне хендлера.
func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange меняет код авторизации на профиль пользователя.
func (p *Provider) Exchange(ctx context.Context, code string) (*UserInfo, error) {
	const op = "oauth.Exchange"

	token, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := p.cfg.Client(ctx, token)
	resp, err := client.Get(userinfoURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: userinfo request failed with status %d", op, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var info UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%s: userinfo response has no email", op)
	}
	return &info, nil
}
